package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leasecheck-backend/answer"
	"leasecheck-backend/assess"
	"leasecheck-backend/extract"
	"leasecheck-backend/models"
	"leasecheck-backend/report"
	"leasecheck-backend/repository"
	"leasecheck-backend/retrieval"
	"leasecheck-backend/rules"
	"leasecheck-backend/storage"
)

// Errors
var (
	ErrEmptyDocument     = errors.New("document text is empty")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrJobNotFound       = errors.New("analysis job not found")
	ErrJobNotRunning     = errors.New("analysis job is not running")
	ErrJobCreationFailed = errors.New("failed to create analysis job")
	ErrReportNotReady    = errors.New("analysis report not ready")
)

const (
	defaultConcurrency  = 8
	defaultJurisdiction = "NSW"
)

// AnalysisService runs the clause assessment pipeline: extraction, rule
// evaluation and retrieval per clause, aggregation and report building.
// It is safe for concurrent use; the rule table and index are shared
// read-only across analyses.
type AnalysisService struct {
	engine              *rules.Engine
	retriever           *retrieval.Retriever
	aggregator          *assess.Aggregator
	extractor           extract.Extractor
	answerer            answer.Generator
	jobs                JobStore
	archive             storage.Storage
	logger              *zap.Logger
	concurrency         int
	defaultJurisdiction string

	tracker *jobTracker
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// WithRetriever sets the legislation retriever
func WithRetriever(r *retrieval.Retriever) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.retriever = r
	}
}

// WithAggregator replaces the default score aggregator
func WithAggregator(a *assess.Aggregator) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.aggregator = a
	}
}

// WithExtractor sets the clause extractor
func WithExtractor(e extract.Extractor) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.extractor = e
	}
}

// WithAnswerer sets the generator that drafts answers to questions. Without
// one, Ask returns legislation context only.
func WithAnswerer(g answer.Generator) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.answerer = g
	}
}

// WithJobStore sets where analysis jobs are persisted
func WithJobStore(store JobStore) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.jobs = store
	}
}

// WithReportArchive stores every completed job report under reports/<job-id>.json
func WithReportArchive(archive storage.Storage) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.archive = archive
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency limits how many clauses of one document are assessed at once
func WithConcurrency(n int) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDefaultJurisdiction sets the jurisdiction used when a request names
// none and none can be detected from the text
func WithDefaultJurisdiction(code string) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if j := models.NormalizeJurisdiction(code); j != "" {
			s.defaultJurisdiction = j
		}
	}
}

// NewAnalysisService creates a new analysis service over a rule engine
func NewAnalysisService(engine *rules.Engine, opts ...AnalysisServiceOption) *AnalysisService {
	s := &AnalysisService{
		engine:              engine,
		extractor:           extract.NewHeuristicExtractor(),
		logger:              zap.NewNop(),
		concurrency:         defaultConcurrency,
		defaultJurisdiction: defaultJurisdiction,
		tracker:             newJobTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.retriever == nil {
		s.retriever = retrieval.New(nil)
	}
	if s.aggregator == nil {
		s.aggregator = assess.NewAggregator(engine.Table())
	}
	if s.jobs == nil {
		s.jobs = repository.NewMemoryJobStore()
	}
	return s
}

// Engine returns the rule engine the service evaluates with
func (s *AnalysisService) Engine() *rules.Engine {
	return s.engine
}

// AnalyzeRequest represents a request to assess one contract
type AnalyzeRequest struct {
	DocID        string
	Text         string
	Jurisdiction string // optional; detected from the text when empty
}

// AnalyzeResult represents the outcome of an analysis
type AnalyzeResult struct {
	Assessment *models.Assessment
	Report     *models.Report
}

// Analyze assesses every clause of a document. Clauses are evaluated in
// parallel and verdicts are returned in clause order. If ctx is cancelled
// the context error is returned and no partial assessment is produced.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	return s.analyze(ctx, req, nil)
}

// stepFunc is notified as the pipeline enters each stage
type stepFunc func(step string) error

func (s *AnalysisService) analyze(ctx context.Context, req AnalyzeRequest, onStep stepFunc) (*AnalyzeResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyDocument
	}
	if onStep == nil {
		onStep = func(string) error { return nil }
	}

	docID := req.DocID
	if docID == "" {
		docID = uuid.NewString()
	}
	detected := extract.DetectJurisdiction(req.Text)
	jurisdiction := s.resolveJurisdiction(req.Jurisdiction, detected)

	logger := s.logger.With(zap.String("doc_id", docID), zap.String("jurisdiction", jurisdiction))

	// 1. Extract clauses
	if err := onStep(StepExtracting); err != nil {
		return nil, err
	}
	clauses, err := s.extractor.Extract(ctx, req.Text, jurisdiction)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		logger.Warn("Clause extraction failed, continuing with no clauses", zap.Error(err))
		clauses = nil
	}
	for i := range clauses {
		if clauses[i].Jurisdiction == "" {
			clauses[i].Jurisdiction = jurisdiction
		}
	}

	// 2. Assess clauses
	if err := onStep(StepAssessing); err != nil {
		return nil, err
	}
	verdicts, degraded, err := s.assessClauses(ctx, clauses)
	if err != nil {
		return nil, err
	}

	// 3. Assemble and report
	if err := onStep(StepReporting); err != nil {
		return nil, err
	}
	unverified := !s.engine.Table().IsVerified(jurisdiction)
	assessment, err := assess.Assemble(docID, jurisdiction, clauses, verdicts, unverified, degraded)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble assessment: %w", err)
	}

	logger.Info("Contract analysed",
		zap.Int("clauses", len(clauses)),
		zap.String("risk_level", string(assessment.RiskLevel)),
		zap.Bool("unverified", unverified),
		zap.Bool("degraded", degraded))

	return &AnalyzeResult{
		Assessment: assessment,
		Report:     report.Build(assessment, report.WithDetectedJurisdiction(detected)),
	}, nil
}

// assessClauses fans out rule evaluation and retrieval per clause. Each
// worker writes only its own slot, so verdict order equals clause order.
func (s *AnalysisService) assessClauses(ctx context.Context, clauses []models.Clause) ([]models.Verdict, bool, error) {
	verdicts := make([]models.Verdict, len(clauses))
	degradedAt := make([]bool, len(clauses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, clause := range clauses {
		i, clause := i, clause
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rv := s.engine.Evaluate(clause)
			ev := s.retriever.SearchClause(gctx, clause, 0)
			if err := gctx.Err(); err != nil {
				return err
			}
			verdicts[i] = s.aggregator.Aggregate(clause, rv, ev)
			degradedAt[i] = ev.Degraded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	degraded := !s.retriever.Available()
	for _, d := range degradedAt {
		degraded = degraded || d
	}
	return verdicts, degraded, nil
}

func (s *AnalysisService) resolveJurisdiction(requested, detected string) string {
	if j := models.NormalizeJurisdiction(requested); j != "" {
		return j
	}
	if detected != "" {
		return detected
	}
	return s.defaultJurisdiction
}

// AskRequest represents a free-text legal question. JobID optionally names
// a completed analysis whose findings are given to the answer.
type AskRequest struct {
	Question     string
	Jurisdiction string
	JobID        uuid.UUID
}

// AskResult carries the legislation passages relevant to a question, and
// an answer when a generator is configured
type AskResult struct {
	Question     string                   `json:"question"`
	Jurisdiction string                   `json:"jurisdiction"`
	DocID        string                   `json:"doc_id,omitempty"`
	Answer       string                   `json:"answer,omitempty"`
	Passages     []models.RetrievalResult `json:"passages"`
	Citations    []string                 `json:"citations"`
	Degraded     bool                     `json:"degraded"`
}

// Ask retrieves legislation context for the chat layer and drafts an
// answer when it can. A failed answer leaves the context-only result.
func (s *AnalysisService) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	var contract *answer.ContractContext
	detected := ""
	if req.JobID != uuid.Nil {
		rep, err := s.GetReport(ctx, req.JobID)
		if err != nil {
			return nil, err
		}
		contract = answer.ContractFromReport(rep)
		detected = rep.Jurisdiction
	}
	jurisdiction := s.resolveJurisdiction(req.Jurisdiction, detected)

	ev := s.retriever.AnswerContext(ctx, question, jurisdiction)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	passages := ev.Results
	if passages == nil {
		passages = []models.RetrievalResult{}
	}
	citations := make([]string, 0, len(passages))
	seen := make(map[string]bool, len(passages))
	for _, p := range passages {
		if p.SourceCitation == "" || seen[p.SourceCitation] {
			continue
		}
		seen[p.SourceCitation] = true
		citations = append(citations, p.SourceCitation)
	}

	result := &AskResult{
		Question:     question,
		Jurisdiction: jurisdiction,
		Passages:     passages,
		Citations:    citations,
		Degraded:     ev.Degraded,
	}
	if contract != nil {
		result.DocID = contract.DocID
	}
	if s.answerer == nil {
		return result, nil
	}

	text, err := s.answerer.Generate(ctx, answer.Prompt{
		Question:     question,
		Jurisdiction: jurisdiction,
		Passages:     passages,
		Contract:     contract,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("Answer generation failed, returning context only",
			zap.String("jurisdiction", jurisdiction),
			zap.Error(err))
		return result, nil
	}
	result.Answer = text
	return result, nil
}
