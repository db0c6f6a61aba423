package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leasecheck-backend/answer"
	"leasecheck-backend/models"
	"leasecheck-backend/report"
	"leasecheck-backend/retrieval"
	"leasecheck-backend/rules"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const nswLease = "RESIDENTIAL TENANCY AGREEMENT\nResidential Tenancies Act 2010 (NSW)\n\n" +
	"1. The bond is 6 weeks rent ($3,000)\n\n" +
	"2. Tenant may not sublet under any circumstances\n\n" +
	"3. The tenant must keep the premises reasonably clean\n"

func newTestService(t *testing.T, opts ...AnalysisServiceOption) *AnalysisService {
	t.Helper()
	table, err := rules.DefaultTable()
	require.NoError(t, err)
	return NewAnalysisService(rules.NewEngine(table), opts...)
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, string) ([]models.Clause, error) {
	return nil, errors.New("model unavailable")
}

// blockingIndex blocks every query until the caller's context ends
type blockingIndex struct {
	started chan struct{}
	once    sync.Once
}

func newBlockingIndex() *blockingIndex {
	return &blockingIndex{started: make(chan struct{})}
}

func (b *blockingIndex) Nearest(ctx context.Context, _ string, _ int) ([]retrieval.Candidate, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// jitterIndex answers after a delay that varies by query
type jitterIndex struct{}

func (jitterIndex) Nearest(ctx context.Context, query string, _ int) ([]retrieval.Candidate, error) {
	select {
	case <-time.After(time.Duration(len(query)%7) * time.Millisecond):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAnalyzeFlagsIllegalClauses(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{DocID: "lease-1", Text: nswLease})
	require.NoError(t, err)

	a := result.Assessment
	assert.Equal(t, "lease-1", a.DocID)
	assert.Equal(t, "NSW", a.Jurisdiction)
	assert.False(t, a.Unverified)
	assert.True(t, a.Degraded, "no index configured")
	require.Len(t, a.Clauses, 4)
	require.Len(t, a.Verdicts, 4)

	for i := range a.Clauses {
		assert.Equal(t, a.Clauses[i].ID, a.Verdicts[i].ClauseID)
		assert.Contains(t, []models.VerdictSource{models.SourceRule, models.SourceHeuristic}, a.Verdicts[i].Source,
			"clause %s decided without legislation search", a.Clauses[i].ID)
	}

	bond := a.Verdicts[1]
	assert.Equal(t, models.StatusIllegal, bond.Status)
	assert.Equal(t, models.SeverityHigh, bond.Severity)
	assert.Contains(t, bond.Citations, "Residential Tenancies Act 2010 (NSW) s.19")

	sublet := a.Verdicts[2]
	assert.Equal(t, models.StatusIllegal, sublet.Status)
	assert.Contains(t, sublet.Citations, "Residential Tenancies Act 2010 (NSW) s.74")

	assert.Equal(t, models.RiskHigh, a.RiskLevel)
	assert.Equal(t, 2, a.Statistics.Illegal)
	assert.Equal(t, 4, a.Statistics.Total)

	r := result.Report
	assert.Equal(t, models.RiskHigh, r.RiskLevel)
	assert.Equal(t, "6 weeks rent", r.QuickFacts.Bond)
	assert.Equal(t, "Not specified", r.QuickFacts.Rent)
	assert.Empty(t, r.QuickFacts.DetectedJurisdiction)
	assert.NotEmpty(t, r.Issues)
}

func TestAnalyzeGeneratesDocID(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Analyze(context.Background(), AnalyzeRequest{Text: nswLease})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Assessment.DocID)
	assert.Equal(t, result.Assessment.DocID, result.Report.DocID)
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Analyze(context.Background(), AnalyzeRequest{Text: "  \n "})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestAnalyzeExtractionFailureYieldsNoClauses(t *testing.T) {
	svc := newTestService(t, WithExtractor(failingExtractor{}))

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{Text: nswLease, Jurisdiction: "NSW"})
	require.NoError(t, err)

	a := result.Assessment
	assert.Empty(t, a.Clauses)
	assert.Empty(t, a.Verdicts)
	assert.Equal(t, models.RiskLow, a.RiskLevel)
	assert.Equal(t, models.Statistics{}, a.Statistics)
	assert.Equal(t, report.NoClausesDetected, result.Report.OverallVerdict)
}

func TestAnalyzeCancelledBeforeStart(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Analyze(ctx, AnalyzeRequest{Text: nswLease})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestAnalyzeCancelledDuringAssessment(t *testing.T) {
	index := newBlockingIndex()
	svc := newTestService(t, WithRetriever(retrieval.New(index)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-index.started
		cancel()
	}()

	result, err := svc.Analyze(ctx, AnalyzeRequest{Text: nswLease})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result, "no partial assessment")
}

func TestAnalyzeKeepsClauseOrderUnderConcurrency(t *testing.T) {
	svc := newTestService(t,
		WithRetriever(retrieval.New(jitterIndex{})),
		WithConcurrency(4))

	var b strings.Builder
	b.WriteString("Residential Tenancies Act 2010 (NSW)\n\n")
	for i := 0; i < 30; i++ {
		switch i % 3 {
		case 0:
			fmt.Fprintf(&b, "%d. The bond is %d weeks rent\n\n", i+1, i%6+1)
		case 1:
			fmt.Fprintf(&b, "%d. No pets are allowed at the property%s\n\n", i+1, strings.Repeat("!", i%5))
		default:
			fmt.Fprintf(&b, "%d. The landlord will repair the hot water system%s\n\n", i+1, strings.Repeat(".", i%4))
		}
	}

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{Text: b.String()})
	require.NoError(t, err)

	a := result.Assessment
	require.Len(t, a.Verdicts, len(a.Clauses))
	for i := range a.Clauses {
		assert.Equal(t, a.Clauses[i].ID, a.Verdicts[i].ClauseID)
	}
	assert.False(t, a.Degraded)
}

func TestAnalyzeUnverifiedJurisdictionNeverLegal(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Text:         "The bond is 6 weeks rent\n\nThe landlord will repair the hot water system",
		Jurisdiction: "WA",
	})
	require.NoError(t, err)

	a := result.Assessment
	assert.Equal(t, "WA", a.Jurisdiction)
	assert.True(t, a.Unverified)
	for _, v := range a.Verdicts {
		assert.NotEqual(t, models.StatusLegal, v.Status)
	}
}

func TestAnalyzeRentIncreaseNoticeIsNotAFrequency(t *testing.T) {
	svc := newTestService(t)

	for _, state := range []string{"QLD", "NSW"} {
		result, err := svc.Analyze(context.Background(), AnalyzeRequest{
			Text:         "The landlord will give the tenant 3 months written notice of any rent increase.",
			Jurisdiction: state,
		})
		require.NoError(t, err)

		a := result.Assessment
		require.Len(t, a.Clauses, 1)
		assert.Equal(t, models.ClauseRentIncrease, a.Clauses[0].Type)
		assert.NotEqual(t, models.StatusIllegal, a.Verdicts[0].Status, state)
		assert.Zero(t, a.Statistics.Illegal, state)
	}
}

func TestAnalyzeJurisdictionResolution(t *testing.T) {
	svc := newTestService(t, WithDefaultJurisdiction("qld"))
	ctx := context.Background()

	result, err := svc.Analyze(ctx, AnalyzeRequest{Text: "Residential Tenancies Act 1997 (Vic)\n\nThe bond is 6 weeks rent"})
	require.NoError(t, err)
	assert.Equal(t, "VIC", result.Assessment.Jurisdiction)

	result, err = svc.Analyze(ctx, AnalyzeRequest{Text: "The bond is 6 weeks rent"})
	require.NoError(t, err)
	assert.Equal(t, "QLD", result.Assessment.Jurisdiction)

	result, err = svc.Analyze(ctx, AnalyzeRequest{
		Text:         "Residential Tenancies Act 1997 (Vic)\n\nThe bond is 6 weeks rent",
		Jurisdiction: "nsw",
	})
	require.NoError(t, err)
	assert.Equal(t, "NSW", result.Assessment.Jurisdiction)
	assert.Equal(t, "VIC", result.Report.QuickFacts.DetectedJurisdiction)
}

func TestAnalyzeWithMemoryIndex(t *testing.T) {
	corpus, err := retrieval.DefaultCorpus()
	require.NoError(t, err)
	svc := newTestService(t, WithRetriever(retrieval.New(retrieval.NewMemoryIndex(corpus))))

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{Text: nswLease})
	require.NoError(t, err)
	assert.False(t, result.Assessment.Degraded)
	assert.Equal(t, models.StatusIllegal, result.Assessment.Verdicts[1].Status)
	assert.Equal(t, models.SourceRule, result.Assessment.Verdicts[1].Source)
}

func TestAsk(t *testing.T) {
	corpus, err := retrieval.DefaultCorpus()
	require.NoError(t, err)
	svc := newTestService(t, WithRetriever(retrieval.New(retrieval.NewMemoryIndex(corpus))))

	result, err := svc.Ask(context.Background(), AskRequest{Question: "The bond exceeds 4 weeks rent", Jurisdiction: "nsw"})
	require.NoError(t, err)
	assert.Equal(t, "NSW", result.Jurisdiction)
	assert.False(t, result.Degraded)
	require.NotEmpty(t, result.Passages)
	assert.LessOrEqual(t, len(result.Passages), 3)
	assert.Equal(t, "nsw-rta-s159", result.Passages[0].ChunkID)
	assert.NotEmpty(t, result.Citations)
}

func TestAskValidationAndDegraded(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Ask(context.Background(), AskRequest{Question: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	result, err := svc.Ask(context.Background(), AskRequest{Question: "Can my landlord keep the bond?"})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.NotNil(t, result.Passages)
	assert.Empty(t, result.Passages)
	assert.Equal(t, "NSW", result.Jurisdiction)
	assert.Empty(t, result.Answer, "no generator configured")
}

// stubGenerator records the prompt it was given
type stubGenerator struct {
	mu     sync.Mutex
	prompt answer.Prompt
	calls  int
	reply  string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, p answer.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompt = p
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, ctx.Err()
}

func completedJob(t *testing.T, svc *AnalysisService, text string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	started, err := svc.StartJob(ctx, AnalyzeRequest{DocID: "lease-1", Text: text})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessJob(ctx, started.JobID))
	return started.JobID
}

func TestAskAnswersWithContract(t *testing.T) {
	gen := &stubGenerator{reply: "The bond exceeds the legal maximum [LAW 1]."}
	svc := newTestService(t, WithAnswerer(gen))
	jobID := completedJob(t, svc, nswLease)

	result, err := svc.Ask(context.Background(), AskRequest{Question: "Is my bond legal?", JobID: jobID})
	require.NoError(t, err)

	assert.Equal(t, "The bond exceeds the legal maximum [LAW 1].", result.Answer)
	assert.Equal(t, "lease-1", result.DocID)
	assert.Equal(t, "NSW", result.Jurisdiction, "taken from the report")

	require.Equal(t, 1, gen.calls)
	require.NotNil(t, gen.prompt.Contract)
	assert.Equal(t, models.RiskHigh, gen.prompt.Contract.RiskLevel)
	assert.Equal(t, 2, gen.prompt.Contract.Statistics.Illegal)
	assert.NotEmpty(t, gen.prompt.Contract.Issues)
	assert.Equal(t, "Is my bond legal?", gen.prompt.Question)

	built := answer.Build(gen.prompt)
	assert.Contains(t, built, "Overall risk: HIGH")
	assert.Contains(t, built, "6 weeks rent")
}

func TestAskRequestJurisdictionOverridesReport(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	svc := newTestService(t, WithAnswerer(gen))
	jobID := completedJob(t, svc, nswLease)

	result, err := svc.Ask(context.Background(), AskRequest{Question: "Can I sublet?", Jurisdiction: "vic", JobID: jobID})
	require.NoError(t, err)
	assert.Equal(t, "VIC", result.Jurisdiction)
	assert.Equal(t, "VIC", gen.prompt.Jurisdiction)
}

func TestAskWithoutJobHasNoContract(t *testing.T) {
	gen := &stubGenerator{reply: "General answer."}
	svc := newTestService(t, WithAnswerer(gen))

	result, err := svc.Ask(context.Background(), AskRequest{Question: "Can my landlord keep the bond?", Jurisdiction: "qld"})
	require.NoError(t, err)
	assert.Equal(t, "General answer.", result.Answer)
	assert.Empty(t, result.DocID)
	assert.Nil(t, gen.prompt.Contract)
	assert.Equal(t, "QLD", gen.prompt.Jurisdiction)
}

func TestAskUnknownOrUnfinishedJob(t *testing.T) {
	gen := &stubGenerator{reply: "unused"}
	svc := newTestService(t, WithAnswerer(gen))
	ctx := context.Background()

	_, err := svc.Ask(ctx, AskRequest{Question: "Is my bond legal?", JobID: uuid.New()})
	assert.ErrorIs(t, err, ErrJobNotFound)

	started, err := svc.StartJob(ctx, AnalyzeRequest{Text: nswLease})
	require.NoError(t, err)
	_, err = svc.Ask(ctx, AskRequest{Question: "Is my bond legal?", JobID: started.JobID})
	assert.ErrorIs(t, err, ErrReportNotReady)

	assert.Zero(t, gen.calls)
	require.NoError(t, svc.CancelJob(ctx, started.JobID))
}

func TestAskFallsBackToContextWhenGenerationFails(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("%w: quota exceeded", answer.ErrGenerationFailed)}
	svc := newTestService(t, WithAnswerer(gen))

	result, err := svc.Ask(context.Background(), AskRequest{Question: "Can my landlord keep the bond?"})
	require.NoError(t, err)
	assert.Empty(t, result.Answer)
	assert.NotNil(t, result.Passages)
	assert.Equal(t, 1, gen.calls)
}

func TestAskCancelledDuringGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &stubGenerator{err: context.Canceled}
	svc := newTestService(t, WithAnswerer(&cancellingGenerator{stubGenerator: gen, cancel: cancel}))

	_, err := svc.Ask(ctx, AskRequest{Question: "Can my landlord keep the bond?"})
	assert.ErrorIs(t, err, context.Canceled)
}

// cancellingGenerator cancels the request while generating
type cancellingGenerator struct {
	*stubGenerator
	cancel context.CancelFunc
}

func (g *cancellingGenerator) Generate(ctx context.Context, p answer.Prompt) (string, error) {
	g.cancel()
	return g.stubGenerator.Generate(ctx, p)
}
