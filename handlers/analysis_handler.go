package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"leasecheck-backend/service"
)

// AnalysisHandler handles HTTP requests for contract analysis
type AnalysisHandler struct {
	analysisService *service.AnalysisService
	logger          *zap.Logger
	maxUploadSize   int64

	// background job workers
	wg sync.WaitGroup
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysisService *service.AnalysisService, logger *zap.Logger) *AnalysisHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisHandler{
		analysisService: analysisService,
		logger:          logger,
		maxUploadSize:   defaultMaxUploadSize,
	}
}

// RegisterRoutes mounts the health check and the /api routes
func (h *AnalysisHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/jurisdictions", h.ListJurisdictions)
		api.POST("/analyze", h.Analyze)
		api.POST("/ask", h.Ask)

		// Job endpoints
		api.POST("/jobs", h.StartJob)
		api.POST("/jobs/upload", h.UploadContract)
		api.GET("/jobs/:id", h.GetJobStatus)
		api.GET("/jobs/:id/report", h.GetJobReport)
		api.DELETE("/jobs/:id", h.CancelJob)
	}
}

// Wait blocks until every background job started by this handler returns
func (h *AnalysisHandler) Wait() {
	h.wg.Wait()
}

// AnalyzeRequest represents the request body for an analysis
type AnalyzeRequest struct {
	DocID        string `json:"doc_id"`
	Text         string `json:"text" binding:"required"`
	Jurisdiction string `json:"jurisdiction"`
}

// AskRequest represents the request body for a legislation question
type AskRequest struct {
	Question     string `json:"question" binding:"required"`
	Jurisdiction string `json:"jurisdiction"`
	JobID        string `json:"job_id"`
}

// Health handles GET /health
func (h *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ListJurisdictions handles GET /api/jurisdictions
func (h *AnalysisHandler) ListJurisdictions(c *gin.Context) {
	table := h.analysisService.Engine().Table()

	items := make([]gin.H, 0)
	for _, j := range table.Jurisdictions() {
		items = append(items, gin.H{
			"code":       j.Code,
			"name":       j.Name,
			"verified":   j.Verified,
			"rule_count": len(j.Rules),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"version":       table.Version(),
			"jurisdictions": items,
		},
	})
}

// Analyze handles POST /api/analyze and returns the report synchronously
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), service.AnalyzeRequest{
		DocID:        req.DocID,
		Text:         req.Text,
		Jurisdiction: req.Jurisdiction,
	})
	if err != nil {
		h.respondServiceError(c, err, "ANALYSIS_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"assessment": result.Assessment,
			"report":     result.Report,
		},
	})
}

// Ask handles POST /api/ask
func (h *AnalysisHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	var jobID uuid.UUID
	if req.JobID != "" {
		id, err := uuid.Parse(req.JobID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid job ID format")
			return
		}
		jobID = id
	}

	result, err := h.analysisService.Ask(c.Request.Context(), service.AskRequest{
		Question:     req.Question,
		Jurisdiction: req.Jurisdiction,
		JobID:        jobID,
	})
	if err != nil {
		h.respondServiceError(c, err, "RETRIEVAL_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// StartJob handles POST /api/jobs
func (h *AnalysisHandler) StartJob(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	h.startJob(c, service.AnalyzeRequest{
		DocID:        req.DocID,
		Text:         req.Text,
		Jurisdiction: req.Jurisdiction,
	})
}

// startJob creates the job, runs it in the background and answers 202
func (h *AnalysisHandler) startJob(c *gin.Context, req service.AnalyzeRequest) {
	// Create job (synchronous, fast)
	result, err := h.analysisService.StartJob(c.Request.Context(), req)
	if err != nil {
		h.respondServiceError(c, err, "JOB_CREATION_FAILED")
		return
	}

	// The job outlives the request, so it runs on a background context
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.analysisService.ProcessJob(context.Background(), result.JobID); err != nil {
			// stored in job.ErrorMessage; clients poll for it
			h.logger.Warn("Analysis job failed", zap.String("job_id", result.JobID.String()), zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"job_id":  result.JobID,
			"status":  "pending",
			"message": "Analysis job created. Poll /api/jobs/:id for updates.",
		},
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *AnalysisHandler) GetJobStatus(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.analysisService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, "RETRIEVAL_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}

// GetJobReport handles GET /api/jobs/:id/report
func (h *AnalysisHandler) GetJobReport(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	rep, err := h.analysisService.GetReport(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, "RETRIEVAL_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rep,
	})
}

// CancelJob handles DELETE /api/jobs/:id
func (h *AnalysisHandler) CancelJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	if err := h.analysisService.CancelJob(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, err, "CANCEL_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"job_id": id,
			"status": "cancelled",
		},
	})
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid job ID format")
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps service sentinels to HTTP status codes
func (h *AnalysisHandler) respondServiceError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, service.ErrEmptyDocument), errors.Is(err, service.ErrEmptyQuestion):
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, service.ErrJobNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis job not found")
	case errors.Is(err, service.ErrJobNotRunning):
		respondError(c, http.StatusConflict, "JOB_NOT_RUNNING", err.Error())
	case errors.Is(err, service.ErrReportNotReady):
		respondError(c, http.StatusConflict, "REPORT_NOT_READY", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusServiceUnavailable, "CANCELLED", err.Error())
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
