package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leasecheck-backend/retrieval"
	"leasecheck-backend/rules"
	"leasecheck-backend/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

const nswLease = "Residential Tenancies Act 2010 (NSW)\n\n" +
	"1. The bond is 6 weeks rent ($3,000)\n\n" +
	"2. No pets are allowed at the property\n"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupRouter(t *testing.T) (*gin.Engine, *AnalysisHandler, *service.AnalysisService) {
	t.Helper()
	table, err := rules.DefaultTable()
	require.NoError(t, err)
	corpus, err := retrieval.DefaultCorpus()
	require.NoError(t, err)

	svc := service.NewAnalysisService(rules.NewEngine(table),
		service.WithRetriever(retrieval.New(retrieval.NewMemoryIndex(corpus))))
	h := NewAnalysisHandler(svc, nil)

	r := gin.New()
	h.RegisterRoutes(r)
	return r, h, svc
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r, _, _ := setupRouter(t)
	w, _ := doRequest(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListJurisdictions(t *testing.T) {
	r, _, _ := setupRouter(t)
	w, env := doRequest(t, r, http.MethodGet, "/api/jurisdictions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)

	var data struct {
		Version       string `json:"version"`
		Jurisdictions []struct {
			Code     string `json:"code"`
			Verified bool   `json:"verified"`
		} `json:"jurisdictions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Version)

	codes := make([]string, 0, len(data.Jurisdictions))
	for _, j := range data.Jurisdictions {
		codes = append(codes, j.Code)
	}
	assert.Subset(t, codes, []string{"NSW", "QLD", "VIC"})
}

func TestAnalyze(t *testing.T) {
	r, _, _ := setupRouter(t)
	w, env := doRequest(t, r, http.MethodPost, "/api/analyze", gin.H{"doc_id": "lease-1", "text": nswLease})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)

	var data struct {
		Report struct {
			DocID     string `json:"doc_id"`
			RiskLevel string `json:"risk_level"`
			Issues    []struct {
				ClauseID string `json:"clause_id"`
				Severity string `json:"severity"`
			} `json:"issues_found"`
		} `json:"report"`
		Assessment struct {
			Verdicts []struct {
				ClauseID string `json:"clause_id"`
				Status   string `json:"status"`
			} `json:"verdicts"`
		} `json:"assessment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "lease-1", data.Report.DocID)
	assert.Equal(t, "HIGH", data.Report.RiskLevel)
	require.Len(t, data.Assessment.Verdicts, 3)
	assert.Equal(t, "illegal", data.Assessment.Verdicts[1].Status)
	assert.Equal(t, "illegal", data.Assessment.Verdicts[2].Status)
	require.NotEmpty(t, data.Report.Issues)
	assert.Equal(t, "HIGH", data.Report.Issues[0].Severity)
}

func TestAnalyzeValidation(t *testing.T) {
	r, _, _ := setupRouter(t)

	w, env := doRequest(t, r, http.MethodPost, "/api/analyze", gin.H{"jurisdiction": "NSW"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	w, env = doRequest(t, r, http.MethodPost, "/api/analyze", gin.H{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestAsk(t *testing.T) {
	r, _, _ := setupRouter(t)

	w, env := doRequest(t, r, http.MethodPost, "/api/ask", gin.H{"question": "The bond exceeds 4 weeks rent", "jurisdiction": "NSW"})
	require.Equal(t, http.StatusOK, w.Code)

	var data service.AskResult
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "NSW", data.Jurisdiction)
	assert.NotEmpty(t, data.Passages)
	assert.NotEmpty(t, data.Citations)

	w, env = doRequest(t, r, http.MethodPost, "/api/ask", gin.H{"question": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestAskWithJob(t *testing.T) {
	r, _, svc := setupRouter(t)
	ctx := context.Background()

	started, err := svc.StartJob(ctx, service.AnalyzeRequest{DocID: "lease-3", Text: nswLease})
	require.NoError(t, err)

	w, env := doRequest(t, r, http.MethodPost, "/api/ask", gin.H{"question": "Is my bond legal?", "job_id": started.JobID.String()})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REPORT_NOT_READY", env.Error.Code)

	require.NoError(t, svc.ProcessJob(ctx, started.JobID))

	w, env = doRequest(t, r, http.MethodPost, "/api/ask", gin.H{"question": "Is my bond legal?", "job_id": started.JobID.String()})
	require.Equal(t, http.StatusOK, w.Code)
	var data service.AskResult
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "lease-3", data.DocID)
	assert.Equal(t, "NSW", data.Jurisdiction)
	assert.Empty(t, data.Answer, "no generator configured")

	w, env = doRequest(t, r, http.MethodPost, "/api/ask", gin.H{"question": "Is my bond legal?", "job_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, env = doRequest(t, r, http.MethodPost, "/api/ask", gin.H{"question": "Is my bond legal?", "job_id": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}

func TestJobEndpoints(t *testing.T) {
	r, h, _ := setupRouter(t)

	w, env := doRequest(t, r, http.MethodPost, "/api/jobs", gin.H{"doc_id": "lease-2", "text": nswLease})
	require.Equal(t, http.StatusAccepted, w.Code)

	var created struct {
		JobID  uuid.UUID `json:"job_id"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)

	h.Wait()

	w, env = doRequest(t, r, http.MethodGet, "/api/jobs/"+created.JobID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job struct {
		Status string `json:"status"`
		DocID  string `json:"doc_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, "lease-2", job.DocID)

	w, env = doRequest(t, r, http.MethodGet, "/api/jobs/"+created.JobID.String()+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rep struct {
		RiskLevel string `json:"risk_level"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "HIGH", rep.RiskLevel)

	w, env = doRequest(t, r, http.MethodDelete, "/api/jobs/"+created.JobID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "JOB_NOT_RUNNING", env.Error.Code)
}

func TestJobEndpointsPendingAndCancel(t *testing.T) {
	r, _, svc := setupRouter(t)

	// created but not yet picked up by a worker
	started, err := svc.StartJob(context.Background(), service.AnalyzeRequest{Text: nswLease})
	require.NoError(t, err)
	path := "/api/jobs/" + started.JobID.String()

	w, env := doRequest(t, r, http.MethodGet, path+"/report", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REPORT_NOT_READY", env.Error.Code)

	w, _ = doRequest(t, r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doRequest(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "cancelled", job.Status)
}

func TestJobEndpointsBadIDs(t *testing.T) {
	r, _, _ := setupRouter(t)

	w, env := doRequest(t, r, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	w, env = doRequest(t, r, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, env = doRequest(t, r, http.MethodDelete, "/api/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
