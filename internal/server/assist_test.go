package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistService struct {
	generateResult *assistdomain.Result
	generateErr    error
	quotaResult    *assistdomain.Decision
	quotaErr       error

	lastRequest assistdomain.GenerateRequest
	calls       int
}

func (f *fakeAssistService) Generate(ctx context.Context, req assistdomain.GenerateRequest) (*assistdomain.Result, error) {
	f.calls++
	f.lastRequest = req
	return f.generateResult, f.generateErr
}

func (f *fakeAssistService) Quota(ctx context.Context, userID string) (*assistdomain.Decision, error) {
	return f.quotaResult, f.quotaErr
}

type fakeIssueService struct{}

func (f *fakeIssueService) Create(context.Context, string, issuedomain.CreateIssueRequest) (*issuedomain.Issue, error) {
	return nil, nil
}
func (f *fakeIssueService) GetByID(context.Context, string) (*issuedomain.Issue, error) {
	return nil, nil
}
func (f *fakeIssueService) UpdateDescription(context.Context, issuedomain.UpdateDescriptionRequest) (*issuedomain.Issue, error) {
	return nil, nil
}
func (f *fakeIssueService) UpdateStatus(context.Context, issuedomain.UpdateStatusRequest) (*issuedomain.Issue, error) {
	return nil, nil
}
func (f *fakeIssueService) AddComment(context.Context, string, issuedomain.AddCommentRequest) (*issuedomain.Comment, error) {
	return nil, nil
}
func (f *fakeIssueService) ListComments(context.Context, string) ([]issuedomain.Comment, error) {
	return nil, nil
}
func (f *fakeIssueService) ListOpenByProject(context.Context, snowflake.ID, snowflake.ID) ([]issuedomain.Issue, error) {
	return nil, nil
}

func newTestServer(assistSvc assistdomain.Service) *Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:    router,
		issueSvc:  &fakeIssueService{},
		assistSvc: assistSvc,
	}
	srv.registerAPIRoutes()
	return srv
}

func TestGenerateAssist_Served(t *testing.T) {
	fake := &fakeAssistService{
		generateResult: &assistdomain.Result{
			Feature: assistdomain.FeatureSummary,
			Content: "a short summary",
			Remaining: &assistdomain.RemainingQuota{
				Minute: 4,
				Daily:  99,
			},
		},
	}
	srv := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/issues/123/assist/summary", nil)
	req.Header.Set("X-User-ID", "42")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "42", fake.lastRequest.UserID)
	assert.Equal(t, "123", fake.lastRequest.IssueID)
	assert.Equal(t, assistdomain.FeatureSummary, fake.lastRequest.Feature)

	var body struct {
		Data assistdomain.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "a short summary", body.Data.Content)
	require.NotNil(t, body.Data.Remaining)
	assert.Equal(t, 99, body.Data.Remaining.Daily)
}

func TestGenerateAssist_MissingUserHeader(t *testing.T) {
	fake := &fakeAssistService{}
	srv := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/issues/123/assist/summary", nil)
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Zero(t, fake.calls)
}

func TestGenerateAssist_UnknownFeature(t *testing.T) {
	fake := &fakeAssistService{}
	srv := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/issues/123/assist/poetry", nil)
	req.Header.Set("X-User-ID", "42")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, fake.calls)
}

func TestGenerateAssist_QuotaExceededSetsRetryAfter(t *testing.T) {
	fake := &fakeAssistService{
		generateErr: &assistdomain.QuotaExceededError{
			Window:  "minute",
			ResetAt: time.Now().Add(30 * time.Second),
		},
	}
	srv := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/issues/123/assist/summary", nil)
	req.Header.Set("X-User-ID", "42")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "quota_exceeded", body.Error.Type)
	assert.NotNil(t, body.Error.ResetAt)
}

func TestGenerateAssist_UpstreamFailure(t *testing.T) {
	fake := &fakeAssistService{
		generateErr: &assistdomain.UpstreamError{Err: context.DeadlineExceeded},
	}
	srv := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/api/issues/123/assist/summary", nil)
	req.Header.Set("X-User-ID", "42")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestGetAssistQuota(t *testing.T) {
	fake := &fakeAssistService{
		quotaResult: &assistdomain.Decision{
			Allowed:         true,
			RemainingMinute: 3,
			RemainingDaily:  80,
		},
	}
	srv := newTestServer(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/assist/quota", nil)
	req.Header.Set("X-User-ID", "42")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data assistdomain.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Data.Allowed)
	assert.Equal(t, 3, body.Data.RemainingMinute)
	assert.Equal(t, 80, body.Data.RemainingDaily)
}
