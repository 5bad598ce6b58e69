package server

import (
	"errors"
	"net/http"
	"testing"
	"time"

	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	resetAt := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"nil", nil, http.StatusInternalServerError, "internal_error"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"invalid user", assistdomain.ErrInvalidUser, http.StatusUnauthorized, "unauthorized"},
		{"unknown feature", assistdomain.ErrUnknownFeature, http.StatusBadRequest, "validation_error"},
		{"input too short", assistdomain.ErrInputTooShort, http.StatusBadRequest, "validation_error"},
		{"not enough discussion", assistdomain.ErrNotEnoughEntries, http.StatusBadRequest, "validation_error"},
		{"invalid title", issuedomain.ErrInvalidTitle, http.StatusBadRequest, "validation_error"},
		{"issue missing", assistdomain.ErrIssueNotFound, http.StatusNotFound, "not_found"},
		{"issue domain missing", issuedomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"gorm missing", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{
			"quota exceeded",
			&assistdomain.QuotaExceededError{Window: "minute", ResetAt: resetAt},
			http.StatusTooManyRequests, "quota_exceeded",
		},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{
			"upstream failed",
			&assistdomain.UpstreamError{Err: errors.New("model overloaded")},
			http.StatusBadGateway, "upstream_failed",
		},
		{"unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, payload.Type)
		})
	}
}

func TestMapError_QuotaExceededCarriesResetAt(t *testing.T) {
	resetAt := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	status, payload := mapError(&assistdomain.QuotaExceededError{Window: "day", ResetAt: resetAt})

	assert.Equal(t, http.StatusTooManyRequests, status)
	if assert.NotNil(t, payload.ResetAt) {
		assert.True(t, payload.ResetAt.Equal(resetAt))
	}
}

func TestMapError_WrappedErrorsStillMatch(t *testing.T) {
	wrapped := &assistdomain.UpstreamError{Err: assistdomain.ErrInputTooShort}
	// The wrapper wins over the wrapped sentinel.
	status, payload := mapError(wrapped)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "upstream_failed", payload.Type)
}
