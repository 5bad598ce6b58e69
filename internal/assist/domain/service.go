package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GenerateRequest asks the gateway for one assist artifact.
type GenerateRequest struct {
	UserID  string  `json:"-"`
	IssueID string  `json:"-"`
	Feature Feature `json:"-"`
}

// RemainingQuota reports budget left after a generation was charged.
type RemainingQuota struct {
	Minute int `json:"minute"`
	Daily  int `json:"daily"`
}

// Result is the gateway's uniform response envelope.
type Result struct {
	Feature   Feature         `json:"feature"`
	Content   string          `json:"content"`
	Cached    bool            `json:"cached"`
	CachedAt  *time.Time      `json:"cached_at,omitempty"`
	Remaining *RemainingQuota `json:"remaining,omitempty"`
}

// Decision is the quota policy verdict for one user at one instant.
type Decision struct {
	Allowed         bool       `json:"allowed"`
	RemainingMinute int        `json:"remaining_minute"`
	RemainingDaily  int        `json:"remaining_daily"`
	ResetAt         *time.Time `json:"reset_at,omitempty"`
	Window          string     `json:"-"`
}

// Service is the generation orchestrator: the single entry point the rest of
// the application calls for AI-assisted content.
type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)
	Quota(ctx context.Context, userID string) (*Decision, error)
}

// GenerationConfig is the structured prompt handed to the external generator.
type GenerationConfig struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Generator is the external generative-text capability. The orchestrator is
// its only caller.
type Generator interface {
	Generate(ctx context.Context, cfg GenerationConfig) (string, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrUnknownFeature   = errors.New("unknown_feature")
	ErrIssueNotFound    = errors.New("issue_not_found")
	ErrInputTooShort    = errors.New("input_too_short")
	ErrNotEnoughEntries = errors.New("not_enough_discussion_entries")
)

// QuotaExceededError carries the reset hint a denied caller needs to decide
// when to retry.
type QuotaExceededError struct {
	Window         string
	ResetAt        time.Time
	RemainingDaily int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota_exceeded: %s window, resets at %s", e.Window, e.ResetAt.Format(time.RFC3339))
}

// UpstreamError wraps a failed or unparseable external generation call.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream_generation_failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
