package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/clock"
	"github.com/smallbiznis/beacon/internal/config"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	obsmetrics "github.com/smallbiznis/beacon/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	Clock     clock.Clock
	Ledger    assistdomain.Ledger
	Artifacts assistdomain.ArtifactStore
	Generator assistdomain.Generator
	Issues    issuedomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	cfg       config.Config
	log       *zap.Logger
	clk       clock.Clock
	ledger    assistdomain.Ledger
	artifacts assistdomain.ArtifactStore
	generator assistdomain.Generator
	issues    issuedomain.Service
	evaluator *Evaluator
	metrics   *obsmetrics.Metrics
}

func New(p ServiceParam) assistdomain.Service {
	return &Service{
		cfg:       p.Cfg,
		log:       p.Log.Named("assist.service"),
		clk:       p.Clock,
		ledger:    p.Ledger,
		artifacts: p.Artifacts,
		generator: p.Generator,
		issues:    p.Issues,
		evaluator: NewEvaluator(p.Ledger, p.Cfg, p.Clock),
		metrics:   p.Metrics,
	}
}

// Generate runs one request through the gateway:
// Validate -> QuotaCheck -> CacheCheck -> Generate -> Persist -> Respond.
// Exactly one terminal outcome is reached per invocation.
func (s *Service) Generate(ctx context.Context, req assistdomain.GenerateRequest) (*assistdomain.Result, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return nil, assistdomain.ErrInvalidUser
	}

	spec, ok := featureSpecs[req.Feature]
	if !ok {
		return nil, assistdomain.ErrUnknownFeature
	}

	issue, err := s.issues.GetByID(ctx, req.IssueID)
	if err != nil {
		return nil, err
	}

	// Validate
	var comments []issuedomain.Comment
	if req.Feature == assistdomain.FeatureDigest {
		comments, err = s.issues.ListComments(ctx, req.IssueID)
		if err != nil {
			return nil, err
		}
		if len(comments) < s.cfg.Quota.MinItemsForDigest {
			s.record(ctx, req.Feature, "validation_failed")
			return nil, assistdomain.ErrNotEnoughEntries
		}
	} else if len(strings.TrimSpace(issue.Description)) < s.cfg.Quota.MinInputLength {
		s.record(ctx, req.Feature, "validation_failed")
		return nil, assistdomain.ErrInputTooShort
	}

	// QuotaCheck: deny before touching the cache or the generator. Denial
	// mutates nothing.
	decision, err := s.evaluator.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.record(ctx, req.Feature, "quota_exceeded")
		if s.metrics != nil {
			s.metrics.RecordQuotaDenied(ctx, string(req.Feature), decision.Window)
		}
		resetAt := s.clk.Now()
		if decision.ResetAt != nil {
			resetAt = *decision.ResetAt
		}
		return nil, &assistdomain.QuotaExceededError{
			Window:         decision.Window,
			ResetAt:        resetAt,
			RemainingDaily: decision.RemainingDaily,
		}
	}

	// CacheCheck: a hit consumes no quota and skips the generator entirely.
	if spec.slot != "" {
		artifact, err := s.artifacts.Read(ctx, issue.ID, spec.slot)
		if err != nil {
			return nil, err
		}
		if artifact != nil {
			s.record(ctx, req.Feature, "cache_hit")
			if s.metrics != nil {
				s.metrics.RecordCacheHit(ctx, string(req.Feature))
			}
			cachedAt := artifact.CachedAt
			return &assistdomain.Result{
				Feature:  req.Feature,
				Content:  artifact.Content,
				Cached:   true,
				CachedAt: &cachedAt,
			}, nil
		}
	}

	// Generate
	var peers []issuedomain.Issue
	if req.Feature == assistdomain.FeatureDuplicates {
		peers, err = s.issues.ListOpenByProject(ctx, issue.ProjectID, issue.ID)
		if err != nil {
			return nil, err
		}
	}

	genCtx := ctx
	if s.cfg.AI.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.AI.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	content, err := s.generator.Generate(genCtx, assistdomain.GenerationConfig{
		System:      spec.system,
		Prompt:      buildPrompt(req.Feature, issue, comments, peers),
		Temperature: spec.temperature,
		MaxTokens:   spec.maxTokens,
	})
	if err != nil {
		// A failed call must not consume quota.
		s.record(ctx, req.Feature, "upstream_failed")
		if s.metrics != nil {
			s.metrics.RecordUpstreamFailure(ctx, string(req.Feature))
		}
		return nil, &assistdomain.UpstreamError{Err: err}
	}

	content, err = normalizeOutput(req.Feature, content)
	if err != nil {
		s.record(ctx, req.Feature, "upstream_failed")
		if s.metrics != nil {
			s.metrics.RecordUpstreamFailure(ctx, string(req.Feature))
		}
		return nil, &assistdomain.UpstreamError{Err: err}
	}

	// Persist: ledger first, then the slot. The ledger counts attempts that
	// produced a result, so an increment followed by a failed cache write
	// still reflects reality.
	if _, err := s.ledger.Increment(ctx, userID, req.Feature); err != nil {
		return nil, err
	}
	if spec.slot != "" {
		if err := s.artifacts.Write(ctx, issue.ID, spec.slot, content); err != nil {
			return nil, err
		}
	}

	if pruned, err := s.ledger.PruneEventsBefore(ctx, s.clk.Now().Add(-25*time.Hour)); err != nil {
		s.log.Warn("usage event prune failed", zap.Error(err))
	} else if pruned > 0 {
		s.log.Debug("pruned usage events", zap.Int64("count", pruned))
	}

	s.record(ctx, req.Feature, "generated")
	return &assistdomain.Result{
		Feature: req.Feature,
		Content: content,
		Cached:  false,
		Remaining: &assistdomain.RemainingQuota{
			Minute: decision.RemainingMinute - 1,
			Daily:  decision.RemainingDaily - 1,
		},
	}, nil
}

// Quota reports the caller's current budget without consuming anything.
func (s *Service) Quota(ctx context.Context, rawUserID string) (*assistdomain.Decision, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(rawUserID))
	if err != nil || userID == 0 {
		return nil, assistdomain.ErrInvalidUser
	}
	return s.evaluator.Evaluate(ctx, userID)
}

// normalizeOutput validates classifier output: labels and duplicates must be
// JSON arrays. Free-form features pass through trimmed.
func normalizeOutput(feature assistdomain.Feature, content string) (string, error) {
	content = strings.TrimSpace(content)
	switch feature {
	case assistdomain.FeatureLabels, assistdomain.FeatureDuplicates:
		cleaned := stripCodeFences(content)
		var items []string
		if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
			return "", err
		}
		normalized, err := json.Marshal(items)
		if err != nil {
			return "", err
		}
		return string(normalized), nil
	default:
		if content == "" {
			return "", errEmptyGeneration
		}
		return content, nil
	}
}

// errEmptyGeneration marks a generator reply with no usable text. Writing it
// would set cached_at on an empty slot and turn every later request into a
// paid miss.
var errEmptyGeneration = errors.New("empty generation output")

// stripCodeFences removes a surrounding markdown fence, which models add to
// JSON answers despite instructions.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func (s *Service) record(ctx context.Context, feature assistdomain.Feature, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAssistRequest(ctx, string(feature), outcome)
	}
}
