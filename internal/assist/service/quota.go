package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/clock"
	"github.com/smallbiznis/beacon/internal/config"
)

// Evaluator applies the quota policy. It reads the ledger and never mutates
// it; charging a unit is the orchestrator's job, and only after a generation
// actually happened.
type Evaluator struct {
	ledger assistdomain.Ledger
	quota  config.QuotaConfig
	clk    clock.Clock
}

func NewEvaluator(ledger assistdomain.Ledger, cfg config.Config, clk clock.Clock) *Evaluator {
	return &Evaluator{ledger: ledger, quota: cfg.Quota, clk: clk}
}

const (
	windowMinute = "minute"
	windowDay    = "day"
)

// Evaluate returns the allow/deny verdict with remaining budget figures.
func (e *Evaluator) Evaluate(ctx context.Context, userID snowflake.ID) (*assistdomain.Decision, error) {
	now := e.clk.Now()

	rec, err := e.ledger.GetOrCreateToday(ctx, userID)
	if err != nil {
		return nil, err
	}

	if rec.Count >= e.quota.PerDayLimit {
		resetAt := startOfNextDay(now)
		return &assistdomain.Decision{
			Allowed:         false,
			RemainingMinute: 0,
			RemainingDaily:  0,
			ResetAt:         &resetAt,
			Window:          windowDay,
		}, nil
	}
	remainingDaily := e.quota.PerDayLimit - rec.Count

	// The minute window is counted from per-event rows; the daily counter has
	// no minute-level resolution.
	windowStart := now.Add(-time.Minute)
	minuteCount, err := e.ledger.CountEventsSince(ctx, userID, windowStart)
	if err != nil {
		return nil, err
	}

	if minuteCount >= int64(e.quota.PerMinuteLimit) {
		oldest, err := e.ledger.OldestEventSince(ctx, userID, windowStart)
		if err != nil {
			return nil, err
		}
		resetAt := now.Add(time.Minute)
		if oldest != nil {
			// The window frees a unit when its oldest event ages out.
			resetAt = oldest.RecordedAt.Add(time.Minute)
		}
		return &assistdomain.Decision{
			Allowed:         false,
			RemainingMinute: 0,
			RemainingDaily:  remainingDaily,
			ResetAt:         &resetAt,
			Window:          windowMinute,
		}, nil
	}

	return &assistdomain.Decision{
		Allowed:         true,
		RemainingMinute: e.quota.PerMinuteLimit - int(minuteCount),
		RemainingDaily:  remainingDaily,
	}, nil
}

func startOfNextDay(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
}
