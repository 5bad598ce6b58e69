// Package domain holds the assist gateway's persistence models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageDay is the durable per-user, per-day generation counter. One row per
// (user_id, day); a new day starts a new row rather than resetting the old one.
type UsageDay struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	UserID        snowflake.ID `gorm:"not null;uniqueIndex:idx_usage_day_user_day"`
	Day           string       `gorm:"type:varchar(10);not null;uniqueIndex:idx_usage_day_user_day"`
	Count         int          `gorm:"not null;default:0"`
	LastUpdatedAt time.Time    `gorm:"not null"`
	CreatedAt     time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (UsageDay) TableName() string { return "ai_usage_days" }

// UsageEvent is one generation call. The trailing-minute window is counted from
// these rows; the daily counter alone cannot resolve minute-level activity.
type UsageEvent struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"not null;index:idx_usage_event_user_at,priority:1"`
	Feature    Feature      `gorm:"type:varchar(32);not null"`
	RecordedAt time.Time    `gorm:"not null;index:idx_usage_event_user_at,priority:2"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "ai_usage_events" }

// DayFormat renders a timestamp as a ledger day key.
func DayFormat(t time.Time) string { return t.Format("2006-01-02") }

// Feature identifies one assist capability.
type Feature string

const (
	FeatureSummary    Feature = "summary"
	FeatureSuggestion Feature = "suggestion"
	FeatureLabels     Feature = "labels"
	FeatureDuplicates Feature = "duplicates"
	FeatureDigest     Feature = "digest"
)

// ParseFeature validates a caller-supplied feature name.
func ParseFeature(raw string) (Feature, error) {
	switch Feature(raw) {
	case FeatureSummary, FeatureSuggestion, FeatureLabels, FeatureDuplicates, FeatureDigest:
		return Feature(raw), nil
	default:
		return "", ErrUnknownFeature
	}
}

// Slot names a cached-artifact location owned by an issue.
type Slot string

const (
	SlotSummary    Slot = "summary"
	SlotSuggestion Slot = "suggestion"
	SlotDigest     Slot = "digest"
)

// CachedArtifact is a fully populated artifact slot. Content and CachedAt are
// always set together; an empty slot is represented as a nil *CachedArtifact.
type CachedArtifact struct {
	Content  string
	CachedAt time.Time
}
