package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Ledger is the factual record of generation calls. Increment is the only
// mutation path for the daily count.
type Ledger interface {
	GetOrCreateToday(ctx context.Context, userID snowflake.ID) (*UsageDay, error)
	Increment(ctx context.Context, userID snowflake.ID, feature Feature) (*UsageDay, error)
	CountEventsSince(ctx context.Context, userID snowflake.ID, since time.Time) (int64, error)
	OldestEventSince(ctx context.Context, userID snowflake.ID, since time.Time) (*UsageEvent, error)
	PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ArtifactStore owns the cached-artifact slots on issue rows. Write sets
// content and cached_at in one statement; Clear empties both in one statement.
type ArtifactStore interface {
	Read(ctx context.Context, issueID snowflake.ID, slot Slot) (*CachedArtifact, error)
	Write(ctx context.Context, issueID snowflake.ID, slot Slot, content string) error
	Clear(ctx context.Context, issueID snowflake.ID, slots ...Slot) error
	WithTx(tx *gorm.DB) ArtifactStore
}
