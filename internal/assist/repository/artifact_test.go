package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/clock"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedIssue(t *testing.T, db *gorm.DB, node *snowflake.Node) *issuedomain.Issue {
	t.Helper()
	issue := &issuedomain.Issue{
		ID:          node.Generate(),
		ProjectID:   node.Generate(),
		ReporterID:  node.Generate(),
		Title:       "broken login flow",
		Description: "login fails when the session cookie is stale",
		Status:      issuedomain.StatusOpen,
		Priority:    issuedomain.PriorityMedium,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(issue).Error)
	return issue
}

func TestArtifactStore_WriteThenRead(t *testing.T) {
	db := newTestDB(t, &issuedomain.Issue{})
	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := ProvideArtifactStore(db, clk)
	ctx := context.Background()

	issue := seedIssue(t, db, node)

	// Empty slot reads as nil, not as a partial artifact.
	artifact, err := store.Read(ctx, issue.ID, assistdomain.SlotSummary)
	require.NoError(t, err)
	assert.Nil(t, artifact)

	require.NoError(t, store.Write(ctx, issue.ID, assistdomain.SlotSummary, "a concise summary"))

	artifact, err = store.Read(ctx, issue.ID, assistdomain.SlotSummary)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "a concise summary", artifact.Content)
	assert.True(t, artifact.CachedAt.Equal(clk.Now()), "cached_at should match the write time")

	// Other slots are unaffected.
	digest, err := store.Read(ctx, issue.ID, assistdomain.SlotDigest)
	require.NoError(t, err)
	assert.Nil(t, digest)
}

func TestArtifactStore_WriteUnknownIssue(t *testing.T) {
	db := newTestDB(t, &issuedomain.Issue{})
	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Now())
	store := ProvideArtifactStore(db, clk)

	err := store.Write(context.Background(), node.Generate(), assistdomain.SlotSummary, "orphan")
	assert.ErrorIs(t, err, assistdomain.ErrIssueNotFound)
}

func TestArtifactStore_WriteRejectsEmptyContent(t *testing.T) {
	db := newTestDB(t, &issuedomain.Issue{})
	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := ProvideArtifactStore(db, clk)
	ctx := context.Background()

	issue := seedIssue(t, db, node)

	// An empty write would set cached_at with no content, splitting the pair.
	err := store.Write(ctx, issue.ID, assistdomain.SlotSummary, "")
	require.Error(t, err)

	var raw struct {
		AISummary         *string
		AISummaryCachedAt *time.Time
	}
	require.NoError(t, db.Table("issues").
		Select("ai_summary, ai_summary_cached_at").
		Where("id = ?", issue.ID).
		Take(&raw).Error)
	assert.Nil(t, raw.AISummary)
	assert.Nil(t, raw.AISummaryCachedAt)
}

func TestArtifactStore_ClearSelectedSlots(t *testing.T) {
	db := newTestDB(t, &issuedomain.Issue{})
	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := ProvideArtifactStore(db, clk)
	ctx := context.Background()

	issue := seedIssue(t, db, node)
	require.NoError(t, store.Write(ctx, issue.ID, assistdomain.SlotSummary, "summary"))
	require.NoError(t, store.Write(ctx, issue.ID, assistdomain.SlotSuggestion, "suggestion"))
	require.NoError(t, store.Write(ctx, issue.ID, assistdomain.SlotDigest, "digest"))

	require.NoError(t, store.Clear(ctx, issue.ID, assistdomain.SlotSummary, assistdomain.SlotSuggestion))

	for _, slot := range []assistdomain.Slot{assistdomain.SlotSummary, assistdomain.SlotSuggestion} {
		artifact, err := store.Read(ctx, issue.ID, slot)
		require.NoError(t, err)
		assert.Nil(t, artifact, "slot %s should be empty", slot)
	}

	digest, err := store.Read(ctx, issue.ID, assistdomain.SlotDigest)
	require.NoError(t, err)
	require.NotNil(t, digest)
	assert.Equal(t, "digest", digest.Content)

	// Both halves of a cleared pair are gone at the column level.
	var raw struct {
		AISummary         *string
		AISummaryCachedAt *time.Time
	}
	require.NoError(t, db.Table("issues").
		Select("ai_summary, ai_summary_cached_at").
		Where("id = ?", issue.ID).
		Take(&raw).Error)
	assert.Nil(t, raw.AISummary)
	assert.Nil(t, raw.AISummaryCachedAt)
}

func TestArtifactStore_ClearEmptySlotIsNoop(t *testing.T) {
	db := newTestDB(t, &issuedomain.Issue{})
	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Now())
	store := ProvideArtifactStore(db, clk)
	ctx := context.Background()

	issue := seedIssue(t, db, node)

	require.NoError(t, store.Clear(ctx, issue.ID, assistdomain.SlotDigest))
	require.NoError(t, store.Clear(ctx, issue.ID))
}
