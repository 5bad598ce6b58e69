package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/clock"
	"gorm.io/gorm"
)

// slotColumns maps each slot to its content and cached_at columns on issues.
var slotColumns = map[assistdomain.Slot][2]string{
	assistdomain.SlotSummary:    {"ai_summary", "ai_summary_cached_at"},
	assistdomain.SlotSuggestion: {"ai_suggestion", "ai_suggestion_cached_at"},
	assistdomain.SlotDigest:     {"ai_digest", "ai_digest_cached_at"},
}

type artifactStore struct {
	db  *gorm.DB
	clk clock.Clock
}

// ProvideArtifactStore builds the issue-row backed cached-artifact store.
func ProvideArtifactStore(db *gorm.DB, clk clock.Clock) assistdomain.ArtifactStore {
	return &artifactStore{db: db, clk: clk}
}

func (s *artifactStore) WithTx(tx *gorm.DB) assistdomain.ArtifactStore {
	return &artifactStore{db: tx, clk: s.clk}
}

type slotRow struct {
	Content  *string
	CachedAt *time.Time
}

func (s *artifactStore) Read(ctx context.Context, issueID snowflake.ID, slot assistdomain.Slot) (*assistdomain.CachedArtifact, error) {
	cols, ok := slotColumns[slot]
	if !ok {
		return nil, fmt.Errorf("unknown artifact slot %q", slot)
	}

	var row slotRow
	err := s.db.WithContext(ctx).
		Table("issues").
		Select(fmt.Sprintf("%s AS content, %s AS cached_at", cols[0], cols[1])).
		Where("id = ?", issueID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, assistdomain.ErrIssueNotFound
		}
		return nil, err
	}

	// A slot is populated only when both halves are set.
	if row.Content == nil || *row.Content == "" || row.CachedAt == nil {
		return nil, nil
	}
	return &assistdomain.CachedArtifact{
		Content:  *row.Content,
		CachedAt: *row.CachedAt,
	}, nil
}

func (s *artifactStore) Write(ctx context.Context, issueID snowflake.ID, slot assistdomain.Slot, content string) error {
	cols, ok := slotColumns[slot]
	if !ok {
		return fmt.Errorf("unknown artifact slot %q", slot)
	}
	// Content and cached_at move together; an empty slot is cleared, not written.
	if content == "" {
		return fmt.Errorf("empty content for artifact slot %q", slot)
	}

	res := s.db.WithContext(ctx).
		Table("issues").
		Where("id = ?", issueID).
		Updates(map[string]interface{}{
			cols[0]: content,
			cols[1]: s.clk.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return assistdomain.ErrIssueNotFound
	}
	return nil
}

func (s *artifactStore) Clear(ctx context.Context, issueID snowflake.ID, slots ...assistdomain.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(slots)*2)
	for _, slot := range slots {
		cols, ok := slotColumns[slot]
		if !ok {
			return fmt.Errorf("unknown artifact slot %q", slot)
		}
		updates[cols[0]] = nil
		updates[cols[1]] = nil
	}

	// Clearing an already-empty slot is a no-op by construction.
	return s.db.WithContext(ctx).
		Table("issues").
		Where("id = ?", issueID).
		Updates(updates).Error
}
