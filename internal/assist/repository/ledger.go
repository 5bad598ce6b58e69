package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/clock"
	"github.com/smallbiznis/beacon/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledger struct {
	db    *gorm.DB
	genID *snowflake.Node
	clk   clock.Clock
}

// ProvideLedger builds the gorm-backed usage ledger.
func ProvideLedger(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) assistdomain.Ledger {
	return &ledger{db: db, genID: genID, clk: clk}
}

func (l *ledger) GetOrCreateToday(ctx context.Context, userID snowflake.ID) (*assistdomain.UsageDay, error) {
	if userID == 0 {
		return nil, assistdomain.ErrInvalidUser
	}
	now := l.clk.Now()
	day := assistdomain.DayFormat(now)

	var rec assistdomain.UsageDay
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rec = assistdomain.UsageDay{
		ID:            l.genID.Generate(),
		UserID:        userID,
		Day:           day,
		Count:         0,
		LastUpdatedAt: now,
		CreatedAt:     now,
	}
	// Concurrent first use of the day races here; the unique index on
	// (user_id, day) keeps the record singular and the loser re-reads.
	createErr := l.db.WithContext(ctx).Create(&rec).Error
	if createErr != nil && !db.IsDuplicateKeyErr(createErr) {
		return nil, createErr
	}

	err = l.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *ledger) Increment(ctx context.Context, userID snowflake.ID, feature assistdomain.Feature) (*assistdomain.UsageDay, error) {
	if userID == 0 {
		return nil, assistdomain.ErrInvalidUser
	}
	now := l.clk.Now()
	day := assistdomain.DayFormat(now)

	rec := assistdomain.UsageDay{
		ID:            l.genID.Generate(),
		UserID:        userID,
		Day:           day,
		Count:         1,
		LastUpdatedAt: now,
		CreatedAt:     now,
	}
	event := assistdomain.UsageEvent{
		ID:         l.genID.Generate(),
		UserID:     userID,
		Feature:    feature,
		RecordedAt: now,
	}

	// The counter and the event row commit together or not at all; the minute
	// window is counted from events and must not drift from the daily count.
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":           gorm.Expr("count + 1"),
				"last_updated_at": now,
			}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, err
	}

	var updated assistdomain.UsageDay
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&updated).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

func (l *ledger) CountEventsSince(ctx context.Context, userID snowflake.ID, since time.Time) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&assistdomain.UsageEvent{}).
		Where("user_id = ? AND recorded_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

func (l *ledger) OldestEventSince(ctx context.Context, userID snowflake.ID, since time.Time) (*assistdomain.UsageEvent, error) {
	var event assistdomain.UsageEvent
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND recorded_at >= ?", userID, since).
		Order("recorded_at ASC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (l *ledger) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&assistdomain.UsageEvent{})
	return res.RowsAffected, res.Error
}
