// Package domain contains persistence models for issues and their discussion.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Issue is the tracked work item. The ai_* column pairs are cached-artifact
// slots owned by the row; each pair is set or cleared together, never singly.
type Issue struct {
	ID          snowflake.ID                `gorm:"primaryKey"`
	ProjectID   snowflake.ID                `gorm:"not null;index"`
	ReporterID  snowflake.ID                `gorm:"not null"`
	AssigneeID  *snowflake.ID               `gorm:""`
	Title       string                      `gorm:"type:text;not null"`
	Description string                      `gorm:"type:text;not null"`
	Status      Status                      `gorm:"type:varchar(16);not null;default:open"`
	Priority    Priority                    `gorm:"type:varchar(16);not null;default:medium"`
	Labels      datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	AISummary            *string    `gorm:"type:text"`
	AISummaryCachedAt    *time.Time `gorm:""`
	AISuggestion         *string    `gorm:"type:text"`
	AISuggestionCachedAt *time.Time `gorm:""`
	AIDigest             *string    `gorm:"column:ai_digest;type:text"`
	AIDigestCachedAt     *time.Time `gorm:"column:ai_digest_cached_at"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Issue) TableName() string { return "issues" }

// Comment is one discussion entry on an issue.
type Comment struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	IssueID   snowflake.ID `gorm:"not null;index"`
	AuthorID  snowflake.ID `gorm:"not null"`
	Body      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Comment) TableName() string { return "issue_comments" }
