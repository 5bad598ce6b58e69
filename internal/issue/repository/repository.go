package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"gorm.io/gorm"
)

// Repository provides issue and comment persistence.
type Repository interface {
	Create(ctx context.Context, issue *issuedomain.Issue) error
	FindByID(ctx context.Context, id snowflake.ID) (*issuedomain.Issue, error)
	FindOpenByProject(ctx context.Context, projectID, excludeID snowflake.ID) ([]issuedomain.Issue, error)
	CreateComment(ctx context.Context, comment *issuedomain.Comment) error
	ListComments(ctx context.Context, issueID snowflake.ID) ([]issuedomain.Comment, error)
	WithTx(tx *gorm.DB) Repository
}

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) Repository {
	return &repo{db: tx}
}

func (r *repo) Create(ctx context.Context, issue *issuedomain.Issue) error {
	return r.db.WithContext(ctx).Create(issue).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*issuedomain.Issue, error) {
	var issue issuedomain.Issue
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, issuedomain.ErrNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func (r *repo) FindOpenByProject(ctx context.Context, projectID, excludeID snowflake.ID) ([]issuedomain.Issue, error) {
	var issues []issuedomain.Issue
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND id <> ? AND status IN ?", projectID, excludeID,
			[]issuedomain.Status{issuedomain.StatusOpen, issuedomain.StatusInProgress}).
		Order("created_at DESC").
		Limit(50).
		Find(&issues).Error
	return issues, err
}

func (r *repo) CreateComment(ctx context.Context, comment *issuedomain.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *repo) ListComments(ctx context.Context, issueID snowflake.ID) ([]issuedomain.Comment, error) {
	var comments []issuedomain.Comment
	err := r.db.WithContext(ctx).
		Where("issue_id = ?", issueID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
