package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateIssueRequest struct {
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

type UpdateDescriptionRequest struct {
	IssueID     string `json:"-"`
	Description string `json:"description"`
}

type UpdateStatusRequest struct {
	IssueID string `json:"-"`
	Status  string `json:"status"`
}

type AddCommentRequest struct {
	IssueID string `json:"-"`
	Body    string `json:"body"`
}

type Service interface {
	Create(ctx context.Context, reporterID string, req CreateIssueRequest) (*Issue, error)
	GetByID(ctx context.Context, id string) (*Issue, error)
	UpdateDescription(ctx context.Context, req UpdateDescriptionRequest) (*Issue, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*Issue, error)
	AddComment(ctx context.Context, authorID string, req AddCommentRequest) (*Comment, error)
	ListComments(ctx context.Context, issueID string) ([]Comment, error)
	ListOpenByProject(ctx context.Context, projectID, excludeID snowflake.ID) ([]Issue, error)
}

var (
	ErrNotFound           = errors.New("issue_not_found")
	ErrInvalidID          = errors.New("invalid_issue_id")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidBody        = errors.New("invalid_comment_body")
)
