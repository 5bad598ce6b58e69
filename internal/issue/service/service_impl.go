package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/clock"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"github.com/smallbiznis/beacon/internal/issue/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      repository.Repository
	Artifacts assistdomain.ArtifactStore
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clk       clock.Clock
	repo      repository.Repository
	artifacts assistdomain.ArtifactStore
}

func New(p ServiceParam) issuedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("issue.service"),
		genID:     p.GenID,
		clk:       p.Clock,
		repo:      p.Repo,
		artifacts: p.Artifacts,
	}
}

func (s *Service) Create(ctx context.Context, reporterID string, req issuedomain.CreateIssueRequest) (*issuedomain.Issue, error) {
	reporter, err := parseID(reporterID, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	projectID, err := parseID(req.ProjectID, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, issuedomain.ErrInvalidTitle
	}

	now := s.clk.Now()
	issue := &issuedomain.Issue{
		ID:          s.genID.Generate(),
		ProjectID:   projectID,
		ReporterID:  reporter,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      issuedomain.StatusOpen,
		Priority:    normalizePriority(req.Priority),
		Labels:      datatypes.NewJSONSlice(req.Labels),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*issuedomain.Issue, error) {
	issueID, err := parseID(id, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, issueID)
}

// UpdateDescription rewrites the issue body and clears the summary and
// suggestion slots in the same transaction: those artifacts were derived from
// the old text and must never be served against the new one.
func (s *Service) UpdateDescription(ctx context.Context, req issuedomain.UpdateDescriptionRequest) (*issuedomain.Issue, error) {
	issueID, err := parseID(req.IssueID, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, issuedomain.ErrInvalidDescription
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&issuedomain.Issue{}).
			Where("id = ?", issueID).
			Updates(map[string]interface{}{
				"description": description,
				"updated_at":  s.clk.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return issuedomain.ErrNotFound
		}
		return s.artifacts.WithTx(tx).Clear(ctx, issueID,
			assistdomain.SlotSummary, assistdomain.SlotSuggestion)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, issueID)
}

// UpdateStatus changes workflow state only; status is not a generation input,
// so no cached slot is touched.
func (s *Service) UpdateStatus(ctx context.Context, req issuedomain.UpdateStatusRequest) (*issuedomain.Issue, error) {
	issueID, err := parseID(req.IssueID, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	status, ok := parseStatus(req.Status)
	if !ok {
		return nil, issuedomain.ErrInvalidStatus
	}

	res := s.db.WithContext(ctx).
		Model(&issuedomain.Issue{}).
		Where("id = ?", issueID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": s.clk.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, issuedomain.ErrNotFound
	}

	return s.repo.FindByID(ctx, issueID)
}

// AddComment appends a discussion entry and clears the digest slot in the
// same transaction.
func (s *Service) AddComment(ctx context.Context, authorID string, req issuedomain.AddCommentRequest) (*issuedomain.Comment, error) {
	author, err := parseID(authorID, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	issueID, err := parseID(req.IssueID, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, issuedomain.ErrInvalidBody
	}

	if _, err := s.repo.FindByID(ctx, issueID); err != nil {
		return nil, err
	}

	comment := &issuedomain.Comment{
		ID:        s.genID.Generate(),
		IssueID:   issueID,
		AuthorID:  author,
		Body:      body,
		CreatedAt: s.clk.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateComment(ctx, comment); err != nil {
			return err
		}
		return s.artifacts.WithTx(tx).Clear(ctx, issueID, assistdomain.SlotDigest)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, issueID string) ([]issuedomain.Comment, error) {
	id, err := parseID(issueID, issuedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, id)
}

func (s *Service) ListOpenByProject(ctx context.Context, projectID, excludeID snowflake.ID) ([]issuedomain.Issue, error) {
	return s.repo.FindOpenByProject(ctx, projectID, excludeID)
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func parseStatus(raw string) (issuedomain.Status, bool) {
	switch issuedomain.Status(strings.TrimSpace(raw)) {
	case issuedomain.StatusOpen:
		return issuedomain.StatusOpen, true
	case issuedomain.StatusInProgress:
		return issuedomain.StatusInProgress, true
	case issuedomain.StatusResolved:
		return issuedomain.StatusResolved, true
	case issuedomain.StatusClosed:
		return issuedomain.StatusClosed, true
	default:
		return "", false
	}
}

func normalizePriority(raw string) issuedomain.Priority {
	switch issuedomain.Priority(strings.TrimSpace(raw)) {
	case issuedomain.PriorityLow:
		return issuedomain.PriorityLow
	case issuedomain.PriorityHigh:
		return issuedomain.PriorityHigh
	case issuedomain.PriorityUrgent:
		return issuedomain.PriorityUrgent
	default:
		return issuedomain.PriorityMedium
	}
}
