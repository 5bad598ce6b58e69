package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
)

type createIssueRequest struct {
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

func (s *Server) CreateIssue(c *gin.Context) {
	var req createIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.issueSvc.Create(c.Request.Context(), currentUserID(c), issuedomain.CreateIssueRequest{
		ProjectID:   strings.TrimSpace(req.ProjectID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    strings.TrimSpace(req.Priority),
		Labels:      req.Labels,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetIssue(c *gin.Context) {
	resp, err := s.issueSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateDescriptionRequest struct {
	Description string `json:"description"`
}

func (s *Server) UpdateIssueDescription(c *gin.Context) {
	var req updateDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.issueSvc.UpdateDescription(c.Request.Context(), issuedomain.UpdateDescriptionRequest{
		IssueID:     strings.TrimSpace(c.Param("id")),
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateIssueStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.issueSvc.UpdateStatus(c.Request.Context(), issuedomain.UpdateStatusRequest{
		IssueID: strings.TrimSpace(c.Param("id")),
		Status:  strings.TrimSpace(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type addCommentRequest struct {
	Body string `json:"body"`
}

func (s *Server) AddComment(c *gin.Context) {
	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.issueSvc.AddComment(c.Request.Context(), currentUserID(c), issuedomain.AddCommentRequest{
		IssueID: strings.TrimSpace(c.Param("id")),
		Body:    req.Body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListComments(c *gin.Context) {
	resp, err := s.issueSvc.ListComments(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
