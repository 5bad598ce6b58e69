package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
)

func (s *Server) GenerateAssist(c *gin.Context) {
	feature, err := assistdomain.ParseFeature(strings.TrimSpace(c.Param("feature")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("assist_feature", string(feature))

	resp, err := s.assistSvc.Generate(c.Request.Context(), assistdomain.GenerateRequest{
		UserID:  currentUserID(c),
		IssueID: strings.TrimSpace(c.Param("id")),
		Feature: feature,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAssistQuota(c *gin.Context) {
	resp, err := s.assistSvc.Quota(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
