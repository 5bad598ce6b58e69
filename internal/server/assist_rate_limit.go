package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/beacon/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/beacon/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	rateLimitReasonUserRate           = "user-rate"
	rateLimitReasonInflightInProgress = "generation-in-progress"
)

// AssistRateLimit runs before any quota accounting. A Redis outage denies
// the request rather than letting an unmetered flood through.
func (s *Server) AssistRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.assistLimiter == nil || !s.assistLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID := currentUserID(c)
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.assistLimiter.AllowUser(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("assist rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyAssistRateLimit(c, endpoint, rateLimitReasonUserRate, s.obsMetrics)
			return
		}

		issueID := strings.TrimSpace(c.Param("id"))
		feature := strings.TrimSpace(c.Param("feature"))
		token, acquired, err := s.assistLimiter.TryLockIssueFeature(ctx, issueID, feature)
		if err != nil {
			logger.FromContext(ctx).Warn("assist in-flight lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !acquired {
			denyAssistRateLimit(c, endpoint, rateLimitReasonInflightInProgress, s.obsMetrics)
			return
		}
		if token != "" {
			defer func() {
				if err := s.assistLimiter.ReleaseIssueFeature(ctx, issueID, feature, token); err != nil {
					logger.FromContext(ctx).Warn("assist in-flight unlock failed", zap.Error(err))
				}
			}()
		}

		c.Next()
	}
}

func denyAssistRateLimit(c *gin.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("assist rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	if metrics != nil {
		metrics.RecordRateLimitDenied(ctx, endpoint, reason)
	}

	c.Header("Retry-After", "1")
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
