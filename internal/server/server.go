package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/config"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"github.com/smallbiznis/beacon/internal/observability"
	obsmiddleware "github.com/smallbiznis/beacon/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/beacon/internal/observability/metrics"
	obstracing "github.com/smallbiznis/beacon/internal/observability/tracing"
	"github.com/smallbiznis/beacon/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	issueSvc      issuedomain.Service
	assistSvc     assistdomain.Service
	assistLimiter *ratelimit.AssistLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	IssueSvc      issuedomain.Service
	AssistSvc     assistdomain.Service
	AssistLimiter *ratelimit.AssistLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		issueSvc:      p.IssueSvc,
		assistSvc:     p.AssistSvc,
		assistLimiter: p.AssistLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	issues := api.Group("/issues")
	{
		issues.POST("", s.CreateIssue)
		issues.GET("/:id", s.GetIssue)
		issues.PATCH("/:id/description", s.UpdateIssueDescription)
		issues.PATCH("/:id/status", s.UpdateIssueStatus)
		issues.POST("/:id/comments", s.AddComment)
		issues.GET("/:id/comments", s.ListComments)

		issues.POST("/:id/assist/:feature", s.AssistRateLimit(), s.GenerateAssist)
	}

	api.GET("/assist/quota", s.GetAssistQuota)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: s.Engine(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
