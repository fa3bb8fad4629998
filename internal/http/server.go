package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/subhub/internal/config"
	"github.com/jmehdipour/subhub/internal/dispatcher"
	"github.com/jmehdipour/subhub/internal/http/middleware"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/repository"
	"github.com/jmehdipour/subhub/internal/service/sweep"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Intake interface {
	Accept(ctx context.Context, ev model.Event) (dispatcher.Result, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, hoursBack int) (sweep.Stats, error)
}

// Deps are the services behind the HTTP surface. Attempts and Redis may be
// nil; the reports endpoint and rate limiting are then disabled.
type Deps struct {
	Intake   Intake
	Sweeper  Sweeper
	Ledger   repository.DeliveryLedger
	Attempts repository.CHAttemptsRepository
	Redis    *redis.Client
	Log      *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), echoMid.RequestID(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// provider webhook
	bodyLimit := cfg.Webhook.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}
	e.POST("/stripe/webhook", stripeWebhookHandler(cfg.Stripe.WebhookSecret, bodyLimit, d.Intake, d.Log))

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.Admin.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.Admin.RPS,
		KeyPrefix:      "rl:admin:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	hoursBack := cfg.Sweep.HoursBack
	if hoursBack <= 0 {
		hoursBack = 24
	}

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/sweep", sweepHandler(d.Sweeper, hoursBack))
	v1.GET("/ledger/:event_id", ledgerHandler(d.Ledger))
	if d.Attempts != nil {
		v1.GET("/reports/deliveries", listDeliveriesHandler(d.Attempts))
	}

	return &Server{e: e, log: d.Log}
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ServeHTTP exposes the router for in-process callers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }
