package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/analytics"
	"tradejournal/internal/domain"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
)

// Journal is the application surface served over HTTP.
type Journal interface {
	RecordTrade(ctx context.Context, userID string, trade *domain.Trade, known pnl.KnownFigure) (*domain.Trade, error)
	CloseTrade(ctx context.Context, tradeID string, exitPrice float64, exitTime time.Time) (*domain.Trade, error)
	ImportTrades(ctx context.Context, userID string, source domain.DataSource, rows []domain.ImportRow) (*domain.ImportResult, error)
	Trades(ctx context.Context, userID string) ([]*domain.Trade, error)
	TradesBetween(ctx context.Context, userID string, from, to time.Time) ([]*domain.Trade, error)
	Dashboard(ctx context.Context, userID string) (*domain.AccountMetrics, error)
	Diagnostics(ctx context.Context, userID string) *domain.ValidationReport
	Performance(ctx context.Context, userID string) (*analytics.Performance, error)
	ConfigureAccount(ctx context.Context, cfg *domain.AccountConfig) error
	RecordFirstPayout(ctx context.Context, userID string) (*domain.AccountConfig, error)
	Location(ctx context.Context, userID string) (*time.Location, error)
}

// ServerConfig describes the HTTP server dependencies.
type ServerConfig struct {
	Addr    string
	Journal Journal
	Logger  ports.Logger
}

// Server exposes the journal JSON API.
type Server struct {
	addr   string
	router *gin.Engine
	logger ports.Logger
}

// NewServer builds the router and registers every route.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Journal == nil {
		return nil, errors.New("http server requires a journal service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = ports.NopLogger{}
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h := &handlers{journal: cfg.Journal, logger: cfg.Logger}
	h.register(router.Group("/api/v1"))

	return &Server{addr: cfg.Addr, router: router, logger: cfg.Logger}, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": s.addr})

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info(ctx, "HTTP server shutting down")
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger(logger ports.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug(c.Request.Context(), "HTTP request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"ip":       c.ClientIP(),
			"duration": time.Since(start).String(),
		})
	}
}
