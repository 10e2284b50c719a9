// Package server exposes the borrower, lender and dashboard operations over
// HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/metrics"
	"github.com/parzival1821/CredBook/internal/server/handler"
	"github.com/parzival1821/CredBook/internal/server/middleware"
	"github.com/parzival1821/CredBook/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // empty disables auth
	RateLimit       int    // requests per window per client; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates every HTTP handler the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Orderbook *handler.OrderbookHandler
	Borrow    *handler.BorrowHandler
	Lend      *handler.LendHandler
	Accounts  *handler.AccountHandler
	History   *handler.HistoryHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in CORS, logging, auth and
// rate limiting. limiter, hub and m may be nil.
func NewServer(
	cfg Config,
	handlers Handlers,
	hub *ws.Hub,
	limiter domain.RateLimiter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	logger = logger.With(slog.String("component", "http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(cfg, handlers, hub, limiter, m, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Borrow and relay flows wait for confirmations.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed and wrapped handler.
func NewHandler(
	cfg Config,
	handlers Handlers,
	hub *ws.Hub,
	limiter domain.RateLimiter,
	m *metrics.Metrics,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/orderbook", handlers.Orderbook.GetOrderbook)
	mux.HandleFunc("POST /api/orderbook/refresh", handlers.Orderbook.Refresh)
	mux.HandleFunc("POST /api/orderbook/requote", handlers.Orderbook.Requote)
	mux.HandleFunc("GET /api/pools", handlers.Orderbook.ListPools)
	mux.HandleFunc("GET /api/dashboard", handlers.Orderbook.GetDashboard)

	mux.HandleFunc("POST /api/borrow/quote", handlers.Borrow.Quote)
	mux.HandleFunc("POST /api/borrow", handlers.Borrow.Borrow)
	mux.HandleFunc("POST /api/repay", handlers.Borrow.Repay)

	mux.HandleFunc("POST /api/lend/supply", handlers.Lend.Supply)
	mux.HandleFunc("POST /api/lend/withdraw", handlers.Lend.Withdraw)

	mux.HandleFunc("GET /api/accounts/{address}", handlers.Accounts.GetAccount)

	mux.HandleFunc("GET /api/transactions", handlers.History.ListTransactions)
	mux.HandleFunc("GET /api/oracle/price", handlers.History.GetOraclePrice)
	mux.HandleFunc("GET /api/archives", handlers.History.ListArchives)

	mux.Handle("GET /metrics", m.Handler())
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger, m)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Run serves until ctx is done, then shuts down gracefully within grace.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
