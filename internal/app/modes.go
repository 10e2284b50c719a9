package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/parzival1821/CredBook/internal/server"
	"github.com/parzival1821/CredBook/internal/server/handler"
	"github.com/parzival1821/CredBook/internal/server/ws"
)

const shutdownGrace = 15 * time.Second

// ServerMode serves the HTTP API and WebSocket hub while keeping the
// dashboard view refreshed.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "server mode: serving dashboard API",
		slog.Int("port", a.cfg.Server.Port),
		slog.Bool("read_only", deps.Account == (common.Address{})),
	)
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return settle(g.Wait())
}

// RelayMode only keeps the oracle price fresh.
func (a *App) RelayMode(ctx context.Context, deps *Dependencies) error {
	if deps.Relay == nil {
		return errors.New("app: relay mode requires relay.oracle and relay.feed_id")
	}
	a.logger.InfoContext(ctx, "relay mode: keeping oracle price fresh",
		slog.String("feed_id", a.cfg.Relay.FeedID),
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Relay.Run(ctx) })
	return settle(g.Wait())
}

// FullMode runs the API server, the price relay and history archiving
// together. Components that are not configured are skipped.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "full mode: server, relay and archive",
		slog.Bool("relay", deps.Relay != nil),
		slog.Bool("archive", deps.Archive != nil),
	)
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	if deps.Relay != nil {
		g.Go(func() error { return deps.Relay.Run(ctx) })
	}
	if deps.Archive != nil {
		g.Go(func() error { return deps.Archive.Run(ctx) })
	}
	return settle(g.Wait())
}

// startHTTPServer builds the handlers, hub and server and launches them,
// along with the dashboard refresh loop, on g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	startedAt := time.Now().UTC()
	loanDecimals := uint8(a.cfg.Chain.LoanDecimals)

	info := handler.StatusInfo{
		Mode:            a.cfg.Mode,
		ChainID:         a.cfg.Chain.ChainID,
		Orderbook:       deps.Orderbook.Address().Hex(),
		ReadOnly:        deps.Account == (common.Address{}),
		CollateralToken: deps.Collateral.Address().Hex(),
		LoanToken:       deps.Loan.Address().Hex(),
		StartedAt:       startedAt,
	}
	if !info.ReadOnly {
		info.Account = deps.Account.Hex()
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks),
		Status:    handler.NewStatusHandler(info),
		Orderbook: handler.NewOrderbookHandler(deps.Book, deps.Dashboard, deps.Borrow, loanDecimals, a.logger),
		Borrow:    handler.NewBorrowHandler(deps.Borrow, uint8(a.cfg.Chain.CollateralDecimals), a.logger),
		Lend:      handler.NewLendHandler(deps.Lend, a.logger),
		Accounts:  handler.NewAccountHandler(deps.Accounts, a.logger),
		History: handler.NewHistoryHandler(handler.HistoryDeps{
			Txs:           deps.TxStore,
			Prices:        deps.PriceCache,
			Oracle:        deps.Oracle,
			Blobs:         deps.BlobReader,
			FeedID:        a.cfg.Relay.FeedID,
			PriceDecimals: a.cfg.Relay.PriceDecimals,
		}, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      startedAt,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Snapshot: func(context.Context) (any, error) {
			return deps.Dashboard.View(), nil
		},
	}, a.logger)

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, deps.Metrics, a.logger)

	g.Go(func() error { return deps.Dashboard.Run(ctx) })
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx, shutdownGrace) })
}

// settle treats cancellation as a clean stop.
func settle(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
