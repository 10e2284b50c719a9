package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/parzival1821/CredBook/internal/blob/s3"
	"github.com/parzival1821/CredBook/internal/cache/redis"
	"github.com/parzival1821/CredBook/internal/chain"
	"github.com/parzival1821/CredBook/internal/config"
	"github.com/parzival1821/CredBook/internal/crypto"
	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/metrics"
	"github.com/parzival1821/CredBook/internal/notify"
	"github.com/parzival1821/CredBook/internal/platform/pyth"
	"github.com/parzival1821/CredBook/internal/server/handler"
	"github.com/parzival1821/CredBook/internal/service"
	"github.com/parzival1821/CredBook/internal/store/postgres"
)

// Dependencies bundles everything the modes run. Optional backends are nil
// interfaces when not configured.
type Dependencies struct {
	Metrics *metrics.Metrics
	Account common.Address
	Checks  map[string]handler.Check

	// Chain bindings
	Orderbook  domain.Orderbook
	Collateral domain.Token
	Loan       domain.Token
	Pools      []domain.LendingPool
	Oracle     domain.PriceOracle
	Feed       domain.PriceFeed

	// Stores
	TxStore    domain.TxStore
	AuditStore domain.AuditStore

	// Caches and bus
	BookCache   domain.OrderbookCache
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Notifier *notify.Notifier

	// Services
	Recorder  *service.TxRecorder
	Book      *service.OrderbookService
	Accounts  *service.AccountService
	Dashboard *service.Dashboard
	Borrow    *service.BorrowService
	Lend      *service.LendService
	Relay     *service.PriceRelay
	Archive   *service.ArchiveService
}

// Wire constructs every dependency from cfg. The returned cleanup releases
// them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  map[string]handler.Check{},
	}

	// --- Chain ---
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Chain.CallTimeout.Duration)
	client, err := chain.Dial(dialCtx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	cancel()
	if err != nil {
		return fail("chain", err)
	}
	closers = append(closers, client.Close)
	deps.Checks["chain"] = func(ctx context.Context) error {
		_, err := client.BlockNumber(ctx)
		return err
	}

	// A nil *crypto.Signer must never reach the bindings as a non-nil
	// TxSigner, so the interface stays nil without a key.
	var signer chain.TxSigner
	if cfg.Wallet.HasKey() {
		s, err := crypto.LoadSigner(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		}, cfg.Chain.ChainID)
		if err != nil {
			return fail("signer", err)
		}
		signer = s
		deps.Account = s.Address()
		logger.InfoContext(ctx, "signer loaded", slog.String("account", deps.Account.Hex()))
	} else {
		logger.WarnContext(ctx, "no wallet key configured, serving read-only")
	}

	loanDecimals := uint8(cfg.Chain.LoanDecimals)
	poolDecimals := make(map[common.Address]uint8, len(cfg.Chain.Pools))
	for _, p := range cfg.Chain.Pools {
		addr := common.HexToAddress(p.Address)
		poolDecimals[addr] = loanDecimals
		deps.Pools = append(deps.Pools, chain.NewPool(addr, p.Name, client, signer))
	}
	deps.Orderbook = chain.NewOrderbook(common.HexToAddress(cfg.Chain.Orderbook), client, signer, loanDecimals, poolDecimals)
	deps.Collateral = chain.NewToken(common.HexToAddress(cfg.Chain.CollateralToken),
		cfg.Chain.CollateralSymbol, uint8(cfg.Chain.CollateralDecimals), client, signer)
	deps.Loan = chain.NewToken(common.HexToAddress(cfg.Chain.LoanToken),
		cfg.Chain.LoanSymbol, loanDecimals, client, signer)

	if cfg.Relay.Oracle != "" {
		fee, ok := new(big.Int).SetString(strings.TrimSpace(cfg.Relay.UpdateFeeWei), 10)
		if !ok {
			return fail("relay", fmt.Errorf("invalid update_fee_wei %q", cfg.Relay.UpdateFeeWei))
		}
		deps.Oracle = chain.NewOracle(common.HexToAddress(cfg.Relay.Oracle), client, signer, fee, cfg.Relay.GasLimit)
		deps.Feed = pyth.NewHermesClient(cfg.Relay.HermesURL, cfg.Relay.RequestsPerMinute)
	}

	// --- PostgreSQL (optional) ---
	if cfg.Postgres.Enabled() {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.TxStore = postgres.NewTxStore(pg.Pool())
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		deps.Checks["postgres"] = pg.Ping
	}

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.BookCache = redis.NewOrderbookCache(rc, 2*cfg.Borrow.RefreshInterval.Duration)
		deps.PriceCache = redis.NewPriceCache(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.Checks["redis"] = rc.Ping
	}

	// --- S3 archive (optional, needs Postgres as the source) ---
	if cfg.Archive.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.BlobReader = s3blob.NewReader(sc)
		deps.Checks["s3"] = sc.Health
		if deps.TxStore != nil && deps.AuditStore != nil {
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), deps.TxStore, deps.AuditStore)
		} else {
			logger.WarnContext(ctx, "archive enabled without postgres, only listing is available")
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger, notify.WithCooldown(5*time.Minute))

	wireServices(cfg, deps, client, logger)
	return deps, cleanup, nil
}

// wireServices builds the service layer on top of the wired backends.
func wireServices(cfg *config.Config, deps *Dependencies, receipts chain.ReceiptReader, logger *slog.Logger) {
	waiter := chain.NewWaiter(receipts, cfg.Borrow.PollInterval.Duration, uint64(cfg.Borrow.Confirmations), logger)

	var notifier service.Notifier
	if deps.Notifier.Enabled() {
		notifier = deps.Notifier
	}
	deps.Recorder = service.NewTxRecorder(waiter, deps.TxStore, deps.AuditStore, deps.SignalBus, notifier, deps.Metrics, logger)
	preflight := service.NewPreflight(deps.Recorder, logger)

	poolNames := make(map[common.Address]string, len(deps.Pools))
	for _, p := range deps.Pools {
		poolNames[p.Address()] = p.Name()
	}
	deps.Book = service.NewOrderbookService(deps.Orderbook, deps.BookCache, deps.SignalBus, poolNames, deps.Metrics, logger)
	deps.Accounts = service.NewAccountService(deps.Orderbook, deps.Collateral, deps.Loan)
	deps.Dashboard = service.NewDashboard(deps.Book, deps.Accounts, deps.Account,
		cfg.Borrow.RefreshInterval.Duration, deps.Metrics, logger)

	deps.Borrow = service.NewBorrowService(deps.Orderbook, deps.Book, deps.Collateral, deps.Loan,
		preflight, deps.Recorder, deps.Dashboard, deps.Account, cfg.Borrow.MarketAPR, logger)
	deps.Lend = service.NewLendService(deps.Pools, deps.Loan, preflight, deps.Recorder,
		deps.Dashboard, deps.Account, logger)

	if deps.Oracle != nil && deps.Feed != nil {
		opts := []service.RelayOption{}
		if deps.LockManager != nil {
			opts = append(opts, service.WithRelayLocks(deps.LockManager))
		}
		if deps.PriceCache != nil || deps.SignalBus != nil {
			opts = append(opts, service.WithRelayPublishing(deps.PriceCache, deps.SignalBus))
		}
		if notifier != nil {
			opts = append(opts, service.WithRelayNotifier(notifier))
		}
		deps.Relay = service.NewPriceRelay(deps.Oracle, deps.Feed, deps.Recorder, deps.Account, service.RelayConfig{
			FeedID:        cfg.Relay.FeedID,
			Interval:      cfg.Relay.Interval.Duration,
			Staleness:     cfg.Relay.Staleness.Duration,
			PriceDecimals: uint8(cfg.Relay.PriceDecimals),
			LockTTL:       cfg.Relay.LockTTL.Duration,
		}, deps.Metrics, logger, opts...)
	}

	if deps.Archiver != nil {
		deps.Archive = service.NewArchiveService(deps.Archiver, deps.TxStore, deps.AuditStore, service.ArchiveConfig{
			Interval:  cfg.Archive.Interval.Duration,
			Retention: time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour,
			Prune:     cfg.Archive.Prune,
		}, deps.Metrics, logger)
	}
}
