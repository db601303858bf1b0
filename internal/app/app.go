package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/adapter/gateway"
	"marketplace-settlement/internal/adapter/notify"
	"marketplace-settlement/internal/adapter/storage/memory"
	pgStorage "marketplace-settlement/internal/adapter/storage/postgres"
	redisStorage "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/service"
	"marketplace-settlement/internal/worker"
	"marketplace-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App is the wired service graph shared by the api and worker binaries.
type App struct {
	Ingress      ports.IngressService
	Orders       ports.OrderService
	Disputes     ports.DisputeService
	Payouts      ports.PayoutService
	BankAccounts ports.BankAccountService
	Ledger       ports.LedgerQueryService
	Tokens       ports.TokenService
	Audit        ports.AuditService

	RateLimitStore *redisStorage.RateLimitStore // nil without redis
	WorkerLock     worker.Locker
	HealthCheckers []ports.HealthChecker

	// Catalog is set for the memory driver so products can be seeded.
	Catalog *memory.Catalog

	pool     *pgxpool.Pool
	notifier *service.NotificationService
	closers  []func() error
	log      zerolog.Logger
}

// Build connects storage and wires every service for cfg. Metrics register
// on reg.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log zerolog.Logger) (*App, error) {
	platformID, err := uuid.Parse(cfg.Settlement.PlatformOwnerID)
	if err != nil {
		return nil, fmt.Errorf("settlement.platform_owner_id: %w", err)
	}
	global, overrides, err := cfg.Settlement.Rates()
	if err != nil {
		return nil, err
	}
	policy := service.NewCommissionPolicy(global, overrides)

	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption service: %w", err)
	}
	sigSvc := service.NewHMACSignatureService()

	a := &App{log: log}
	st, err := a.openStorage(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	paymentGW, payoutGW, err := newGateway(cfg.Gateway, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	sinks, err := a.newSinks(ctx, cfg.Notifications, sigSvc, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.notifier = service.NewNotificationService(sinks, st.notifications, log)

	settlementMetrics := metrics.NewSettlementMetrics(reg)
	maxRetries := cfg.Settlement.MaxVersionRetries

	settlement := service.NewSettlementService(
		st.orders, st.ledger, st.balances, st.transactor,
		policy, a.notifier, settlementMetrics, platformID, maxRetries, log,
	)
	bankSvc := service.NewBankAccountService(
		st.accounts, st.withdrawals, encSvc, st.transactor, settlementMetrics, maxRetries, log,
	)
	payoutSvc := service.NewPayoutService(
		st.withdrawals, st.balances, st.ledger, st.accounts, bankSvc,
		payoutGW, st.transactor, a.notifier, settlementMetrics,
		service.PayoutSettings{
			Currency:           cfg.Gateway.Currency,
			ReconcileAfter:     cfg.Payout.ReconcileAfter,
			HoldReleaseTimeout: cfg.Payout.HoldReleaseTimeout,
			BatchSize:          cfg.Worker.BatchSize,
			MaxVersionRetries:  maxRetries,
		},
		log,
	)

	a.Ingress = service.NewIngressService(
		st.events, st.orders, st.transactor, sigSvc, st.cache,
		settlement, payoutSvc, settlementMetrics,
		service.IngressSettings{
			PaymentSecret:     cfg.Webhooks.PaymentSecret,
			PayoutSecret:      cfg.Webhooks.PayoutSecret,
			SweepGrace:        cfg.Webhooks.SweepGrace,
			MaxApplyAttempts:  cfg.Webhooks.MaxApplyAttempts,
			DedupCacheTTL:     cfg.Webhooks.DedupCacheTTL,
			BatchSize:         cfg.Worker.BatchSize,
			MaxVersionRetries: maxRetries,
		},
		log,
	)
	a.Orders = service.NewOrderService(st.orders, st.catalog, paymentGW, st.transactor, cfg.Gateway.Currency, log)
	a.Disputes = service.NewDisputeService(
		st.disputes, st.orders, st.ledger, st.balances, st.transactor,
		a.notifier, settlementMetrics, platformID, maxRetries, log,
	)
	a.Payouts = payoutSvc
	a.BankAccounts = bankSvc
	a.Ledger = service.NewLedgerQueryService(st.ledger, st.balances, log)
	a.Tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	a.Audit = service.NewAuditService(st.audit, log)

	return a, nil
}

// Close drains notifications and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.notifier != nil {
		if err := a.notifier.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("notification drain interrupted")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error().Err(err).Msg("error closing resource")
		}
	}
	a.closers = nil
}

// Migrate applies pending migrations. It is a no-op for the memory driver.
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return pgStorage.Migrate(ctx, a.pool, "up")
}

type stores struct {
	orders        ports.OrderRepository
	ledger        ports.LedgerRepository
	balances      ports.BalanceRepository
	withdrawals   ports.WithdrawalRepository
	accounts      ports.BankAccountRepository
	disputes      ports.DisputeRepository
	events        ports.WebhookEventRepository
	audit         ports.AuditRepository
	notifications ports.NotificationRepository
	catalog       ports.ProductCatalog
	transactor    ports.DBTransactor
	cache         ports.IdempotencyCache
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
		s := memory.NewStore()
		a.Catalog = memory.NewCatalog(s)
		a.WorkerLock = worker.NoopLocker{}
		a.HealthCheckers = []ports.HealthChecker{s}
		a.log.Warn().Msg("using in-memory storage, state is lost on exit")
		return &stores{
			orders:        memory.NewOrderRepository(s),
			ledger:        memory.NewLedgerRepository(s),
			balances:      memory.NewBalanceRepository(s),
			withdrawals:   memory.NewWithdrawalRepository(s),
			accounts:      memory.NewBankAccountRepository(s),
			disputes:      memory.NewDisputeRepository(s),
			events:        memory.NewWebhookEventRepository(s),
			audit:         memory.NewAuditRepository(s),
			notifications: memory.NewNotificationRepository(s),
			catalog:       a.Catalog,
			transactor:    s,
			cache:         memory.NewCache(),
		}, nil

	case "", "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, a.log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, a.log)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)

		if cfg.Database.AutoMigrate {
			if err := a.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
			a.log.Info().Msg("database migrations applied")
		}

		a.RateLimitStore = redisStorage.NewRateLimitStore(rdb)
		a.WorkerLock = redisStorage.NewLock(rdb, cfg.Worker.LockKey, cfg.Worker.LockTTL)
		a.HealthCheckers = []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		}
		return &stores{
			orders:        pgStorage.NewOrderRepo(pool),
			ledger:        pgStorage.NewLedgerRepo(pool),
			balances:      pgStorage.NewBalanceRepo(pool),
			withdrawals:   pgStorage.NewWithdrawalRepo(pool),
			accounts:      pgStorage.NewBankAccountRepo(pool),
			disputes:      pgStorage.NewDisputeRepo(pool),
			events:        pgStorage.NewWebhookEventRepo(pool),
			audit:         pgStorage.NewAuditRepo(pool),
			notifications: pgStorage.NewNotificationRepo(pool),
			catalog:       pgStorage.NewCatalogRepo(pool),
			transactor:    pgStorage.NewTransactor(pool),
			cache:         redisStorage.NewDedupCache(rdb),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

const notifyTimeout = 10 * time.Second

type gatewayClient interface {
	ports.PaymentGateway
	ports.PayoutGateway
}

func newGateway(cfg config.GatewayConfig, log zerolog.Logger) (ports.PaymentGateway, ports.PayoutGateway, error) {
	var gw gatewayClient
	switch strings.ToLower(cfg.Driver) {
	case "", "sandbox":
		log.Warn().Msg("using sandbox gateway, no money moves")
		gw = gateway.NewSandbox()
	case "http":
		client, err := gateway.NewClient(gateway.Config{
			BaseURL:    cfg.BaseURL,
			KeyID:      cfg.KeyID,
			KeySecret:  cfg.KeySecret,
			PayoutMode: cfg.PayoutMode,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("gateway client: %w", err)
		}
		gw = client
	default:
		return nil, nil, fmt.Errorf("unknown gateway driver %q", cfg.Driver)
	}
	return gw, gw, nil
}

func (a *App) newSinks(ctx context.Context, cfg config.NotificationsConfig, sigSvc ports.SignatureService, log zerolog.Logger) ([]ports.NotificationSink, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "log":
		return []ports.NotificationSink{notify.NewLogSink(log)}, nil
	case "http":
		sink, err := notify.NewHTTPSink(cfg.URL, cfg.Secret, sigSvc, &http.Client{Timeout: notifyTimeout})
		if err != nil {
			return nil, fmt.Errorf("http notification sink: %w", err)
		}
		return []ports.NotificationSink{sink}, nil
	case "pubsub":
		if cfg.GCPProjectID == "" {
			return nil, errors.New("notifications.gcp_project_id is required for the pubsub driver")
		}
		sink, err := notify.NewPubSubSink(ctx, cfg.GCPProjectID, cfg.Topic)
		if err != nil {
			return nil, fmt.Errorf("pubsub notification sink: %w", err)
		}
		a.closers = append(a.closers, sink.Close)
		return []ports.NotificationSink{sink}, nil
	}
	return nil, fmt.Errorf("unknown notifications driver %q", cfg.Driver)
}
