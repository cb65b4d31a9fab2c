// Package app wires the custody services from configuration. Both the
// server and the operator commands build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody/internal/config"
	"custody/internal/repositories"
	"custody/internal/repositories/cache"
	"custody/internal/services/gateway"
	"custody/internal/services/kyc"
	"custody/internal/services/notification"
	"custody/internal/services/payment_method"
	"custody/internal/services/transaction"
	"custody/internal/services/wallet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const redisPingTimeout = 3 * time.Second

// App holds the wired services and the resources they share.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry

	// DB is nil when the memory driver is configured.
	DB    *gorm.DB
	Store repositories.Store

	// Cache is nil when Redis is unreachable at startup.
	Cache *cache.CacheService

	Gateway        gateway.Gateway
	Dispatcher     *notification.Dispatcher
	KYC            kyc.Service
	PaymentMethods payment_method.Service
	Journal        transaction.Service
	Ledger         wallet.Service

	closers []func(context.Context) error
}

// New opens storage, Redis and the provider, then builds every service.
// Optional backends (Redis, Kafka) degrade to local behavior when they
// cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openStore(cfg.Database); err != nil {
		return nil, err
	}
	a.openRedis(ctx, cfg)
	a.Gateway = a.buildGateway(cfg)
	a.Dispatcher = a.buildDispatcher(cfg)

	a.KYC = kyc.NewService(a.Store, a.Dispatcher, kyc.Config{AutoApprove: cfg.KYC.AutoApprove}, logger)
	a.PaymentMethods = payment_method.NewService(a.Store, a.Gateway, a.Dispatcher, logger)
	a.Journal = transaction.NewService(a.Store)

	deps := wallet.Dependencies{
		Store:    a.Store,
		Journal:  a.Journal,
		Identity: a.KYC,
		Methods:  a.PaymentMethods,
		Gateway:  a.Gateway,
		Notifier: a.Dispatcher,
		Metrics:  wallet.NewPrometheusMetrics(a.Registry),
		Logger:   logger,
	}
	if a.Cache != nil {
		deps.Cache = a.Cache
		deps.Lock = cache.NewSettlementLock(a.Cache.Client(), cfg.Ledger.SettlementLock)
	}
	a.Ledger = wallet.NewService(deps, wallet.Config{
		Currency:       cfg.Ledger.Currency,
		MaxRetries:     cfg.Ledger.MaxRetries,
		RetryBackoff:   cfg.Ledger.RetryBackoff,
		StatusCacheTTL: cfg.Ledger.StatusCacheTTL,
	})
	return a, nil
}

func (a *App) openStore(cfg config.DatabaseConfig) error {
	if cfg.Driver == "memory" {
		a.Logger.Warn("using in-memory store; balances are lost on restart")
		a.Store = repositories.NewMemoryStore()
		return nil
	}

	db, err := repositories.NewPostgres(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	a.Store = repositories.NewStore(db)
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		return sqlDB.Close()
	})
	return nil
}

func (a *App) openRedis(ctx context.Context, cfg config.Config) {
	client := cache.NewRedisClient(cfg.Redis)
	svc := cache.NewCacheService(client, cfg.Ledger.StatusCacheTTL)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := svc.HealthCheck(pingCtx); err != nil {
		a.Logger.Warn("redis unavailable; payment status cache and settlement lock disabled",
			zap.String("addr", client.Options().Addr),
			zap.Error(err))
		_ = client.Close()
		return
	}
	a.Cache = svc
	a.closers = append(a.closers, func(context.Context) error { return svc.Close() })
}

func (a *App) buildGateway(cfg config.Config) gateway.Gateway {
	var gw gateway.Gateway
	if cfg.Stripe.SecretKey == "" {
		a.Logger.Warn("STRIPE_SECRET_KEY not set; using sandbox payment gateway")
		gw = gateway.NewSandbox()
	} else {
		gw = gateway.NewStripeGateway(cfg.Stripe.SecretKey, nil, a.Logger, gateway.WithReturnURL(cfg.Stripe.ReturnURL))
	}
	return gateway.WithTimeout(gw, cfg.Ledger.GatewayTimeout)
}

func (a *App) buildDispatcher(cfg config.Config) *notification.Dispatcher {
	sinks := []notification.Sink{notification.NewZapSink(a.Logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notification.NewSyncProducer(cfg.Kafka.Brokers, a.Logger)
		if err != nil {
			a.Logger.Warn("kafka unavailable; notifications go to the log only",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.Error(err))
		} else {
			sinks = append(sinks, notification.NewKafkaSink(producer, cfg.Kafka.Topic))
			a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
		}
	}

	d := notification.NewDispatcher(a.Logger, cfg.Ledger.NotifyQueueSize, sinks...)
	// The dispatcher drains before its sinks are closed.
	a.closers = append(a.closers, d.Close)
	return d
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
