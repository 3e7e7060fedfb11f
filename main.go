package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linlinbupt123-crypto/mock_wallet/api"
	"github.com/linlinbupt123-crypto/mock_wallet/config"
	"github.com/linlinbupt123-crypto/mock_wallet/db"
	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/logging"
	"github.com/linlinbupt123-crypto/mock_wallet/notify"
	"github.com/linlinbupt123-crypto/mock_wallet/oracle"
	"github.com/linlinbupt123-crypto/mock_wallet/repository"
	"github.com/linlinbupt123-crypto/mock_wallet/service"
)

const shutdownPeriod = 15 * time.Second

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// 1. 账本
	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	// 2. 防重放
	var replay domain.ReplayGuard
	if cfg.Transfer.ReplayProtection {
		if cfg.Redis.URL != "" {
			cache, err := db.NewRedisClient(ctx, cfg.Redis.URL)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer func() {
				if err := cache.Close(); err != nil {
					logger.Warn("close redis", "error", err)
				}
			}()
			replay = repository.NewRedisReplayGuard(cache)
		} else {
			replay = repository.NewMemoryReplayGuard(nil)
		}
	}

	// 3. 报价 + 通知
	rateOracle, err := openOracle(cfg)
	if err != nil {
		return err
	}
	notifier, closeNotifier := openNotifier(cfg, logger)
	defer closeNotifier()

	// 4. 领域对象
	keys, err := domain.NewKeyManager(domain.DerivationScheme(cfg.Keys.Scheme), cfg.Keys.Path)
	if err != nil {
		return err
	}
	tolerance, err := cfg.Transfer.Tolerance()
	if err != nil {
		return err
	}
	seedMin, seedMax, err := cfg.Transfer.SeedRange()
	if err != nil {
		return err
	}

	auth := domain.NewAuthorizer(keys, cfg.Transfer.ValidityWindow, nil)
	engine := domain.NewTransferEngine(domain.TransferConfig{
		PriceDriftTolerance: tolerance,
		QuoteTimeout:        cfg.Transfer.QuoteTimeout,
	}, domain.TransferEngineDeps{
		Ledger:     ledger,
		Authorizer: auth,
		Oracle:     rateOracle,
		Replay:     replay,
		Logger:     logger,
	})

	// the redemption re-quote is a single attempt; preparation may retry
	quoting := oracle.NewRetrying(rateOracle, cfg.Oracle.MaxAttempts, cfg.Oracle.RetryPause)
	walletService := service.NewWalletService(keys, auth, engine, ledger, quoting, notifier,
		service.SeedRange{Min: seedMin, Max: seedMax}, logger)

	// 5. Gin
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      api.NewRouter(api.NewWalletHandler(walletService)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Port, "ledger", cfg.Ledger.Driver)
		srvErrCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if a, ok := notifier.(*notify.Async); ok {
		if err := a.Wait(shutdownCtx); err != nil {
			logger.Warn("pending notifications dropped", "error", err)
		}
	}
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config) (domain.Ledger, func(), error) {
	switch cfg.Ledger.Driver {
	case config.LedgerPostgres:
		pool, err := db.NewPostgresPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		ledger := repository.NewPostgresLedger(pool)
		if err := ledger.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return ledger, pool.Close, nil
	case config.LedgerMemory:
		return repository.NewMemoryLedger(), func() {}, nil
	default:
		repo, err := db.NewMongoRepo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		closeFn := func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = repo.Close(cctx)
		}
		return repository.NewMongoLedger(repo), closeFn, nil
	}
}

func openOracle(cfg *config.Config) (domain.RateOracle, error) {
	if cfg.Oracle.Driver == config.OracleFixed {
		rate, err := cfg.Oracle.Rate()
		if err != nil {
			return nil, err
		}
		fixed, err := oracle.NewFixedOracle(rate)
		if err != nil {
			return nil, err
		}
		return fixed, nil
	}
	return oracle.NewSkipOracle(cfg.Oracle.URL, cfg.Oracle.Timeout), nil
}

func openNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, func()) {
	var (
		next    notify.Notifier = notify.NewLogNotifier(logger)
		closeFn                 = func() {}
	)
	if cfg.Notify.Driver == config.NotifyKafka {
		k := notify.NewKafkaNotifier(cfg.Notify.Brokers, cfg.Notify.Topic)
		next = k
		closeFn = func() {
			if err := k.Close(); err != nil {
				logger.Warn("close kafka writer", "error", err)
			}
		}
	}
	return notify.NewAsync(next, cfg.Notify.Timeout, cfg.Notify.MaxInFlight, logger), closeFn
}
