package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfoundry/spotengine/internal/audit"
	"github.com/quantfoundry/spotengine/internal/config"
	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/executor"
	"github.com/quantfoundry/spotengine/internal/indicators"
	"github.com/quantfoundry/spotengine/internal/macro"
	"github.com/quantfoundry/spotengine/internal/market"
	"github.com/quantfoundry/spotengine/internal/metrics"
	"github.com/quantfoundry/spotengine/internal/position"
	"github.com/quantfoundry/spotengine/internal/ranker"
	"github.com/quantfoundry/spotengine/internal/risk"
	"github.com/quantfoundry/spotengine/internal/scheduler"
	"github.com/quantfoundry/spotengine/internal/telemetry"
)

// Exit codes per spec.md §6: 0 normal shutdown, 1 fatal initialization
// error, 2 gateway authentication failure.
const (
	exitOK            = 0
	exitInitError     = 1
	exitAuthFailure   = 2
	shutdownTimeout   = 30 * time.Second
)

// okxAuthErrorCodes are the OKX error codes the gateway wraps into
// "gateway rejected [code]: ..." that specifically mean the configured
// credentials are wrong, not merely that one request was malformed.
var okxAuthErrorCodes = []string{"50111", "50112", "50113", "50114", "50119"}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(exitInitError)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("")
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(exitInitError)
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.App.LogLevel))

	switch args[0] {
	case "run":
		os.Exit(runCommand(cfg))
	case "positions":
		os.Exit(positionsCommand(cfg))
	case "reconcile":
		force := flag.NewFlagSet("reconcile", flag.ExitOnError)
		forceFlag := force.Bool("force", false, "bypass the reconcile-min-interval throttle")
		force.Parse(args[1:])
		os.Exit(reconcileCommand(cfg, *forceFlag))
	default:
		printUsage()
		os.Exit(exitInitError)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: engine <run|positions|reconcile [--force]>")
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

// deps bundles every long-lived component the three subcommands share.
type deps struct {
	gateway    exchange.Gateway
	cache      *market.Cache
	ranker     *ranker.Ranker
	macroCtx   *macro.Context
	store      *position.Store
	executor   *executor.Executor
	indicators *indicators.Service
	auditLog   *audit.Logger
	emitter    *telemetry.Emitter
	cb         *risk.CircuitBreakerManager
	pool       *pgxpool.Pool
}

// build wires every component from cfg, in the same order the teacher's
// orchestrator wires its own dependency graph: config, then transport
// clients, then domain services, then the components that compose them.
func build(ctx context.Context, cfg *config.Config) (*deps, error) {
	cb := risk.NewCircuitBreakerManager()
	limiter := risk.NewRateLimiter()

	gateway := exchange.NewOKXGateway(
		cfg.Exchange.BaseURL,
		cfg.Exchange.APIKey,
		cfg.Exchange.SecretKey,
		cfg.Exchange.Passphrase,
		limiter,
		cb,
		log.Logger,
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	cache := market.New(redisClient, gateway)
	indicatorSvc := indicators.NewService()

	httpClient := resty.New().SetTimeout(5 * time.Second)
	macroCtx := macro.New(
		macro.NewAlternativeMeFearGreedProvider(httpClient),
		macro.NewStubDominanceProvider(),
		macro.NewStubExposureProvider(),
	)

	tokenRanker := ranker.New(cache, indicatorSvc, macroCtx, nil)

	store := position.New(cfg.Engine.StateFilePath, gateway)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("load position store: %w", err)
	}

	exec := executor.New(gateway, store, indicatorSvc)

	var pool *pgxpool.Pool
	if cfg.Database.Host != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
		if err == nil {
			pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
			if err != nil {
				log.Warn().Err(err).Msg("audit database unavailable, continuing with log-only audit trail")
				pool = nil
			}
		}
	}
	// pool must be passed as an untyped nil when absent: a nil *pgxpool.Pool
	// boxed into the querier interface would compare non-nil and panic the
	// first time the logger tried to persist through it.
	var auditLog *audit.Logger
	if pool != nil {
		auditLog = audit.NewLogger(pool, cb, cfg.Monitoring.EnableMetrics)
	} else {
		auditLog = audit.NewLogger(nil, cb, cfg.Monitoring.EnableMetrics)
	}

	emitter := telemetry.Connect(cfg.NATS.URL, log.Logger)
	store.SetNotifier(auditLog, emitter)

	return &deps{
		gateway:    gateway,
		cache:      cache,
		ranker:     tokenRanker,
		macroCtx:   macroCtx,
		store:      store,
		executor:   exec,
		indicators: indicatorSvc,
		auditLog:   auditLog,
		emitter:    emitter,
		cb:         cb,
		pool:       pool,
	}, nil
}

func (d *deps) close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// isAuthFailure reports whether err reflects OKX rejecting the configured
// API key, secret, or passphrase rather than a single malformed request.
func isAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range okxAuthErrorCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

func runCommand(cfg *config.Config) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := build(ctx, cfg)
	if err != nil {
		if isAuthFailure(err) {
			log.Error().Err(err).Msg("gateway authentication failed")
			return exitAuthFailure
		}
		log.Error().Err(err).Msg("fatal initialization error")
		return exitInitError
	}
	defer d.close()

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
		if err := metricsServer.Start(); err != nil {
			log.Warn().Err(err).Msg("metrics server failed to start, continuing without it")
			metricsServer = nil
		}
	}

	sched := scheduler.New(d.gateway, d.cache, d.ranker, d.macroCtx, d.store, d.executor, d.indicators, scheduler.Config{
		MinQuoteVolumeUSD: cfg.Engine.MinQuoteVolumeUSD,
		Quote:             cfg.Engine.Quote,
		DiscoverLimit:     cfg.Engine.TopNAnalyzed,
		TopN:              cfg.Engine.TopNAnalyzed,
		MinLiquidity:      cfg.Engine.MinLiquidity,
		MaxConcurrent:     cfg.Engine.MaxConcurrentPositions,
		PortfolioEquity:   portfolioEquity(d),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Engine.PollingInterval())
	defer ticker.Stop()

	log.Info().Dur("interval", cfg.Engine.PollingInterval()).Msg("engine started")
	runOneCycle(ctx, sched, d)

	for {
		select {
		case <-ticker.C:
			runOneCycle(ctx, sched, d)
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			shutdown(metricsServer)
			return exitOK
		case <-ctx.Done():
			shutdown(metricsServer)
			return exitOK
		}
	}
}

func runOneCycle(ctx context.Context, sched *scheduler.Scheduler, d *deps) {
	outcomes, err := sched.RunCycle(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cycle failed")
		metrics.RecordError("cycle_failed", "scheduler")
		d.emitter.Emit(telemetry.KindGatewayTransient, "", map[string]string{"error": err.Error()})
		return
	}
	d.emitter.Emit(telemetry.KindCycleSummary, "", map[string]int{"outcomes": len(outcomes)})

	positions := d.store.All()
	metrics.OpenPositions.Set(float64(len(positions)))
	for _, p := range positions {
		entry, _ := p.EntryPrice.Float64()
		amount, _ := p.Amount.Float64()
		metrics.UpdatePositionValue(string(p.Symbol), entry*amount)
	}

	if d.pool != nil {
		stat := d.pool.Stat()
		metrics.UpdateDatabaseConnections(stat.AcquiredConns(), stat.IdleConns())
	}
}

func portfolioEquity(d *deps) func() float64 {
	return func() float64 {
		ctx := context.Background()
		balances, err := d.gateway.FetchBalance(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("portfolio equity: balance fetch failed")
			return 0
		}
		total := 0.0
		for _, bal := range balances {
			free, _ := bal.Free.Float64()
			total += free
		}
		for _, p := range d.store.All() {
			entry, _ := p.EntryPrice.Float64()
			amount, _ := p.Amount.Float64()
			total += entry * amount
		}
		metrics.UpdatePortfolioEquity(total)
		return total
	}
}

func shutdown(metricsServer *metrics.Server) {
	log.Info().Msg("shutting down")
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown error")
		}
	}
	log.Info().Msg("shutdown complete")
}

func positionsCommand(cfg *config.Config) int {
	ctx := context.Background()

	cb := risk.NewCircuitBreakerManager()
	limiter := risk.NewRateLimiter()
	gateway := exchange.NewOKXGateway(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.Passphrase, limiter, cb, log.Logger)

	store := position.New(cfg.Engine.StateFilePath, gateway)
	if err := store.Load(ctx); err != nil {
		if isAuthFailure(err) {
			log.Error().Err(err).Msg("gateway authentication failed")
			return exitAuthFailure
		}
		log.Error().Err(err).Msg("failed to load position store")
		return exitInitError
	}

	out, err := json.MarshalIndent(store.All(), "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal positions")
		return exitInitError
	}
	fmt.Println(string(out))
	return exitOK
}

func reconcileCommand(cfg *config.Config, force bool) int {
	ctx := context.Background()

	cb := risk.NewCircuitBreakerManager()
	limiter := risk.NewRateLimiter()
	gateway := exchange.NewOKXGateway(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.Passphrase, limiter, cb, log.Logger)

	store := position.New(cfg.Engine.StateFilePath, gateway)
	if err := store.Load(ctx); err != nil {
		if isAuthFailure(err) {
			log.Error().Err(err).Msg("gateway authentication failed")
			return exitAuthFailure
		}
		log.Error().Err(err).Msg("failed to load position store")
		return exitInitError
	}

	if err := store.Reconcile(ctx, force); err != nil {
		if isAuthFailure(err) {
			log.Error().Err(err).Msg("gateway authentication failed")
			return exitAuthFailure
		}
		log.Error().Err(err).Msg("reconciliation failed")
		return exitInitError
	}

	log.Info().Bool("force", force).Int("positions", len(store.All())).Msg("reconciliation complete")
	return exitOK
}
