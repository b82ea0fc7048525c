// Command speedcube-server runs the speedcube HTTP API and its gRPC health listener.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/and161185/speedcube/internal/client"
	"github.com/and161185/speedcube/internal/config"
	"github.com/and161185/speedcube/internal/limiter"
	"github.com/and161185/speedcube/internal/migrate"
	"github.com/and161185/speedcube/internal/repository/postgres"
	"github.com/and161185/speedcube/internal/server/httpapi"
	"github.com/and161185/speedcube/internal/server/ops"
	"github.com/and161185/speedcube/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main loads configuration, runs migrations, and serves until SIGINT/SIGTERM.
func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file exported before reading the environment")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	opsAddr := flag.String("ops-addr", "", "gRPC health listen address (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config)")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key (overrides config)")
	dev := flag.Bool("dev", false, "enable gRPC reflection (dev only)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.LoadEnvFile(*envFile); err != nil {
		logger.Fatal("env file", zap.Error(err))
	}
	cfg, err := config.Load(*cfgPath, os.Getenv)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.HTTPAddr = *addr
		case "ops-addr":
			cfg.OpsAddr = *opsAddr
		case "dsn":
			cfg.DSN = *dsn
		case "jwt-key":
			cfg.JWTKey = *jwtKey
		case "dev":
			cfg.Dev = *dev
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("opsAddr", cfg.OpsAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return err
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var lim limiter.Limiter = limiter.Nop{}
	if cfg.Limiter.Enabled {
		lim = limiter.NewPG(db.Pool, limiter.Policy{
			Window:   cfg.Limiter.Window,
			MaxFails: cfg.Limiter.MaxFails,
			BlockFor: cfg.Limiter.BlockFor,
		}, nil)
	}

	var upstream service.Upstream
	if cfg.SolverURL != "" {
		upstream = client.New(cfg.SolverURL, client.WithLogger(logger.Named("solver")))
	}

	api := httpapi.New(
		service.NewAuthService(postgres.NewUserRepo(db), []byte(cfg.JWTKey), cfg.AccessTTL, lim, nil),
		service.NewSolveService(postgres.NewSolveRepo(db)),
		service.NewFileRecords(cfg.RecordsFile),
		service.NewSolverService(upstream),
		httpapi.WithLogger(logger),
		httpapi.WithAllowedOrigins(cfg.CORSOrigins...),
		httpapi.WithSolveRate(rate.Limit(cfg.SolveRate), cfg.SolveBurst),
	)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	opsOpts := []ops.Option{ops.WithLogger(logger.Named("ops"))}
	if cfg.Dev {
		opsOpts = append(opsOpts, ops.WithReflection())
	}
	opsSrv := ops.New(db, opsOpts...)
	opsLis, err := net.Listen("tcp", cfg.OpsAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening (http)", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("listening (ops)", zap.String("addr", cfg.OpsAddr))
		return opsSrv.Serve(opsLis)
	})
	g.Go(func() error {
		opsSrv.Watch(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		opsSrv.Shutdown(sctx)
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
