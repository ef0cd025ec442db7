package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"

	"smart-calendar-api/internal/api"
	"smart-calendar-api/internal/calendar"
	"smart-calendar-api/internal/config"
	"smart-calendar-api/internal/gateway"
	"smart-calendar-api/internal/handler"
	"smart-calendar-api/internal/metrics"
	"smart-calendar-api/internal/middleware"
	"smart-calendar-api/internal/notify"
	"smart-calendar-api/internal/store"
	"smart-calendar-api/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "smart-calendar-api",
		Usage: "Calendar service with reminders and ordered day lists.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", EnvVars: []string{"CONFIG"}, Usage: "YAML config file (optional)"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// backend is what both store drivers provide.
type backend interface {
	calendar.EventStore
	handler.Accounts
	Migrate(ctx context.Context) error
}

func openStore(ctx context.Context, cfg config.StoreConfig) (backend, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		st, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	default:
		st, err := store.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return st, st.Close, nil
	}
}

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema and exit.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(c.Context, cfg.Store)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := st.Migrate(c.Context); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migration applied", "driver", cfg.Store.Driver)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the gRPC server and the HTTP gateway.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Value: true, Usage: "Apply the schema on startup."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(c.Context, cfg, logger, c.Bool("migrate"))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := metrics.Setup(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()

	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("store opened", "driver", cfg.Store.Driver)
	if migrate {
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	dispatcher, closeNotify, err := newDispatcher(cfg.Notify, logger)
	if err != nil {
		return err
	}
	defer closeNotify()

	loc := cfg.Location()
	reg := calendar.NewRegistry(calendar.Deps{
		Store:      st,
		Location:   loc,
		Horizon:    cfg.ReminderHorizon,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics.NewCounters(),
	})
	defer reg.Close()
	if err := reg.StartRefresh(cfg.RefreshCron); err != nil {
		return err
	}

	h := handler.New(st, reg, cfg.JWTSecret, logger)

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rl.Close()
	chain := middleware.Chain(middleware.RateLimit(rl), middleware.Auth(cfg.JWTSecret))

	srv := grpc.NewServer(grpc.UnaryInterceptor(chain))
	api.RegisterCalendarServer(srv, h)

	lis, err := net.Listen("tcp", cfg.GRPCListen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	errc := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", "addr", cfg.GRPCListen)
		errc <- srv.Serve(lis)
	}()

	bridge := gateway.New(h, chain, reg, cfg.JWTSecret, loc, logger)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPListen,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http gateway listening", "addr", cfg.HTTPListen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("server stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	srv.GracefulStop()
	return err
}

func newDispatcher(cfg config.NotifyConfig, logger *slog.Logger) (*notify.Dispatcher, func(), error) {
	state, err := notify.ParseState(cfg.Permission)
	if err != nil {
		return nil, nil, err
	}
	perm := notify.NewPermission(state, notify.Grant(cfg.GrantOnRequest))

	switch cfg.Presenter {
	case "redis":
		rc := notify.DialRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		logger.Info("publishing reminders to redis", "addr", cfg.RedisAddr, "channel", cfg.Channel)
		return notify.New(perm, notify.NewRedisPresenter(rc, cfg.Channel), logger), func() { _ = rc.Close() }, nil
	case "none":
		return notify.New(perm, nil, logger), func() {}, nil
	default:
		return notify.New(perm, notify.LogPresenter{Logger: logger}, logger), func() {}, nil
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
