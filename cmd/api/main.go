package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/app"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/command"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/config"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/server"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main runs the HTTP API and the display price poller until SIGINT/SIGTERM.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build runtime")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("runtime close")
		}
	}()

	if err := rt.Ledger.Connect(ctx); err != nil {
		logger.WithError(err).Warn("ledger gateway not reachable yet")
	}

	poller, err := rt.NewPoller()
	if err != nil {
		logger.WithError(err).Fatal("failed to create price poller")
	}

	// LLM features are optional
	parser, err := rt.NewParser()
	if err != nil {
		logger.WithError(err).Warn("failed to initialize command parser")
	}
	var analyst *command.Analyst
	if parser != nil && cfg.ClickHouseEnabled() {
		a, err := command.NewAnalyst(ctx, parser, command.AnalystConfig{
			ClickHouseAddr:     cfg.ClickHouseAddr,
			ClickHouseDatabase: cfg.ClickHouseDatabase,
			ClickHouseUsername: cfg.ClickHouseUsername,
			ClickHousePassword: cfg.ClickHousePassword,
			Logger:             logger,
		})
		if err != nil {
			logger.WithError(err).Warn("failed to initialize trade analyst")
		} else {
			analyst = a
			defer func() {
				_ = analyst.Close()
			}()
		}
	}

	h := &server.Handlers{
		Engine:      rt.Engine,
		Signer:      rt.Signer,
		Registry:    rt.Registry,
		Mapper:      rt.Mapper,
		Prices:      poller.Store(),
		PriceCache:  rt.PriceCache(),
		Activity:    rt.Recent,
		Prefs:       rt.Prefs,
		Parser:      parser,
		Analyst:     analyst,
		BaseContext: ctx,
		DevMode:     cfg.DevMode,
		Logger:      logger,
	}
	if rt.History != nil {
		h.History = rt.History
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
			Metrics: rt.Metrics.Handler(),
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := poller.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logger.WithField("addr", cfg.APIAddr).Info("api server starting")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("api exited with error")
	}
}
