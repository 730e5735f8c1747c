package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pfm/internal/auth"
	"pfm/internal/cache"
	"pfm/internal/cli"
	"pfm/internal/core"
	"pfm/internal/events"
	apphttp "pfm/internal/http"
	"pfm/internal/log"
	"pfm/internal/services"
)

const (
	shutdownTimeout   = 30 * time.Second
	eventDrainTimeout = 5 * time.Second
	cacheCleanEvery   = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pfm:", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting pfm", log.FieldOperation, log.OpStartup, "backend", cfg.DataBackend, "port", cfg.Port)

	store, err := cli.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var emitter events.Emitter
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			return fmt.Errorf("connect to AMQP broker: %w", err)
		}
		defer client.Close()
		dispatcher := events.NewDispatcher(client, events.DefaultBuffer, logger)
		emitter = dispatcher
		g.Go(func() error { return dispatcher.Run(ctx, eventDrainTimeout) })
		logger.Info("Ledger events enabled", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
	} else {
		logger.Info("Ledger events disabled - no AMQP_URL provided")
	}

	clock := core.SystemClock{}
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, clock)

	caches := cache.NewManager(logger)
	caches.Register(tokens.Cache())
	g.Go(func() error { return caches.Run(ctx, cacheCleanEvery) })

	deps := services.Deps{Store: store, Events: emitter, Clock: clock, Logger: logger}
	srv, err := apphttp.NewServer(apphttp.Services{
		Users:       services.NewUserService(deps, tokens),
		Expenses:    services.NewExpenseService(deps),
		Investments: services.NewInvestmentService(deps),
		Budgets:     services.NewBudgetService(deps),
	}, tokens, store, apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Currency:           cfg.Currency,
		Logger:             logger,
		Clock:              clock,
	})
	if err != nil {
		return err
	}
	g.Go(func() error { return srv.Run(ctx, shutdownTimeout) })

	err = g.Wait()
	logger.Info("pfm stopped", log.FieldOperation, log.OpShutdown)
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
