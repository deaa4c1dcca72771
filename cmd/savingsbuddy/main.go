package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/cli"
	"savingsbuddy/internal/config"
	apphttp "savingsbuddy/internal/http"
	applog "savingsbuddy/internal/log"
	"savingsbuddy/internal/services"
)

const (
	shutdownTimeout       = 30 * time.Second
	sessionJanitorPeriod  = time.Hour
	amqpConnectAttempts   = 3
	amqpConnectMaxTimeout = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	accounts := services.NewAccountService(repo, cfg.SessionDuration)
	if _, err := accounts.SeedAdmin(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		logger.Error("Failed to seed admin user", applog.FieldError, err)
		os.Exit(1)
	}

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		connectCtx, cancel := context.WithTimeout(ctx, amqpConnectMaxTimeout)
		client, err := amqp.Connect(connectCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpConnectAttempts)
		cancel()
		if err != nil {
			logger.Warn("AMQP unavailable, record events disabled", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	records := services.NewRecordService(repo, publisher, cfg.Location())

	srv := apphttp.NewServer(apphttp.Options{
		Addr:              ":" + cfg.Port,
		Records:           records,
		Accounts:          accounts,
		DB:                repo,
		Logger:            logger,
		Currency:          cfg.Currency,
		SecureCookie:      cfg.SecureCookie,
		AllowRegistration: cfg.AllowRegistration,
		LoginRateLimit:    cfg.LoginRateLimit,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting savingsbuddy server",
			"port", cfg.Port,
			"currency", cfg.Currency,
			"timezone", cfg.Location().String(),
			"registration", cfg.AllowRegistration)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.RunSessionJanitor(gctx, sessionJanitorPeriod)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
