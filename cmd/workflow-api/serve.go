package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samigerges/workflow-sub001/internal/allocation"
	"github.com/samigerges/workflow-sub001/internal/auth"
	"github.com/samigerges/workflow-sub001/internal/config"
	"github.com/samigerges/workflow-sub001/internal/database"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/samigerges/workflow-sub001/internal/logging"
	"github.com/samigerges/workflow-sub001/internal/notify"
	"github.com/samigerges/workflow-sub001/internal/server"
	"github.com/samigerges/workflow-sub001/internal/subjects"
	"github.com/samigerges/workflow-sub001/internal/users"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:  appConfig.LogLevel,
		Format: appConfig.LogFormat,
		File:   appConfig.LogFile,
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	undoMaxProcs, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	if err != nil {
		return err
	}
	defer undoMaxProcs()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var relay *notify.RedisRelay
	if appConfig.EventRedisURL != "" {
		relay, err = notify.NewRedisRelay(signalCtx, appConfig.EventRedisURL, appConfig.EventRedisChannel, logger)
		if err != nil {
			return err
		}
		defer relay.Close() //nolint:errcheck
	}

	dispatcherConfig := notify.DispatcherConfig{
		BufferSize:   appConfig.EventBufferSize,
		Logger:       logger,
		PromRegistry: registry,
	}
	if relay != nil {
		dispatcherConfig.Relay = relay
	}
	dispatcher := notify.NewDispatcher(dispatcherConfig)
	if relay != nil {
		go func() {
			if err := relay.Run(signalCtx, dispatcher.Deliver, nil); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("invalidation relay stopped", zap.Error(err))
			}
		}()
		logger.Info("invalidation relay enabled", zap.String("channel", appConfig.EventRedisChannel))
	}

	entityStore, err := entities.NewStore(db)
	if err != nil {
		return err
	}
	ledger := voting.NewLedger(db)
	resolver, err := subjects.NewResolver(subjects.ResolverConfig{
		Entities: entityStore,
		Ledger:   ledger,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	votingService, err := voting.NewService(voting.ServiceConfig{
		Ledger:       ledger,
		Directory:    resolver,
		Notifier:     dispatcher,
		Logger:       logger,
		PromRegistry: registry,
	})
	if err != nil {
		return err
	}

	allocationService, err := allocation.NewService(allocation.ServiceConfig{
		Children: resolver,
		Vessels:  entityStore,
		Notifier: dispatcher,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:          sessionValidator,
		Voters:            userService,
		Voting:            votingService,
		Allocation:        allocationService,
		Documents:         resolver,
		Events:            dispatcher,
		MetricsHandler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		PromRegistry:      registry,
		AllowedOrigins:    appConfig.AllowedOrigins,
		HeartbeatInterval: appConfig.HeartbeatInterval,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	// Request contexts end with the signal so open event streams let Shutdown finish.
	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return signalCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
