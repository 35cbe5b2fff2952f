package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldserve/config"
	"fieldserve/internal/database"
	"fieldserve/internal/router"
	"fieldserve/internal/service"
	"fieldserve/pkg/cloudinary"
	"fieldserve/pkg/logger"
	"fieldserve/pkg/mq"
	"fieldserve/pkg/payment"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.ServiceName, cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Error("database", logger.Error(err))
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Error("migrate", logger.Error(err))
		os.Exit(1)
	}

	deps := router.Deps{
		Log: log,
		FCM: service.NewFCMService(cfg.Firebase.ServiceAccountPath, log),
	}
	if deps.FCM == nil {
		log.Info("push notifications disabled")
	}

	if cfg.Gateway.StoreID != "" {
		deps.Gateway = payment.NewHostedCheckoutProvider(cfg.Gateway.BaseURL, cfg.Gateway.StoreID, cfg.Gateway.StorePassword, cfg.Gateway.Timeout, log)
	} else {
		if cfg.Server.Env == "production" {
			log.Error("GATEWAY_STORE_ID is required in production")
			os.Exit(1)
		}
		log.Warning("gateway credentials missing, using stub provider")
		deps.Gateway = payment.NewStubProvider()
	}

	if cfg.Cloudinary.CloudName != "" {
		cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Error("cloudinary", logger.Error(err))
			os.Exit(1)
		}
		deps.Cloud = cloud
	}

	if cfg.Rabbit.URL != "" {
		pub, err := mq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Error("rabbitmq", logger.Error(err))
			os.Exit(1)
		}
		defer pub.Close()
		deps.Events = pub
	}

	app := router.Setup(cfg, db, deps)
	defer app.Limiter.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the dispatcher outlives the server so in-flight requests can still enqueue
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatched := make(chan struct{})
	go func() {
		app.Dispatcher.Run(dispatchCtx)
		close(dispatched)
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server listening", logger.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", logger.Error(err))
	}
	stopDispatch()
	<-dispatched
	log.Info("server stopped")
}
