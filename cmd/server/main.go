package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/racanix/location-foreground-service/config"
	"github.com/racanix/location-foreground-service/module/tracking"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if conn, err := config.NewPostgres(cfg); err != nil {
		log.WithError(err).Warn("postgres unavailable, keeping alerts in memory")
	} else {
		db = conn
		defer func() { _ = db.Close() }()
	}

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer func() { _ = amqpConn.Close() }()

	mqttClient, err := config.NewMQTT(cfg, log)
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer mqttClient.Disconnect(250)

	trackingModule, err := tracking.Build(ctx, db, amqpConn, mqttClient, tracking.Topics{
		Location: cfg.LocationTopic,
		Command:  cfg.CommandTopic,
	}, log)
	if err != nil {
		log.Fatalf("tracking module: %v", err)
	}

	if err := trackingModule.StartSubscribers(); err != nil {
		log.Fatalf("start subscribers: %v", err)
	}

	if cfg.TrackingConfig != "" {
		opts, err := config.LoadTracking(cfg.TrackingConfig)
		if err != nil {
			log.Fatalf("tracking profile: %v", err)
		}
		if err := trackingModule.TrackingSvc.Start(ctx, opts); err != nil {
			log.Fatalf("start tracking: %v", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())

	health := config.NewHealthChecker(nil, amqpConn, mqttClient)
	if db != nil {
		health = config.NewHealthChecker(db, amqpConn, mqttClient)
	}
	health.Register(r)

	trackingModule.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	trackingModule.Shutdown(shutdownCtx)
}
