package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/racanix/location-foreground-service/config"
	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

const (
	exchangeName = "tracker.events"
	queueName    = "tracker_notifications"
)

type envelope struct {
	Event     string               `json:"event"`
	Arrival   *domain.ArrivalEvent `json:"arrival"`
	Status    *domain.StatusEvent  `json:"status"`
	Timestamp int64                `json:"timestamp"`
}

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg)

	conn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbitmq channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		log.Fatalf("declare exchange: %v", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Fatalf("declare queue: %v", err)
	}

	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		log.Fatalf("bind queue: %v", err)
	}

	msgs, err := ch.Consume(queueName, "", true, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	log.Infof("consuming from queue '%s', waiting for tracker events...", queueName)

	go func() {
		for msg := range msgs {
			var ev envelope
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				log.WithError(err).Warn("skipping malformed event")
				continue
			}
			fmt.Println(describe(ev))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
}

func describe(ev envelope) string {
	switch {
	case ev.Arrival != nil:
		return fmt.Sprintf("[%s] alert=%q distance=%.1fm at (%.6f, %.6f)",
			ev.Event, ev.Arrival.AlertID, ev.Arrival.Distance, ev.Arrival.Location.Lat, ev.Arrival.Location.Lon)
	case ev.Status != nil:
		return fmt.Sprintf("[%s] %s: %s (pending=%d, session=%s)",
			ev.Event, ev.Status.Title, ev.Status.Body, ev.Status.Pending, ev.Status.SessionID)
	default:
		return fmt.Sprintf("[%s] at %d", ev.Event, ev.Timestamp)
	}
}
