package tracking

import (
	"context"
	"database/sql"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	handler "github.com/racanix/location-foreground-service/module/tracking/internal/handler/http"
	"github.com/racanix/location-foreground-service/module/tracking/internal/handler/subscriber"
	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/notifier/rabbitmq"
	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/store"
	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/store/memory"
	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/store/postgres"
	"github.com/racanix/location-foreground-service/module/tracking/internal/transmitter"
	httptx "github.com/racanix/location-foreground-service/module/tracking/internal/transmitter/http"
	"github.com/racanix/location-foreground-service/module/tracking/internal/transmitter/websocket"
	"github.com/racanix/location-foreground-service/module/tracking/service"
)

type Topics struct {
	Location string
	Command  string
}

type Module struct {
	TrackingSvc     *service.TrackingService
	AlertSvc        *service.AlertService
	trackingHandler *handler.TrackingHandler
	alertHandler    *handler.AlertHandler
	commandSub      *subscriber.CommandSubscriber
}

// Build wires the tracking module. A nil db keeps alerts in memory.
func Build(ctx context.Context, db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, topics Topics, log logrus.FieldLogger) (*Module, error) {
	var blobs store.BlobStore
	if db != nil {
		kv := postgres.NewKVStore(db)
		if err := kv.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("alert store: %w", err)
		}
		blobs = kv
	} else {
		blobs = memory.NewKVStore()
	}

	notif, err := rabbitmq.NewNotifier(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	alertSvc := service.NewAlertService(blobs, log)
	locationSub := subscriber.NewLocationSubscriber(mqttClient, topics.Location, log)
	trackingSvc := service.NewTrackingService(
		locationSub,
		notif,
		alertSvc,
		httptx.NewTerminationClient(),
		NewTransmitterFactory(log),
		log,
	)

	return &Module{
		TrackingSvc:     trackingSvc,
		AlertSvc:        alertSvc,
		trackingHandler: handler.NewTrackingHandler(trackingSvc),
		alertHandler:    handler.NewAlertHandler(alertSvc),
		commandSub:      subscriber.NewCommandSubscriber(mqttClient, topics.Command, trackingSvc, log),
	}, nil
}

// NewTransmitterFactory builds the transmitter matching a session's transport.
func NewTransmitterFactory(log logrus.FieldLogger) service.TransmitterFactory {
	return func(t domain.Transport) (transmitter.Transmitter, error) {
		switch t {
		case domain.TransportHTTP:
			return httptx.NewTransmitter(log), nil
		case domain.TransportWebSocket:
			return websocket.NewTransmitter(log), nil
		default:
			return nil, fmt.Errorf("unsupported transport %q", t)
		}
	}
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.trackingHandler.Register(r)
	m.alertHandler.Register(r)
}

func (m *Module) StartSubscribers() error {
	return m.commandSub.Start()
}

// Shutdown stops command intake, then the active session.
func (m *Module) Shutdown(ctx context.Context) {
	m.commandSub.Stop()
	m.TrackingSvc.Shutdown(ctx)
}
