package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/service"
)

var _ service.LocationSource = (*LocationSubscriber)(nil)

const DefaultLocationTopic = "/tracker/device/+/location"

type locationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float32 `json:"accuracy"`
	Altitude  float64 `json:"altitude"`
	Speed     float32 `json:"speed"`
	Bearing   float32 `json:"bearing"`
	Timestamp int64   `json:"timestamp"`
}

// LocationSubscriber feeds device samples from MQTT to the tracking session,
// applying the session's interval and distance filter.
type LocationSubscriber struct {
	client mqtt.Client
	topic  string
	log    logrus.FieldLogger

	mu         sync.Mutex
	req        domain.LocationRequest
	fn         func(ctx context.Context, loc domain.Location)
	last       *domain.Location
	subscribed bool
}

func NewLocationSubscriber(client mqtt.Client, topic string, log logrus.FieldLogger) *LocationSubscriber {
	if topic == "" {
		topic = DefaultLocationTopic
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocationSubscriber{
		client: client,
		topic:  topic,
		log:    log.WithField("subscriber", "location"),
	}
}

func qosFor(a domain.Accuracy) byte {
	if a == domain.AccuracyBalanced {
		return 0
	}
	return 1
}

func (s *LocationSubscriber) Subscribe(req domain.LocationRequest, fn func(ctx context.Context, loc domain.Location)) error {
	s.mu.Lock()
	s.req = req
	s.fn = fn
	s.last = nil
	s.mu.Unlock()

	token := s.client.Subscribe(s.topic, qosFor(req.Accuracy), s.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.mu.Lock()
		s.fn = nil
		s.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}

	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{
		"topic":       s.topic,
		"interval_ms": req.Interval.Milliseconds(),
		"accuracy":    req.Accuracy,
	}).Info("location updates subscribed")
	return nil
}

func (s *LocationSubscriber) Unsubscribe() error {
	s.mu.Lock()
	s.fn = nil
	s.last = nil
	wasSubscribed := s.subscribed
	s.subscribed = false
	s.mu.Unlock()

	if !wasSubscribed {
		return nil
	}
	token := s.client.Unsubscribe(s.topic)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", s.topic, err)
	}
	return nil
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.log.WithError(err).Warn("invalid location message")
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		s.log.WithError(err).WithField("topic", msg.Topic()).Warn("validation error")
		return
	}

	loc := domain.Location{
		Lat:       raw.Latitude,
		Lon:       raw.Longitude,
		Accuracy:  raw.Accuracy,
		Altitude:  raw.Altitude,
		Speed:     raw.Speed,
		Bearing:   raw.Bearing,
		Timestamp: time.UnixMilli(raw.Timestamp),
	}

	s.mu.Lock()
	fn := s.fn
	admitted := fn != nil && s.admit(loc)
	s.mu.Unlock()

	if !admitted {
		return
	}
	fn(context.Background(), loc)
}

// admit applies the fastest-interval and min-distance filter. Caller holds mu.
func (s *LocationSubscriber) admit(loc domain.Location) bool {
	if s.last != nil {
		elapsed := loc.Timestamp.Sub(s.last.Timestamp)
		if elapsed < s.req.FastestInterval {
			return false
		}
		if s.req.MinDistance > 0 && elapsed < s.req.Interval {
			if service.Distance(s.last.Lat, s.last.Lon, loc.Lat, loc.Lon) < s.req.MinDistance {
				return false
			}
		}
	}
	s.last = &loc
	return true
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	return nil
}
