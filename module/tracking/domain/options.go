package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Accuracy string

const (
	AccuracyHigh     Accuracy = "HIGH"
	AccuracyBalanced Accuracy = "BALANCED"
)

// ParseAccuracy is case-insensitive; anything other than "balanced" is HIGH.
func ParseAccuracy(s string) Accuracy {
	if strings.EqualFold(strings.TrimSpace(s), string(AccuracyBalanced)) {
		return AccuracyBalanced
	}
	return AccuracyHigh
}

type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

const (
	DefaultMinUpdateInterval = 10_000
	DefaultFastestInterval   = 5_000
	DefaultMinUpdateDistance = 5.0
	DefaultRetryDelay        = 5_000
	DefaultQueueCapacity     = 32
	DefaultNotificationTitle = "Location active"
	DefaultNotificationBody  = "Sharing your location"
)

// TerminationAlertPlaceholder is replaced by the alert id in AlertTerminationEndpoint.
const TerminationAlertPlaceholder = "#param#"

var (
	ErrInvalidOptions   = errors.New("invalid tracking options")
	ErrEndpointRequired = fmt.Errorf("%w: endpoint is required", ErrInvalidOptions)
)

var validate = validator.New()

// TrackingOptions is the configuration of one tracking session.
type TrackingOptions struct {
	Endpoint                 string            `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	AlertTerminationEndpoint string            `json:"alertTerminationEndpoint" yaml:"alertTerminationEndpoint"`
	Headers                  map[string]string `json:"headers" yaml:"headers"`
	Metadata                 map[string]string `json:"metadata" yaml:"metadata"`
	MinUpdateIntervalMillis  int64             `json:"minUpdateIntervalMillis" yaml:"minUpdateIntervalMillis" validate:"gt=0"`
	FastestIntervalMillis    int64             `json:"fastestIntervalMillis" yaml:"fastestIntervalMillis" validate:"gte=0"`
	MinUpdateDistanceMeters  float64           `json:"minUpdateDistanceMeters" yaml:"minUpdateDistanceMeters" validate:"gte=0"`
	NotificationTitle        string            `json:"notificationTitle" yaml:"notificationTitle"`
	NotificationBody         string            `json:"notificationBody" yaml:"notificationBody"`
	RetryDelayMillis         int64             `json:"retryDelayMillis" yaml:"retryDelayMillis" validate:"gte=0"`
	QueueCapacity            int               `json:"queueCapacity" yaml:"queueCapacity" validate:"gte=1"`
	Accuracy                 Accuracy          `json:"accuracy" yaml:"accuracy" validate:"oneof=HIGH BALANCED"`
	Transport                Transport         `json:"transport" yaml:"transport" validate:"oneof=http websocket"`
	TargetLocation           *TargetLocation   `json:"targetLocation" yaml:"targetLocation"`
	StopWhenNoAlerts         bool              `json:"stopWhenNoAlerts" yaml:"stopWhenNoAlerts"`
}

func DefaultTrackingOptions() TrackingOptions {
	return TrackingOptions{
		Headers:                 map[string]string{},
		Metadata:                map[string]string{},
		MinUpdateIntervalMillis: DefaultMinUpdateInterval,
		FastestIntervalMillis:   DefaultFastestInterval,
		MinUpdateDistanceMeters: DefaultMinUpdateDistance,
		NotificationTitle:       DefaultNotificationTitle,
		NotificationBody:        DefaultNotificationBody,
		RetryDelayMillis:        DefaultRetryDelay,
		QueueCapacity:           DefaultQueueCapacity,
		Accuracy:                AccuracyHigh,
	}
}

// Normalize trims the endpoint, fills defaults and clamps the queue capacity.
func (o TrackingOptions) Normalize() TrackingOptions {
	o.Endpoint = strings.TrimSpace(o.Endpoint)
	if o.Headers == nil {
		o.Headers = map[string]string{}
	}
	if o.Metadata == nil {
		o.Metadata = map[string]string{}
	}
	if o.QueueCapacity < 1 {
		o.QueueCapacity = 1
	}
	if o.NotificationTitle == "" {
		o.NotificationTitle = DefaultNotificationTitle
	}
	if o.NotificationBody == "" {
		o.NotificationBody = DefaultNotificationBody
	}
	if o.Accuracy == "" {
		o.Accuracy = AccuracyHigh
	}
	if o.Transport == "" {
		o.Transport = InferTransport(o.Endpoint)
	}
	if o.TargetLocation != nil {
		t := *o.TargetLocation
		t.RangeMeters = t.Range()
		o.TargetLocation = &t
	}
	return o
}

func (o TrackingOptions) Validate() error {
	if strings.TrimSpace(o.Endpoint) == "" {
		return ErrEndpointRequired
	}
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// InferTransport picks websocket for ws/wss endpoints and http otherwise.
func InferTransport(endpoint string) Transport {
	u, err := url.Parse(endpoint)
	if err != nil {
		return TransportHTTP
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return TransportWebSocket
	default:
		return TransportHTTP
	}
}

func (o TrackingOptions) MinUpdateInterval() time.Duration {
	return time.Duration(o.MinUpdateIntervalMillis) * time.Millisecond
}

func (o TrackingOptions) FastestInterval() time.Duration {
	return time.Duration(o.FastestIntervalMillis) * time.Millisecond
}

func (o TrackingOptions) RetryDelay() time.Duration {
	return time.Duration(o.RetryDelayMillis) * time.Millisecond
}

// TerminationURL substitutes the alert id into the termination template.
func (o TrackingOptions) TerminationURL(alertID string) string {
	return strings.ReplaceAll(o.AlertTerminationEndpoint, TerminationAlertPlaceholder, url.PathEscape(alertID))
}

func (o TrackingOptions) LocationRequest() LocationRequest {
	return LocationRequest{
		Interval:        o.MinUpdateInterval(),
		FastestInterval: o.FastestInterval(),
		MinDistance:     o.MinUpdateDistanceMeters,
		Accuracy:        o.Accuracy,
	}
}
