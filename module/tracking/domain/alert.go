package domain

import "fmt"

type AlertType string

const (
	AlertJourney         AlertType = "JOURNEY"
	AlertQuick           AlertType = "QUICK"
	AlertRequestLocation AlertType = "REQUEST_LOCATION"
	AlertDefault         AlertType = "DEFAULT"
)

// ParseAlertType maps unknown names to AlertDefault.
func ParseAlertType(s string) AlertType {
	switch t := AlertType(s); t {
	case AlertJourney, AlertQuick, AlertRequestLocation, AlertDefault:
		return t
	default:
		return AlertDefault
	}
}

const DefaultTargetRange = 10.0

type TargetLocation struct {
	Lat         float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Lon         float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
	RangeMeters float64 `json:"rangeMeters" yaml:"rangeMeters"`
}

// Range returns the radius, falling back to DefaultTargetRange when unset or invalid.
func (t TargetLocation) Range() float64 {
	if t.RangeMeters > 0 {
		return t.RangeMeters
	}
	return DefaultTargetRange
}

func (t TargetLocation) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid target location: %w", err)
	}
	return nil
}

type Alert struct {
	ID             string          `json:"id"`
	Type           AlertType       `json:"type"`
	TargetLocation *TargetLocation `json:"targetLocation,omitempty"`
}

// ArrivalEvent is raised once per entry into the active target radius.
type ArrivalEvent struct {
	AlertID   string   `json:"alert_id,omitempty"`
	Location  Location `json:"location"`
	Distance  float64  `json:"distance_meters"`
	Timestamp int64    `json:"timestamp"`
}

// StatusEvent mirrors the ongoing foreground notification.
type StatusEvent struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Pending   int    `json:"pending"`
	Timestamp int64  `json:"timestamp"`
}
