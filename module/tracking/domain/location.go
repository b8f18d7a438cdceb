package domain

import "time"

// Location is a raw sample delivered by the location source.
type Location struct {
	Lat       float64   `json:"latitude"`
	Lon       float64   `json:"longitude"`
	Accuracy  float32   `json:"accuracy"`
	Altitude  float64   `json:"altitude"`
	Speed     float32   `json:"speed"`
	Bearing   float32   `json:"bearing"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationPayload is the immutable unit queued for transmission.
type LocationPayload struct {
	Latitude        float64
	Longitude       float64
	Accuracy        float32
	Altitude        float64
	Speed           float32
	Bearing         float32
	TimestampMillis int64
}

func NewLocationPayload(loc Location, at time.Time) LocationPayload {
	return LocationPayload{
		Latitude:        loc.Lat,
		Longitude:       loc.Lon,
		Accuracy:        loc.Accuracy,
		Altitude:        loc.Altitude,
		Speed:           loc.Speed,
		Bearing:         loc.Bearing,
		TimestampMillis: at.UnixMilli(),
	}
}

// LocationRequest describes how often and how precisely the source should deliver samples.
type LocationRequest struct {
	Interval        time.Duration
	FastestInterval time.Duration
	MinDistance     float64
	Accuracy        Accuracy
}
