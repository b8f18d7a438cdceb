package service

import (
	"math"
	"sync/atomic"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

const earthRadiusMeters = 6371000

type ArrivalState int

const (
	ArrivalArmed ArrivalState = iota
	ArrivalTriggered
)

func (s ArrivalState) String() string {
	if s == ArrivalTriggered {
		return "TRIGGERED"
	}
	return "ARMED"
}

// ArrivalMonitor fires once per entry into a target radius and re-arms
// when the position leaves it.
type ArrivalMonitor struct {
	triggered atomic.Bool
}

func NewArrivalMonitor() *ArrivalMonitor {
	return &ArrivalMonitor{}
}

// Evaluate returns the distance to target and whether this sample fired an arrival.
func (m *ArrivalMonitor) Evaluate(loc domain.Location, target domain.TargetLocation) (float64, bool) {
	dist := Distance(loc.Lat, loc.Lon, target.Lat, target.Lon)
	if dist <= target.Range() {
		return dist, m.triggered.CompareAndSwap(false, true)
	}
	m.triggered.Store(false)
	return dist, false
}

func (m *ArrivalMonitor) State() ArrivalState {
	if m.triggered.Load() {
		return ArrivalTriggered
	}
	return ArrivalArmed
}

func (m *ArrivalMonitor) Reset() {
	m.triggered.Store(false)
}

// Distance is the haversine great-circle distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
