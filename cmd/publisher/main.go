package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/racanix/location-foreground-service/config"
)

type locationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float32 `json:"accuracy"`
	Speed     float32 `json:"speed"`
	Bearing   float32 `json:"bearing"`
	Timestamp int64   `json:"timestamp"`
}

const (
	metersPerDegree = 111_195.0
	stepMeters      = 40.0
	startOffset     = 400.0
)

// walker moves toward the target, turns back once inside it and repeats,
// so every pass triggers a fresh arrival.
type walker struct {
	lat, lon             float64
	targetLat, targetLon float64
	originLat, originLon float64
	headingToGoal        bool
}

func newWalker(targetLat, targetLon float64) *walker {
	angle := rand.Float64() * 2 * math.Pi
	dLat := startOffset * math.Cos(angle) / metersPerDegree
	dLon := startOffset * math.Sin(angle) / metersPerDegree
	return &walker{
		lat:           targetLat + dLat,
		lon:           targetLon + dLon,
		targetLat:     targetLat,
		targetLon:     targetLon,
		originLat:     targetLat + dLat,
		originLon:     targetLon + dLon,
		headingToGoal: true,
	}
}

func (w *walker) step() (bearing float64) {
	goalLat, goalLon := w.originLat, w.originLon
	if w.headingToGoal {
		goalLat, goalLon = w.targetLat, w.targetLon
	}

	dy := (goalLat - w.lat) * metersPerDegree
	dx := (goalLon - w.lon) * metersPerDegree
	dist := math.Hypot(dx, dy)
	if dist <= stepMeters {
		w.lat, w.lon = goalLat, goalLon
		w.headingToGoal = !w.headingToGoal
	} else {
		w.lat += dy / dist * stepMeters / metersPerDegree
		w.lon += dx / dist * stepMeters / metersPerDegree
	}
	return math.Mod(math.Atan2(dx, dy)*180/math.Pi+360, 360)
}

func parseFloatEnv(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <interval_seconds>\n", os.Args[0])
		os.Exit(1)
	}

	intervalSec, err := strconv.Atoi(os.Args[1])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}

	cfg := config.Load()
	cfg.MQTTClientID = "tracker-simulator-" + uuid.NewString()[:8]
	log := config.NewLogger(cfg)

	client, err := config.NewMQTT(cfg, log)
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer client.Disconnect(250)

	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		deviceID = "sim-" + uuid.NewString()[:8]
	}
	topic := fmt.Sprintf("/tracker/device/%s/location", deviceID)

	w := newWalker(
		parseFloatEnv("TARGET_LAT", -6.2088),
		parseFloatEnv("TARGET_LON", 106.8456),
	)

	log.Infof("connected to %s, publishing to %s every %ds...", cfg.MQTTBroker, topic, intervalSec)

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		bearing := w.step()
		msg := locationMessage{
			Latitude:  w.lat,
			Longitude: w.lon,
			Accuracy:  float32(3 + rand.Float64()*5),
			Speed:     float32(stepMeters / float64(intervalSec)),
			Bearing:   float32(bearing),
			Timestamp: time.Now().UnixMilli(),
		}

		payload, _ := json.Marshal(msg)
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.WithError(err).Warn("publish failed")
			continue
		}

		log.Infof("published to %s: %s", topic, payload)
	}
}
