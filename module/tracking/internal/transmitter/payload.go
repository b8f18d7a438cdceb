package transmitter

import (
	"encoding/json"
	"fmt"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

type wireMessage struct {
	Location  wireLocation      `json:"location"`
	Timestamp int64             `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type wireLocation struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float32 `json:"accuracy"`
	Altitude float64 `json:"altitude"`
	Speed    float32 `json:"speed"`
	Bearing  float32 `json:"bearing"`
}

// Encode renders the payload as the JSON body shared by every transport.
func Encode(p domain.LocationPayload, metadata map[string]string) ([]byte, error) {
	msg := wireMessage{
		Location: wireLocation{
			Lat:      p.Latitude,
			Lng:      p.Longitude,
			Accuracy: p.Accuracy,
			Altitude: p.Altitude,
			Speed:    p.Speed,
			Bearing:  p.Bearing,
		},
		Timestamp: p.TimestampMillis,
		Metadata:  metadata,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return body, nil
}

// Decode parses a wire message back into a payload and its metadata.
func Decode(body []byte) (domain.LocationPayload, map[string]string, error) {
	var msg wireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.LocationPayload{}, nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return domain.LocationPayload{
		Latitude:        msg.Location.Lat,
		Longitude:       msg.Location.Lng,
		Accuracy:        msg.Location.Accuracy,
		Altitude:        msg.Location.Altitude,
		Speed:           msg.Location.Speed,
		Bearing:         msg.Location.Bearing,
		TimestampMillis: msg.Timestamp,
	}, msg.Metadata, nil
}
