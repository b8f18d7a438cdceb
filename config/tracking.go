package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

// LoadTracking reads a YAML tracking profile. Fields left out keep their defaults.
func LoadTracking(path string) (domain.TrackingOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.TrackingOptions{}, fmt.Errorf("read tracking config: %w", err)
	}

	opts := domain.DefaultTrackingOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return domain.TrackingOptions{}, fmt.Errorf("parse tracking config: %w", err)
	}

	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		return domain.TrackingOptions{}, fmt.Errorf("tracking config %s: %w", path, err)
	}
	return opts, nil
}
