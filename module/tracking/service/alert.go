package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/store"
)

const alertsKey = "alerts"

var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrAlertInvalid  = errors.New("alert id is required")
)

// AlertService keeps the alert list as one JSON array blob.
type AlertService struct {
	store store.BlobStore
	log   logrus.FieldLogger
	mu    sync.Mutex
}

func NewAlertService(s store.BlobStore, log logrus.FieldLogger) *AlertService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AlertService{store: s, log: log.WithField("component", "alerts")}
}

// load treats a missing or malformed blob as an empty list.
func (s *AlertService) load(ctx context.Context) ([]domain.Alert, error) {
	raw, err := s.store.Get(ctx, alertsKey)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return []domain.Alert{}, nil
	}

	var alerts []domain.Alert
	if err := json.Unmarshal([]byte(raw), &alerts); err != nil {
		s.log.WithError(err).Warn("malformed alert blob, treating as empty")
		return []domain.Alert{}, nil
	}

	out := alerts[:0]
	for _, a := range alerts {
		if a.ID == "" {
			continue
		}
		out = append(out, normalizeAlert(a))
	}
	return out, nil
}

func (s *AlertService) save(ctx context.Context, alerts []domain.Alert) error {
	body, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}
	if err := s.store.Put(ctx, alertsKey, string(body)); err != nil {
		return fmt.Errorf("save alerts: %w", err)
	}
	return nil
}

func normalizeAlert(a domain.Alert) domain.Alert {
	a.Type = domain.ParseAlertType(string(a.Type))
	if a.TargetLocation != nil {
		t := *a.TargetLocation
		t.RangeMeters = t.Range()
		a.TargetLocation = &t
	}
	return a
}

func (s *AlertService) List(ctx context.Context) ([]domain.Alert, error) {
	return s.load(ctx)
}

// Add stores alert and reports false when the id is already taken.
func (s *AlertService) Add(ctx context.Context, alert domain.Alert) (bool, error) {
	if strings.TrimSpace(alert.ID) == "" {
		return false, ErrAlertInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range alerts {
		if a.ID == alert.ID {
			return false, nil
		}
	}

	alerts = append(alerts, normalizeAlert(alert))
	if err := s.save(ctx, alerts); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AlertService) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	kept := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(alerts) {
		return false, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AlertService) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, []domain.Alert{})
}

func (s *AlertService) Get(ctx context.Context, id string) (*domain.Alert, error) {
	alerts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range alerts {
		if alerts[i].ID == id {
			return &alerts[i], nil
		}
	}
	return nil, ErrAlertNotFound
}

func (s *AlertService) Count(ctx context.Context) (int, error) {
	alerts, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(alerts), nil
}

func (s *AlertService) HasType(ctx context.Context, t domain.AlertType) (bool, error) {
	alerts, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range alerts {
		if a.Type == t {
			return true, nil
		}
	}
	return false, nil
}

// ActiveTarget returns the first JOURNEY alert that carries a target.
func (s *AlertService) ActiveTarget(ctx context.Context) (string, *domain.TargetLocation, error) {
	alerts, err := s.load(ctx)
	if err != nil {
		return "", nil, err
	}
	for _, a := range alerts {
		if a.Type == domain.AlertJourney && a.TargetLocation != nil {
			return a.ID, a.TargetLocation, nil
		}
	}
	return "", nil, nil
}
