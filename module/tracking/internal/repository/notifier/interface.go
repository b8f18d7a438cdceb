package notifier

import (
	"context"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

// Notifier surfaces session events to the user.
type Notifier interface {
	NotifyArrival(ctx context.Context, event *domain.ArrivalEvent) error
	DismissArrival(ctx context.Context) error
	UpdateStatus(ctx context.Context, event *domain.StatusEvent) error
}
