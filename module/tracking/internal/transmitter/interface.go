package transmitter

import (
	"context"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

// Transmitter delivers location payloads to the configured endpoint.
//
// Send must never block indefinitely and reports failures as false; Shutdown
// must be safe to call more than once and without a prior Initialize.
type Transmitter interface {
	Initialize(ctx context.Context, opts domain.TrackingOptions) error
	Send(ctx context.Context, payload domain.LocationPayload, opts domain.TrackingOptions) bool
	Shutdown(ctx context.Context)
	State() *ConnState
}
