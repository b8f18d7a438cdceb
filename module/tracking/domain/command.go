package domain

type CommandAction string

const (
	ActionStart          CommandAction = "START"
	ActionStop           CommandAction = "STOP"
	ActionConfirmArrival CommandAction = "CONFIRM_ARRIVAL"
	ActionRejectArrival  CommandAction = "REJECT_ARRIVAL"
)

// Command is one message of the inbound control protocol.
type Command struct {
	Action  CommandAction    `json:"action"`
	Options *TrackingOptions `json:"options,omitempty"`
	AlertID string           `json:"alertId,omitempty"`
}

// Status is a snapshot of the tracking session.
type Status struct {
	Running   bool   `json:"running"`
	Connected bool   `json:"connected"`
	Pending   int    `json:"pending"`
	SessionID string `json:"session_id,omitempty"`
}
