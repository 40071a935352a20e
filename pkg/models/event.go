package models

import "time"

// EventType identifies a broadcast event kind.
type EventType string

const (
	EventPassStarted   EventType = "pass_started"
	EventPassCompleted EventType = "pass_completed"
	EventAlertRaised   EventType = "alert_raised"
	EventAlertResolved EventType = "alert_resolved"

	// EventDropped is substituted for events a slow subscriber missed.
	EventDropped EventType = "dropped"
)

// Event is a state-change notification delivered to live subscribers.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, payload interface{}) Event {
	return Event{Type: eventType, Timestamp: time.Now(), Payload: payload}
}

// PassSummary is the payload of pass_started and pass_completed events.
type PassSummary struct {
	PassID      int64  `json:"pass_id,omitempty"`
	Trigger     string `json:"trigger"`
	Summary     string `json:"summary,omitempty"`
	DeviceCount int    `json:"device_count"`
	FailedCount int    `json:"failed_count,omitempty"`
}

// DroppedPayload reports how many events a subscriber missed since its
// previous drop marker.
type DroppedPayload struct {
	Count int64 `json:"count"`
}
