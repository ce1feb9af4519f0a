package enums

import "fmt"

// EventType classifies a bookable club event.
type EventType string

const (
	EventTypeRun     EventType = "run"
	EventTypePilates EventType = "pilates"
	EventTypePadel   EventType = "padel"
	EventTypeEvent   EventType = "event"
)

var validEventTypes = []EventType{
	EventTypeRun,
	EventTypePilates,
	EventTypePadel,
	EventTypeEvent,
}

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventType.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts raw input into an EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
