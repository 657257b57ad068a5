package timeline

import (
	"strings"
	"time"
)

// EventType identifies what happened to a job at a point in time.
type EventType string

const (
	ProductionStart EventType = "production_start"
	ProductionEnd   EventType = "production_end"
	SetupStart      EventType = "setup_start"
	SetupEnd        EventType = "setup_end"
	PauseStart      EventType = "pause_start"
	PauseEnd        EventType = "pause_end"
	Creation        EventType = "creation"
	Edit            EventType = "edit"
)

var allTypes = []EventType{
	ProductionStart,
	ProductionEnd,
	SetupStart,
	SetupEnd,
	PauseStart,
	PauseEnd,
	Creation,
	Edit,
}

// operatorTypes are the event types callers may append directly. Creation and
// edit events are generated by the job service.
var operatorTypes = map[EventType]struct{}{
	ProductionStart: {},
	ProductionEnd:   {},
	SetupStart:      {},
	SetupEnd:        {},
	PauseStart:      {},
	PauseEnd:        {},
}

// Event is a single immutable entry in a job's timeline.
type Event struct {
	UserID    string         `json:"userId,omitempty" bson:"userId,omitempty"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Type      EventType      `json:"type" bson:"type"`
	Details   map[string]any `json:"details,omitempty" bson:"details,omitempty"`
}

// AllTypes returns every known event type.
func AllTypes() []EventType {
	cp := make([]EventType, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// ParseType converts a string into a known EventType.
func ParseType(value string) (EventType, bool) {
	normalized := EventType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// IsOperatorType reports whether callers may append events of this type.
func IsOperatorType(t EventType) bool {
	_, ok := operatorTypes[t]
	return ok
}
