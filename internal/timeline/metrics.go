package timeline

import (
	"slices"
	"time"
)

// Metrics are the aggregates derived from a job's timeline. Durations are in
// seconds.
type Metrics struct {
	TotalPauseTime float64 `json:"totalPauseTime"`
	TotalSetupTime float64 `json:"totalSetupTime"`
	PauseCount     int     `json:"pauseCount"`
	SetupCount     int     `json:"setupCount"`
}

// interval tracks one kind of start/end pairing during a replay.
type interval struct {
	open  *time.Time
	total float64
	count int
}

func (iv *interval) start(at time.Time) {
	iv.count++
	iv.open = &at
}

func (iv *interval) end(at time.Time) {
	if iv.open == nil {
		return
	}
	iv.total += at.Sub(*iv.open).Seconds()
	iv.open = nil
}

func (iv *interval) settle(now time.Time) {
	if iv.open == nil {
		return
	}
	iv.total += now.Sub(*iv.open).Seconds()
	iv.open = nil
}

// Compute replays events in timestamp order and returns the derived metrics.
//
// A start with no later matching end is treated as still running and counted
// up to now. Repeated starts overwrite the open timestamp while still bumping
// the count; ends with nothing open are ignored. Deltas are not clamped.
func Compute(events []Event, now time.Time) Metrics {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	var pause, setup interval
	for _, evt := range sorted {
		switch evt.Type {
		case PauseStart:
			pause.start(evt.Timestamp)
		case PauseEnd:
			pause.end(evt.Timestamp)
		case SetupStart:
			setup.start(evt.Timestamp)
		case SetupEnd:
			setup.end(evt.Timestamp)
		}
	}
	pause.settle(now)
	setup.settle(now)

	return Metrics{
		TotalPauseTime: pause.total,
		TotalSetupTime: setup.total,
		PauseCount:     pause.count,
		SetupCount:     setup.count,
	}
}

// Open reports whether the timeline currently has an unclosed pause or setup.
func Open(events []Event) (pausing, inSetup bool) {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	for _, evt := range sorted {
		switch evt.Type {
		case PauseStart:
			pausing = true
		case PauseEnd:
			pausing = false
		case SetupStart:
			inSetup = true
		case SetupEnd:
			inSetup = false
		}
	}
	return pausing, inSetup
}
