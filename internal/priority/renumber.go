package priority

import "slices"

// Slot is a queued job's position in its press queue.
type Slot struct {
	JobID    string
	Priority int
}

// Renumber assigns 1..N to slots in their given order and returns only the
// slots whose priority changed. The input is not modified.
func Renumber(slots []Slot) []Slot {
	var changed []Slot
	for i, slot := range slots {
		want := i + 1
		if slot.Priority != want {
			changed = append(changed, Slot{JobID: slot.JobID, Priority: want})
		}
	}
	return changed
}

// Dense reports whether the priorities in slots are exactly 1..len(slots) in
// some order.
func Dense(slots []Slot) bool {
	values := make([]int, len(slots))
	for i, slot := range slots {
		values[i] = slot.Priority
	}
	slices.Sort(values)
	for i, value := range values {
		if value != i+1 {
			return false
		}
	}
	return true
}
