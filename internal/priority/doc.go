// Package priority keeps each press queue densely numbered.
//
// The Reassigner reads the queued jobs of a press in their current order,
// renumbers them 1..N, and writes the changed slots back as one batch. Runs
// for the same press are serialized in-process; different presses proceed in
// parallel.
package priority
