// Package pipeline runs one pass of the press desk: fetch recent messages,
// classify them, extract items from the relevant ones and merge the results
// into the item store.
//
// The pass is strictly sequential; the extraction call is the only slow step.
// A store lock next to the item file rejects a second concurrent pass with
// ErrRunInProgress. Per-message problems (service failures, invalid
// responses) are reported on the status line and never abort the pass. A
// mailbox that cannot be read aborts the pass before the store is touched.
//
// Runner.Watch repeats passes on an interval until its context is cancelled.
package pipeline
