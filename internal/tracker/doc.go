// Package tracker is the timer engine: it owns the per-owner start/pause
// state machine, applies every command optimistically to the Registry,
// confirms it against the session store and either reconciles, queues the
// command for replay (network failures) or rolls it back (rejections).
//
// Commands for one owner run strictly in submission order on that owner's
// lane; commands for different owners run concurrently.
package tracker
