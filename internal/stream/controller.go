// Package stream owns the live push channel to the investigation backend.
//
// Responsibilities:
//   - Attach to the per-user stream endpoint over SSE or WebSocket
//   - Decode named wire events and fold them through the reducer
//   - Guarantee that events from a torn-down channel never touch state
//   - Fan out state snapshots to subscribers
//
// Exactly one channel is live per controller. Start tears down any
// previous channel before attaching; events still in flight from the old
// channel are dropped, never applied.
package stream

import (
	"context"

	"github.com/fraudlens/fraudlens-client/internal/investigation"
)

// Controller drives the lifecycle of the investigation stream for one
// user at a time.
type Controller interface {
	// Start attaches to the stream for userID. investigationID is optional;
	// when present it is forwarded so the backend can route the stream to a
	// specific run. Any previous stream is torn down first.
	Start(ctx context.Context, userID, investigationID string) error

	// Stop tears down the active stream and returns status to idle. A
	// completed run stays completed; everything else reconstructed so far
	// remains readable through State.
	Stop()

	// Reset tears down the active stream and returns state to the pristine
	// default record.
	Reset()

	// Resume seeds state from a reconstructed snapshot. It does not attach
	// a stream; call Start afterwards to follow a live run.
	Resume(ctx context.Context, st investigation.State)

	// State returns a snapshot of the current reconciled state.
	State() investigation.State

	// Subscribe returns a channel that receives a state snapshot after
	// every applied event. The channel is buffered; a slow consumer misses
	// intermediate snapshots, never the ordering of the ones it gets.
	// When ctx is cancelled the subscription is removed and the channel
	// closed.
	Subscribe(ctx context.Context) <-chan investigation.State
}

// Transport delivers decoded events from one attachment to the stream
// endpoint. Run calls onOpen once when the channel is established, then
// blocks until the channel closes, the context is cancelled, or the
// connection fails. A nil return means the server ended the stream
// cleanly.
type Transport interface {
	Name() string
	Run(ctx context.Context, streamURL string, onOpen func(), deliver func(investigation.Event)) error
}

// Recorder persists a finished run. Implemented by the journal store;
// the controller calls it once per terminal transition.
type Recorder interface {
	RecordRun(ctx context.Context, st investigation.State) error
}
