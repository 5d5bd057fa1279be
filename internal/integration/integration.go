package integration

import (
	"context"
	"errors"
	"time"
)

// ErrStreamingUnsupported is the sentinel an integration's OpenStream
// returns when the upstream service has no event feed at all. The refresh
// driver branches on it with errors.Is: this sentinel selects polling mode,
// while any other error is an operational fault that aborts the
// integration's startup. Implementations must not wrap transient network
// failures in it.
var ErrStreamingUnsupported = errors.New("integration does not support streaming")

// Integration is the contract every dashboard data source implements.
// Each implementation wraps one upstream service (task manager, NVR,
// local metrics probe) and knows how to fetch a point-in-time snapshot
// and render it into a widget HTML fragment.
//
// Fetch and Render are called from a single refresh driver goroutine per
// integration. They do not need to be safe for concurrent use, but Render
// is also called from HTTP handlers serving the dashboard page, so it must
// not mutate integration state.
type Integration interface {
	// Name returns the unique lowercase identifier for this integration,
	// e.g. "todoist". Used as the widget key in config, the store, and
	// push messages.
	Name() string

	// DisplayName returns the human-readable widget title.
	DisplayName() string

	// RefreshInterval returns the delay between snapshot fetches. Only
	// used in polling mode; a streaming integration is driven entirely
	// by upstream events.
	RefreshInterval() time.Duration

	// Fetch retrieves a current snapshot from the upstream service. It
	// may block on network I/O and must honor ctx cancellation.
	Fetch(ctx context.Context) (any, error)

	// Render turns a snapshot from Fetch (or from a stream) into an HTML
	// fragment. Implementations should degrade gracefully on odd data
	// rather than fail, but callers still guard against errors and
	// panics.
	Render(data any) (string, error)
}

// Streamer is implemented by integrations whose upstream can push change
// notifications. The refresh driver probes for it at startup; integrations
// without it are polled at their refresh interval.
type Streamer interface {
	// OpenStream subscribes to the upstream event feed and returns a
	// stream of snapshots. It returns ErrStreamingUnsupported (possibly
	// wrapped) when the feed is unavailable by design rather than by
	// failure, e.g. a feature the upstream account does not include.
	OpenStream(ctx context.Context) (Stream, error)
}

// Stream is an unbounded sequence of snapshots driven by upstream change
// events.
type Stream interface {
	// Next blocks until the upstream produces the next snapshot, ctx is
	// cancelled, or the feed breaks. The first Next call must produce the
	// current state so a newly started dashboard is not blank until
	// something changes upstream. Returning io.EOF means the feed
	// completed, which a live event feed never does on its own.
	Next(ctx context.Context) (any, error)

	// Close tears down the upstream subscription. Safe to call after
	// Next returned an error.
	Close() error
}
