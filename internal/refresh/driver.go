package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/homedash/backend/internal/integration"
	"github.com/homedash/backend/internal/metrics"
	"github.com/homedash/backend/internal/widget"
)

// Broadcaster is the delivery side of the refresh pipeline. Satisfied by
// ws.Broadcaster.
type Broadcaster interface {
	Broadcast(integration, html string)
}

// Mode is the refresh mechanism a driver settled on. Once a driver leaves
// ModeNegotiating it never switches again for its lifetime.
type Mode string

const (
	ModeNegotiating Mode = "negotiating"
	ModeStreaming   Mode = "streaming"
	ModePolling     Mode = "polling"
)

// Driver owns the refresh loop for a single integration. At startup it
// probes for an upstream event feed and settles on streaming or polling;
// either way it renders every snapshot and hands the fragment to the
// broadcaster. Failures inside one driver never reach the others.
type Driver struct {
	integ       integration.Integration
	broadcaster Broadcaster
	store       *widget.Store
	clock       clockwork.Clock
	health      *failureTracker

	mu   sync.Mutex
	mode Mode
}

func NewDriver(integ integration.Integration, b Broadcaster, store *widget.Store, clock clockwork.Clock) *Driver {
	return &Driver{
		integ:       integ,
		broadcaster: b,
		store:       store,
		clock:       clock,
		health:      &failureTracker{},
		mode:        ModeNegotiating,
	}
}

func (d *Driver) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *Driver) setMode(m Mode) {
	d.mu.Lock()
	d.mode = m
	d.mu.Unlock()
}

// Run drives the integration until ctx is cancelled. The returned error is
// non-nil only for a negotiation fault: the event feed exists but could
// not produce its first element, meaning the integration cannot start at
// all. Runtime faults after a successful negotiation are handled locally
// and never propagate.
func (d *Driver) Run(ctx context.Context) error {
	name := d.integ.Name()

	streamer, ok := d.integ.(integration.Streamer)
	if !ok {
		d.startPolling(name)
		return d.pollLoop(ctx)
	}

	stream, err := streamer.OpenStream(ctx)
	if errors.Is(err, integration.ErrStreamingUnsupported) {
		// Capability mismatch, not a failure.
		d.startPolling(name)
		return d.pollLoop(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("opening %s event feed: %w", name, err)
	}

	first, err := stream.Next(ctx)
	if err != nil {
		stream.Close()
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("reading first %s event: %w", name, err)
	}

	d.setMode(ModeStreaming)
	metrics.StreamingMode.WithLabelValues(name).Set(1)
	log.Printf("%s: streaming updates from event feed", name)

	defer stream.Close()

	// Push the first snapshot right away so viewers are not blank until
	// something changes upstream.
	if err := d.publish(first); err != nil {
		log.Printf("Error refreshing %s: %v", name, err)
	}

	return d.streamLoop(ctx, stream)
}

func (d *Driver) startPolling(name string) {
	d.setMode(ModePolling)
	metrics.StreamingMode.WithLabelValues(name).Set(0)
	log.Printf("%s: no event feed, polling every %s", name, d.integ.RefreshInterval())
}

// streamLoop consumes events until cancellation or a feed fault. A fault
// ends the task without restart; a render or delivery problem for one
// element only skips that element.
func (d *Driver) streamLoop(ctx context.Context, stream integration.Stream) error {
	name := d.integ.Name()
	for {
		data, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				log.Printf("%s: event feed completed, which a live feed should never do", name)
			} else {
				log.Printf("%s: event feed broke: %v", name, err)
			}
			return nil
		}

		if err := d.publish(data); err != nil {
			log.Printf("Error refreshing %s: %v", name, err)
		}
	}
}

// pollLoop fetches, renders, and broadcasts once per refresh interval,
// starting immediately. Nothing that happens inside one cycle stops the
// loop; only cancellation does.
func (d *Driver) pollLoop(ctx context.Context) error {
	name := d.integ.Name()
	interval := d.integ.RefreshInterval()

	for {
		if err := d.cycle(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Error refreshing %s: %v", name, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-d.clock.After(interval):
		}
	}
}

// cycle runs one fetch+render+broadcast pass.
func (d *Driver) cycle(ctx context.Context) error {
	data, err := d.integ.Fetch(ctx)
	if err != nil {
		d.health.recordFailure(err)
		metrics.RefreshCycles.WithLabelValues(d.integ.Name(), "error").Inc()
		return err
	}
	return d.publish(data)
}

// publish renders a snapshot and fans the fragment out. The render is
// guarded against panics so a bad template or odd data cannot take the
// driver down.
func (d *Driver) publish(data any) error {
	name := d.integ.Name()
	start := d.clock.Now()

	html, err := d.renderSafe(data)
	metrics.RefreshDuration.WithLabelValues(name).Observe(d.clock.Since(start).Seconds())
	if err != nil {
		d.health.recordFailure(err)
		metrics.RefreshCycles.WithLabelValues(name, "error").Inc()
		return err
	}

	d.health.recordSuccess()
	metrics.RefreshCycles.WithLabelValues(name, "ok").Inc()

	d.store.Put(name, html)
	d.broadcaster.Broadcast(name, html)
	return nil
}

func (d *Driver) renderSafe(data any) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			log.Printf("%s render panic (correlation_id: %s): %v\n%s",
				d.integ.Name(), correlationID, r, debug.Stack())
			err = fmt.Errorf("render panic (correlation_id: %s)", correlationID)
		}
	}()
	return d.integ.Render(data)
}

// failureTracker records consecutive refresh failures for one integration.
// Written from the driver goroutine, read by the status API.
type failureTracker struct {
	mu          sync.Mutex
	consecutive int
	lastErr     string
	lastFailAt  time.Time
}

func (f *failureTracker) recordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutive = 0
	f.lastErr = ""
}

func (f *failureTracker) recordFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutive++
	f.lastErr = err.Error()
	f.lastFailAt = time.Now()
}

func (f *failureTracker) snapshot() (consecutive int, lastErr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consecutive, f.lastErr
}
