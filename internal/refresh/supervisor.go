package refresh

import (
	"context"
	"log"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/homedash/backend/internal/integration"
	"github.com/homedash/backend/internal/widget"
)

// DriverStatus is the supervisor's view of one running (or ended) driver.
type DriverStatus struct {
	Mode                Mode
	ConsecutiveFailures int
	LastError           string
}

// Supervisor starts one refresh driver per loaded integration and owns
// their lifetime. A driver that cannot negotiate its mode is logged and
// abandoned; the remaining drivers keep running.
type Supervisor struct {
	drivers map[string]*Driver

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSupervisor(integrations []integration.Integration, b Broadcaster, store *widget.Store, clock clockwork.Clock) *Supervisor {
	drivers := make(map[string]*Driver, len(integrations))
	for _, integ := range integrations {
		drivers[integ.Name()] = NewDriver(integ, b, store, clock)
	}
	return &Supervisor{drivers: drivers}
}

// Start spawns one goroutine per driver. Calling Start twice is a no-op:
// each integration gets at most one refresh task.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)

	for name, driver := range s.drivers {
		s.wg.Add(1)
		go func(name string, d *Driver) {
			defer s.wg.Done()
			if err := d.Run(ctx); err != nil {
				log.Printf("Integration %s could not start: %v", name, err)
			}
		}(name, driver)
	}

	log.Printf("Started %d refresh task(s)", len(s.drivers))
}

// Stop cancels every driver and waits for them to settle. Safe to call
// when some drivers already ended on their own, and safe to call more
// than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Status reports each driver's negotiated mode and failure counters,
// keyed by integration name.
func (s *Supervisor) Status() map[string]DriverStatus {
	statuses := make(map[string]DriverStatus, len(s.drivers))
	for name, d := range s.drivers {
		failures, lastErr := d.health.snapshot()
		statuses[name] = DriverStatus{
			Mode:                d.Mode(),
			ConsecutiveFailures: failures,
			LastError:           lastErr,
		}
	}
	return statuses
}
