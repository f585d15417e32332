/*
scheduler.go - Periodic consistency checks

PURPOSE:
  Periodically compares every live container's snapshot with the sum of its
  log entries and reports drift. The check never modifies anything; it only
  logs mismatches and hands the report to an optional observer (metrics).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Keeps the last report and the next run time for GET /api/consistency/last

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewConsistencyScheduler(svc, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - inventory/consistency.go: CheckConsistency
  - metrics/metrics.go: ObserveConsistency
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/spirits-ledger/inventory"
)

// ConsistencyObserver receives every completed report.
type ConsistencyObserver interface {
	ObserveConsistency(r inventory.ConsistencyReport)
}

// ConsistencyScheduler runs inventory consistency checks on a ticker.
type ConsistencyScheduler struct {
	Service       *inventory.Service
	Observer      ConsistencyObserver
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *inventory.ConsistencyReport
	next   time.Time
}

// NewConsistencyScheduler creates a new scheduler.
func NewConsistencyScheduler(svc *inventory.Service, log zerolog.Logger) *ConsistencyScheduler {
	return &ConsistencyScheduler{
		Service:       svc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log.With().Str("component", "consistency").Logger(),
	}
}

// Start begins the scheduler.
func (cs *ConsistencyScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled || cs.CheckInterval <= 0 {
		cs.log.Info().Msg("scheduler disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.scheduleNext()
	cs.wg.Add(1)

	go cs.run()

	cs.log.Info().Dur("interval", cs.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (cs *ConsistencyScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.ticker = nil

		cs.lastMu.Lock()
		cs.next = time.Time{}
		cs.lastMu.Unlock()
		cs.log.Info().Msg("scheduler stopped")
	}
}

func (cs *ConsistencyScheduler) run() {
	defer cs.wg.Done()

	cs.RunNow(context.Background())

	for {
		select {
		case <-cs.ticker.C:
			cs.scheduleNext()
			cs.RunNow(context.Background())
		case <-cs.stop:
			return
		}
	}
}

// RunNow performs one check immediately and returns its report.
func (cs *ConsistencyScheduler) RunNow(ctx context.Context) (inventory.ConsistencyReport, error) {
	report, err := cs.Service.CheckConsistency(ctx)
	if err != nil {
		cs.log.Error().Err(err).Msg("consistency check failed")
		return inventory.ConsistencyReport{}, err
	}
	cs.record(report)

	for _, d := range report.Discrepancies {
		ev := cs.log.Info()
		if d.NetMismatch {
			ev = cs.log.Warn()
		}
		ev.Str("container_id", string(d.ContainerID)).
			Str("container", d.ContainerName).
			Str("net_drift_lbs", d.NetWeightDrift.String()).
			Str("pg_drift", d.ProofGallonsDrift.String()).
			Msg("container log does not match snapshot")
	}
	cs.log.Info().
		Int("containers", report.Containers).
		Int("entries", report.Entries).
		Int("mismatches", report.Mismatches()).
		Msg("consistency check complete")
	return report, nil
}

func (cs *ConsistencyScheduler) record(r inventory.ConsistencyReport) {
	cs.lastMu.Lock()
	cs.last = &r
	cs.lastMu.Unlock()
	if cs.Observer != nil {
		cs.Observer.ObserveConsistency(r)
	}
}

// Last returns the most recent report, if any check has run.
func (cs *ConsistencyScheduler) Last() (inventory.ConsistencyReport, bool) {
	cs.lastMu.RLock()
	defer cs.lastMu.RUnlock()
	if cs.last == nil {
		return inventory.ConsistencyReport{}, false
	}
	return *cs.last, true
}

func (cs *ConsistencyScheduler) scheduleNext() {
	cs.lastMu.Lock()
	cs.next = time.Now().Add(cs.CheckInterval)
	cs.lastMu.Unlock()
}

// NextRunTime returns roughly when the next scheduled check will occur. It
// reports false while the scheduler is not running.
func (cs *ConsistencyScheduler) NextRunTime() (time.Time, bool) {
	cs.lastMu.RLock()
	defer cs.lastMu.RUnlock()
	return cs.next, !cs.next.IsZero()
}
