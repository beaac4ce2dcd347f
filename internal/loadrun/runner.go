package loadrun

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTick is how often the runner re-evaluates the VU target.
const DefaultTick = 100 * time.Millisecond

// VU is one simulated client. Iteration counts completed iterations.
type VU struct {
	ID        int
	Iteration int64

	stop chan struct{}
}

// Stopping returns a channel closed when the runner wants this VU gone
// after its current iteration.
func (vu *VU) Stopping() <-chan struct{} {
	return vu.stop
}

// Sleep pauses for d, returning early if the VU is being stopped or ctx ends.
func (vu *VU) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-vu.stop:
	case <-ctx.Done():
	}
}

// Runner executes a Scenario on a ramping-VU schedule.
type Runner struct {
	profile  *Profile
	scenario Scenario
	sink     *Sink
	log      *slog.Logger
	tick     time.Duration
}

// NewRunner wires a runner. A nil logger falls back to slog.Default().
func NewRunner(p *Profile, scenario Scenario, sink *Sink, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		profile:  p,
		scenario: scenario,
		sink:     sink,
		log:      log,
		tick:     DefaultTick,
	}
}

// SetTick changes the scheduling resolution.
func (r *Runner) SetTick(d time.Duration) {
	if d > 0 {
		r.tick = d
	}
}

// Run performs setup, drives VUs through every stage, waits for them to
// stop (bounded by GracefulRampDown), runs teardown, and returns the summary.
// Cancelling ctx ends the schedule early; teardown still runs.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	startedAt := time.Now()
	runID := uuid.NewString()

	r.log.Info("load run starting",
		slog.String("run_id", runID),
		slog.String("base_url", r.profile.BaseURL),
		slog.Int("stages", len(r.profile.Stages)),
		slog.Duration("duration", r.profile.TotalDuration()))

	data, err := r.scenario.Setup(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	r.log.Info("setup complete", slog.Int64("reserved_id", data.ReservedID))

	vuCtx, cancelVUs := context.WithCancel(ctx)
	defer cancelVUs()

	var wg sync.WaitGroup
	var active []*VU
	nextID := 1

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	scheduleStart := time.Now()

schedule:
	for {
		target, done := TargetAt(r.profile.Stages, time.Since(scheduleStart))
		if done {
			break
		}

		for len(active) < target {
			vu := &VU{ID: nextID, stop: make(chan struct{})}
			nextID++
			active = append(active, vu)

			wg.Add(1)
			go r.runVU(vuCtx, &wg, vu, data)
		}
		for len(active) > target {
			last := active[len(active)-1]
			close(last.stop)
			active = active[:len(active)-1]
		}
		r.sink.ObserveVUs(len(active))

		select {
		case <-ctx.Done():
			break schedule
		case <-ticker.C:
		}
	}

	for _, vu := range active {
		close(vu.stop)
	}
	r.waitVUs(&wg, cancelVUs)

	teardownCtx, cancelTeardown := context.WithTimeout(context.WithoutCancel(ctx), r.profile.RequestTimeout)
	r.scenario.Teardown(teardownCtx, data)
	cancelTeardown()

	endedAt := time.Now()
	snap := r.sink.Snapshot()
	summary := NewSummary(runID, r.profile, snap, startedAt, endedAt)

	r.log.Info("load run finished",
		slog.String("run_id", runID),
		slog.Int64("iterations", snap.Iterations),
		slog.Int("http_reqs", snap.Trends[""].Count),
		slog.Bool("thresholds_passed", summary.ThresholdsPassed()))

	return summary, ctx.Err()
}

// waitVUs gives stopping VUs GracefulRampDown to finish their iteration,
// then cancels whatever is still in flight.
func (r *Runner) waitVUs(wg *sync.WaitGroup, cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(r.profile.GracefulRampDown):
		r.log.Warn("graceful ramp-down elapsed, interrupting iterations")
		cancel()
		<-done
	}
}

func (r *Runner) runVU(ctx context.Context, wg *sync.WaitGroup, vu *VU, data SetupData) {
	defer wg.Done()

	for {
		select {
		case <-vu.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		r.scenario.Iteration(ctx, vu, data)
		if ctx.Err() != nil {
			return
		}
		vu.Iteration++
		r.sink.AddIteration()
	}
}
