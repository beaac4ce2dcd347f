package loadrun

import (
	"slices"
	"sync"
	"time"
)

// Metric names, following the naming load-testing tools commonly use.
const (
	MetricHTTPReqs        = "http_reqs"
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqFailed   = "http_req_failed"
	MetricIterations      = "iterations"
	MetricChecks          = "checks"
)

// TrendStats summarises a set of durations in milliseconds.
type TrendStats struct {
	Count int     `json:"count" yaml:"count"`
	Avg   float64 `json:"avg"   yaml:"avg"`
	Min   float64 `json:"min"   yaml:"min"`
	Med   float64 `json:"med"   yaml:"med"`
	Max   float64 `json:"max"   yaml:"max"`
	P90   float64 `json:"p90"   yaml:"p90"`
	P95   float64 `json:"p95"   yaml:"p95"`
	P99   float64 `json:"p99"   yaml:"p99"`

	sorted []float64
}

// Percentile returns the p-th percentile (0-100) with linear
// interpolation between neighbouring samples.
func (t TrendStats) Percentile(p float64) float64 {
	return percentile(t.sorted, p)
}

// RateStats counts boolean outcomes. Rate is the share of Passes.
type RateStats struct {
	Passes int64   `json:"passes" yaml:"passes"`
	Fails  int64   `json:"fails"  yaml:"fails"`
	Rate   float64 `json:"rate"   yaml:"rate"`
}

func newRateStats(passes, fails int64) RateStats {
	r := RateStats{Passes: passes, Fails: fails}
	if total := passes + fails; total > 0 {
		r.Rate = float64(passes) / float64(total)
	}
	return r
}

type counter struct{ passes, fails int64 }

func (c *counter) add(ok bool) {
	if ok {
		c.passes++
	} else {
		c.fails++
	}
}

// Sink collects samples from every VU. All methods are safe for
// concurrent use.
type Sink struct {
	mu sync.Mutex

	// durations and failed are keyed by tag; "" holds every request.
	durations map[string][]float64
	failed    map[string]*counter

	checks     map[string]*counter
	checkOrder []string

	iterations int64
	vusMax     int
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{
		durations: make(map[string][]float64),
		failed:    make(map[string]*counter),
		checks:    make(map[string]*counter),
	}
}

// AddRequest records one HTTP request under tag.
func (s *Sink) AddRequest(tag string, d time.Duration, failed bool) {
	ms := float64(d) / float64(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{"", tag} {
		s.durations[key] = append(s.durations[key], ms)
		c, ok := s.failed[key]
		if !ok {
			c = &counter{}
			s.failed[key] = c
		}
		// http_req_failed counts failures as "passes" of the rate.
		c.add(failed)
		if key == tag {
			break
		}
	}
}

// Check records a named assertion and returns ok.
func (s *Sink) Check(name string, ok bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.checks[name]
	if !exists {
		c = &counter{}
		s.checks[name] = c
		s.checkOrder = append(s.checkOrder, name)
	}
	c.add(ok)
	return ok
}

// AddIteration counts one completed iteration.
func (s *Sink) AddIteration() {
	s.mu.Lock()
	s.iterations++
	s.mu.Unlock()
}

// ObserveVUs raises the vus_max high-water mark.
func (s *Sink) ObserveVUs(n int) {
	s.mu.Lock()
	s.vusMax = max(s.vusMax, n)
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of everything the sink holds.
type Snapshot struct {
	Iterations int64
	VUsMax     int

	// Trends and Failed are keyed by tag; "" is the untagged aggregate.
	Trends map[string]TrendStats
	Failed map[string]RateStats

	Checks     map[string]RateStats
	CheckOrder []string
}

// Tags returns the request tags seen, sorted, excluding the aggregate.
func (s Snapshot) Tags() []string {
	tags := make([]string, 0, len(s.Trends))
	for tag := range s.Trends {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	slices.Sort(tags)
	return tags
}

// ChecksTotal folds every check into one rate.
func (s Snapshot) ChecksTotal() RateStats {
	var passes, fails int64
	for _, c := range s.Checks {
		passes += c.Passes
		fails += c.Fails
	}
	return newRateStats(passes, fails)
}

// Snapshot computes the aggregates.
func (s *Sink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Iterations: s.iterations,
		VUsMax:     s.vusMax,
		Trends:     make(map[string]TrendStats, len(s.durations)),
		Failed:     make(map[string]RateStats, len(s.failed)),
		Checks:     make(map[string]RateStats, len(s.checks)),
		CheckOrder: slices.Clone(s.checkOrder),
	}
	for tag, ds := range s.durations {
		snap.Trends[tag] = newTrendStats(ds)
	}
	for tag, c := range s.failed {
		snap.Failed[tag] = newRateStats(c.passes, c.fails)
	}
	for name, c := range s.checks {
		snap.Checks[name] = newRateStats(c.passes, c.fails)
	}
	if _, ok := snap.Trends[""]; !ok {
		snap.Trends[""] = TrendStats{}
		snap.Failed[""] = RateStats{}
	}
	return snap
}

func newTrendStats(samples []float64) TrendStats {
	if len(samples) == 0 {
		return TrendStats{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}

	return TrendStats{
		Count:  len(sorted),
		Avg:    total / float64(len(sorted)),
		Min:    sorted[0],
		Med:    percentile(sorted, 50),
		Max:    sorted[len(sorted)-1],
		P90:    percentile(sorted, 90),
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
		sorted: sorted,
	}
}

// percentile expects sorted input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 100)

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
