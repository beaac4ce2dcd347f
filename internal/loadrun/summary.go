package loadrun

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EndpointSummary is the request metrics for one tag.
type EndpointSummary struct {
	Tag      string     `json:"tag"      yaml:"tag"`
	Requests int        `json:"requests" yaml:"requests"`
	Duration TrendStats `json:"duration" yaml:"duration"`
	Failed   RateStats  `json:"failed"   yaml:"failed"`
}

// CheckSummary is the pass/fail tally of one named check.
type CheckSummary struct {
	Name   string `json:"name"   yaml:"name"`
	Passes int64  `json:"passes" yaml:"passes"`
	Fails  int64  `json:"fails"  yaml:"fails"`
}

// Summary is the end-of-run report.
type Summary struct {
	RunID     string    `json:"run_id"     yaml:"run_id"`
	BaseURL   string    `json:"base_url"   yaml:"base_url"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time `json:"ended_at"   yaml:"ended_at"`

	Iterations int64 `json:"iterations" yaml:"iterations"`
	VUsMax     int   `json:"vus_max"    yaml:"vus_max"`

	Overall    EndpointSummary   `json:"overall"    yaml:"overall"`
	Endpoints  []EndpointSummary `json:"endpoints"  yaml:"endpoints"`
	Checks     []CheckSummary    `json:"checks"     yaml:"checks"`
	Thresholds []ThresholdResult `json:"thresholds" yaml:"thresholds"`
}

// NewSummary builds the report from a snapshot and evaluates the
// profile's thresholds against it.
func NewSummary(runID string, p *Profile, snap Snapshot, startedAt, endedAt time.Time) *Summary {
	elapsed := endedAt.Sub(startedAt)

	s := &Summary{
		RunID:      runID,
		BaseURL:    p.BaseURL,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		Iterations: snap.Iterations,
		VUsMax:     snap.VUsMax,
		Overall:    endpointSummary(snap, ""),
		Thresholds: EvaluateThresholds(p.Thresholds, snap, elapsed),
	}
	for _, tag := range snap.Tags() {
		s.Endpoints = append(s.Endpoints, endpointSummary(snap, tag))
	}
	for _, name := range snap.CheckOrder {
		c := snap.Checks[name]
		s.Checks = append(s.Checks, CheckSummary{Name: name, Passes: c.Passes, Fails: c.Fails})
	}
	return s
}

func endpointSummary(snap Snapshot, tag string) EndpointSummary {
	t := snap.Trends[tag]
	return EndpointSummary{
		Tag:      tag,
		Requests: t.Count,
		Duration: t,
		Failed:   snap.Failed[tag],
	}
}

// Elapsed is the wall-clock length of the run.
func (s *Summary) Elapsed() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// ThresholdsPassed reports whether every threshold passed.
func (s *Summary) ThresholdsPassed() bool {
	return AllPassed(s.Thresholds)
}

// WriteText prints a human-readable report.
func (s *Summary) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s against %s (%s)\n\n", s.RunID, s.BaseURL, s.Elapsed().Round(time.Millisecond))

	if len(s.Checks) > 0 {
		b.WriteString("checks\n")
		for _, c := range s.Checks {
			mark := "✓"
			if c.Fails > 0 {
				mark = "✗"
			}
			fmt.Fprintf(&b, "  %s %-28s %d passed, %d failed\n", mark, c.Name, c.Passes, c.Fails)
		}
		b.WriteString("\n")
	}

	writeEndpoint := func(label string, e EndpointSummary) {
		d := e.Duration
		fmt.Fprintf(&b, "  %-26s reqs=%-6d failed=%6.2f%%  avg=%.2fms min=%.2fms med=%.2fms max=%.2fms p(90)=%.2fms p(95)=%.2fms\n",
			label, e.Requests, e.Failed.Rate*100, d.Avg, d.Min, d.Med, d.Max, d.P90, d.P95)
	}

	b.WriteString("http\n")
	writeEndpoint(MetricHTTPReqDuration, s.Overall)
	for _, e := range s.Endpoints {
		writeEndpoint(fmt.Sprintf("{name:%s}", e.Tag), e)
	}

	fmt.Fprintf(&b, "\niterations %d, vus_max %d\n", s.Iterations, s.VUsMax)

	if len(s.Thresholds) > 0 {
		b.WriteString("\nthresholds\n")
		for _, t := range s.Thresholds {
			mark := "✓"
			if !t.Passed {
				mark = "✗"
			}
			fmt.Fprintf(&b, "  %s %s: %s", mark, t.Metric, t.Expression)
			if t.Error != "" {
				fmt.Fprintf(&b, " (%s)", t.Error)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Export writes the summary to path as YAML (.yaml, .yml) or JSON (anything else).
func (s *Summary) Export(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
