package loadrun

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary(t *testing.T) *Summary {
	t.Helper()

	sink := NewSink()
	sink.AddRequest(TagList, 10*time.Millisecond, false)
	sink.AddRequest(TagList, 30*time.Millisecond, false)
	sink.AddRequest(TagGet, 20*time.Millisecond, true)
	sink.Check("list status is 200", true)
	sink.Check("get status is 200", false)
	sink.AddIteration()
	sink.ObserveVUs(4)

	p := &Profile{
		BaseURL: "http://localhost:3000",
		Thresholds: map[string][]string{
			"http_req_duration": {"p(95) < 500"},
			"http_req_failed":   {"rate < 0.01"},
		},
	}
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewSummary("run-1", p, sink.Snapshot(), start, start.Add(2*time.Second))
}

func TestNewSummary(t *testing.T) {
	s := sampleSummary(t)

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 2*time.Second, s.Elapsed())
	assert.Equal(t, int64(1), s.Iterations)
	assert.Equal(t, 4, s.VUsMax)

	assert.Equal(t, 3, s.Overall.Requests)
	assert.Equal(t, "", s.Overall.Tag)
	require.Len(t, s.Endpoints, 2)
	assert.Equal(t, "get", s.Endpoints[0].Tag)
	assert.Equal(t, "list", s.Endpoints[1].Tag)
	assert.Equal(t, 2, s.Endpoints[1].Requests)
	assert.InDelta(t, 20.0, s.Endpoints[1].Duration.Avg, 0.001)

	assert.Equal(t, []CheckSummary{
		{Name: "list status is 200", Passes: 1},
		{Name: "get status is 200", Fails: 1},
	}, s.Checks)

	require.Len(t, s.Thresholds, 2)
	assert.False(t, s.ThresholdsPassed(), "one of three requests failed")
}

func TestSummary_WriteText(t *testing.T) {
	s := sampleSummary(t)

	var b strings.Builder
	require.NoError(t, s.WriteText(&b))
	out := b.String()

	assert.Contains(t, out, "run run-1 against http://localhost:3000 (2s)")
	assert.Contains(t, out, "✓ list status is 200")
	assert.Contains(t, out, "✗ get status is 200")
	assert.Contains(t, out, "{name:list}")
	assert.Contains(t, out, "iterations 1, vus_max 4")
	assert.Contains(t, out, "✓ http_req_duration: p(95) < 500")
	assert.Contains(t, out, "✗ http_req_failed: rate < 0.01")
}

func TestSummary_Export(t *testing.T) {
	s := sampleSummary(t)
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "summary.json")
		require.NoError(t, s.Export(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "run-1", got["run_id"])
		assert.EqualValues(t, 4, got["vus_max"])
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "summary.YML")
		require.NoError(t, s.Export(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, yaml.Unmarshal(data, &got))
		assert.Equal(t, "run-1", got["run_id"])
		assert.Len(t, got["checks"], 2)
	})

	t.Run("bad path", func(t *testing.T) {
		err := s.Export(filepath.Join(dir, "missing", "summary.json"))
		assert.ErrorContains(t, err, "write summary")
	})
}
