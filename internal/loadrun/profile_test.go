package loadrun

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadProfile_Defaults(t *testing.T) {
	unsetEnv(t, "BASE_URL", "LOAD_SLEEP", "LOAD_SEED_IDS", "LOAD_RESULTS_DB")

	p, err := LoadProfile("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", p.BaseURL)
	assert.Equal(t, DefaultStages(), p.Stages)
	assert.Equal(t, time.Second, p.Sleep)
	assert.Equal(t, 10*time.Second, p.RequestTimeout)
	assert.Equal(t, []int64{1, 2, 3}, p.SeedIDs)
	assert.Equal(t, DefaultThresholds(), p.Thresholds)
	assert.Equal(t, 2*time.Minute, p.TotalDuration())
	assert.Equal(t, 10, p.MaxTarget())
}

func TestLoadProfile_File(t *testing.T) {
	unsetEnv(t, "BASE_URL", "LOAD_SLEEP", "LOAD_SEED_IDS", "LOAD_RESULTS_DB")

	path := filepath.Join(t.TempDir(), "load.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://api.internal:8080
stages:
  - duration: 10s
    target: 5
  - duration: 20s
    target: 0
sleep: 250ms
thresholds:
  "http_req_duration{name:list}":
    - "p(90) < 200"
`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://api.internal:8080", p.BaseURL)
	assert.Equal(t, []Stage{{10 * time.Second, 5}, {20 * time.Second, 0}}, p.Stages)
	assert.Equal(t, 250*time.Millisecond, p.Sleep)
	assert.Equal(t, map[string][]string{"http_req_duration{name:list}": {"p(90) < 200"}}, p.Thresholds)
}

func TestLoadProfile_BaseURLFromEnv(t *testing.T) {
	unsetEnv(t, "LOAD_SLEEP", "LOAD_SEED_IDS", "LOAD_RESULTS_DB")
	t.Setenv("BASE_URL", "http://staging:3000")

	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "http://staging:3000", p.BaseURL)
}

func TestProfile_Validate(t *testing.T) {
	valid := func() *Profile {
		return &Profile{
			BaseURL:        "http://localhost:3000",
			Stages:         DefaultStages(),
			RequestTimeout: time.Second,
			SeedIDs:        []int64{1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr bool
	}{
		{"valid", func(p *Profile) {}, false},
		{"bad url", func(p *Profile) { p.BaseURL = "not a url" }, true},
		{"no stages", func(p *Profile) { p.Stages = nil }, true},
		{"zero duration stage", func(p *Profile) { p.Stages = []Stage{{0, 1}} }, true},
		{"negative target", func(p *Profile) { p.Stages = []Stage{{time.Second, -1}} }, true},
		{"no seed ids", func(p *Profile) { p.SeedIDs = nil }, true},
		{"unknown threshold metric", func(p *Profile) { p.Thresholds = map[string][]string{"bogus": {"count > 0"}} }, true},
		{"bad tag selector", func(p *Profile) { p.Thresholds = map[string][]string{"http_reqs{list}": {"count > 0"}} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTargetAt(t *testing.T) {
	stages := []Stage{
		{Duration: 10 * time.Second, Target: 10},
		{Duration: 20 * time.Second, Target: 10},
		{Duration: 10 * time.Second, Target: 0},
	}

	tests := []struct {
		at       time.Duration
		want     int
		wantDone bool
	}{
		{0, 0, false},
		{5 * time.Second, 5, false},
		{10 * time.Second, 10, false},
		{25 * time.Second, 10, false},
		{35 * time.Second, 5, false},
		{40 * time.Second, 0, true},
		{time.Hour, 0, true},
	}

	for _, tt := range tests {
		got, done := TargetAt(stages, tt.at)
		assert.Equal(t, tt.want, got, "at %s", tt.at)
		assert.Equal(t, tt.wantDone, done, "at %s", tt.at)
	}
}
