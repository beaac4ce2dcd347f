// Package loadrun drives staged virtual-user traffic against the users API
// and aggregates per-endpoint latency and success metrics.
package loadrun

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// Stage is one segment of the schedule: over Duration the VU count moves
// linearly from the previous stage's Target to this one's.
type Stage struct {
	Duration time.Duration `yaml:"duration" json:"duration" validate:"gt=0"`
	Target   int           `yaml:"target"   json:"target"   validate:"gte=0"`
}

// Profile is the declarative description of a load run.
type Profile struct {
	BaseURL string  `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:3000" validate:"required,url"`
	Stages  []Stage `yaml:"stages" validate:"required,min=1,dive"`

	// Sleep is the think time at the end of every iteration.
	Sleep            time.Duration `yaml:"sleep"              env:"LOAD_SLEEP"              env-default:"1s"  validate:"gte=0"`
	RequestTimeout   time.Duration `yaml:"request_timeout"    env:"LOAD_REQUEST_TIMEOUT"    env-default:"10s" validate:"gt=0"`
	GracefulRampDown time.Duration `yaml:"graceful_ramp_down" env:"LOAD_GRACEFUL_RAMP_DOWN" env-default:"30s" validate:"gte=0"`

	// SeedIDs are the ids get-by-id draws from. They must exist for the
	// whole run; the default matches the service's seeded records.
	SeedIDs []int64 `yaml:"seed_ids" env:"LOAD_SEED_IDS" env-default:"1,2,3" validate:"required,min=1,dive,gt=0"`

	// Thresholds maps a metric selector such as "http_req_duration" or
	// "http_req_duration{name:list}" to expressions like "p(95) < 500".
	Thresholds map[string][]string `yaml:"thresholds"`

	// ResultsDB is the SQLite file runs are recorded in. Empty disables it.
	ResultsDB string `yaml:"results_db" env:"LOAD_RESULTS_DB"`
}

// DefaultStages ramps up to 10 VUs, holds, then ramps down to zero.
func DefaultStages() []Stage {
	return []Stage{
		{Duration: 30 * time.Second, Target: 10},
		{Duration: time.Minute, Target: 10},
		{Duration: 30 * time.Second, Target: 0},
	}
}

// DefaultThresholds are applied when a profile declares none.
func DefaultThresholds() map[string][]string {
	return map[string][]string{
		"http_req_duration": {"p(95) < 500"},
		"http_req_failed":   {"rate < 0.01"},
	}
}

// LoadProfile reads the YAML file at path (when non-empty) and the
// environment, fills defaults, and validates the result.
func LoadProfile(path string) (*Profile, error) {
	var p Profile

	if path == "" {
		if err := cleanenv.ReadEnv(&p); err != nil {
			return nil, fmt.Errorf("loadrun.LoadProfile: read env: %w", err)
		}
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("profile file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &p); err != nil {
			return nil, fmt.Errorf("loadrun.LoadProfile: %w", err)
		}
	}

	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyDefaults() {
	if len(p.Stages) == 0 {
		p.Stages = DefaultStages()
	}
	if p.Thresholds == nil {
		p.Thresholds = DefaultThresholds()
	}
}

// Validate checks field constraints and threshold selectors.
func (p *Profile) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	for selector := range p.Thresholds {
		if _, _, err := parseSelector(selector); err != nil {
			return fmt.Errorf("invalid profile: %w", err)
		}
	}
	return nil
}

// TotalDuration is the sum of all stage durations.
func (p *Profile) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range p.Stages {
		total += s.Duration
	}
	return total
}

// MaxTarget is the largest VU target across stages.
func (p *Profile) MaxTarget() int {
	maxVUs := 0
	for _, s := range p.Stages {
		maxVUs = max(maxVUs, s.Target)
	}
	return maxVUs
}

// TargetAt returns the VU target at elapsed time t and whether the
// schedule has finished. The schedule starts from zero VUs.
func TargetAt(stages []Stage, t time.Duration) (int, bool) {
	from := 0
	for _, s := range stages {
		if t < s.Duration {
			frac := float64(t) / float64(s.Duration)
			return from + int(float64(s.Target-from)*frac), false
		}
		t -= s.Duration
		from = s.Target
	}
	return from, true
}
