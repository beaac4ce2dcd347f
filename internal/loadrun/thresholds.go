package loadrun

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/expr-lang/expr"
)

// ThresholdResult is the outcome of one threshold expression.
type ThresholdResult struct {
	Metric     string `json:"metric"     yaml:"metric"`
	Expression string `json:"expression" yaml:"expression"`
	Passed     bool   `json:"passed"     yaml:"passed"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

var selectorPattern = regexp.MustCompile(`^([a-z_]+)(?:\{name:([^{}]+)\})?$`)

var knownMetrics = []string{
	MetricHTTPReqs,
	MetricHTTPReqDuration,
	MetricHTTPReqFailed,
	MetricIterations,
	MetricChecks,
}

// parseSelector splits "http_req_duration{name:list}" into its metric
// and tag parts.
func parseSelector(selector string) (metric, tag string, err error) {
	m := selectorPattern.FindStringSubmatch(selector)
	if m == nil {
		return "", "", fmt.Errorf("threshold selector %q: want metric or metric{name:tag}", selector)
	}
	if !slices.Contains(knownMetrics, m[1]) {
		return "", "", fmt.Errorf("threshold selector %q: unknown metric %q", selector, m[1])
	}
	if m[2] != "" && (m[1] == MetricIterations || m[1] == MetricChecks) {
		return "", "", fmt.Errorf("threshold selector %q: %s is not tagged", selector, m[1])
	}
	return m[1], m[2], nil
}

// thresholdEnv exposes the aggregates of one metric to expressions.
//
//	trend:   avg min med max count p(N)
//	rate:    rate passes fails
//	counter: count rate (per second)
func thresholdEnv(snap Snapshot, metric, tag string, elapsed time.Duration) map[string]any {
	perSecond := func(n int64) float64 {
		if elapsed <= 0 {
			return 0
		}
		return float64(n) / elapsed.Seconds()
	}

	switch metric {
	case MetricHTTPReqDuration:
		t := snap.Trends[tag]
		return map[string]any{
			"avg":   t.Avg,
			"min":   t.Min,
			"med":   t.Med,
			"max":   t.Max,
			"count": t.Count,
			"p": func(q any) float64 {
				switch v := q.(type) {
				case int:
					return t.Percentile(float64(v))
				case float64:
					return t.Percentile(v)
				default:
					return 0
				}
			},
		}
	case MetricHTTPReqFailed:
		r := snap.Failed[tag]
		return map[string]any{"rate": r.Rate, "passes": r.Passes, "fails": r.Fails}
	case MetricChecks:
		r := snap.ChecksTotal()
		return map[string]any{"rate": r.Rate, "passes": r.Passes, "fails": r.Fails}
	case MetricHTTPReqs:
		n := int64(snap.Trends[tag].Count)
		return map[string]any{"count": n, "rate": perSecond(n)}
	case MetricIterations:
		return map[string]any{"count": snap.Iterations, "rate": perSecond(snap.Iterations)}
	}
	return nil
}

// EvaluateThresholds runs every expression against snap. Results are
// ordered by selector, then by declaration order. Evaluation never
// affects the run; callers decide what a failure means.
func EvaluateThresholds(thresholds map[string][]string, snap Snapshot, elapsed time.Duration) []ThresholdResult {
	selectors := make([]string, 0, len(thresholds))
	for s := range thresholds {
		selectors = append(selectors, s)
	}
	slices.Sort(selectors)

	var results []ThresholdResult
	for _, selector := range selectors {
		metric, tag, err := parseSelector(selector)
		for _, expression := range thresholds[selector] {
			res := ThresholdResult{Metric: selector, Expression: expression}
			if err != nil {
				res.Error = err.Error()
				results = append(results, res)
				continue
			}

			passed, evalErr := evalThreshold(expression, thresholdEnv(snap, metric, tag, elapsed))
			res.Passed = passed
			if evalErr != nil {
				res.Error = evalErr.Error()
			}
			results = append(results, res)
		}
	}
	return results
}

func evalThreshold(expression string, env map[string]any) (bool, error) {
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile %q: %w", expression, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", expression, err)
	}
	return out.(bool), nil
}

// AllPassed reports whether every threshold passed.
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
