package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var thresholdPattern = regexp.MustCompile(`^\s*(rate|avg|min|max|med|count|p\(\s*(\d+(?:\.\d+)?)\s*\))\s*(<=|>=|==|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

// Threshold は1つのメトリクスに対する合否条件
// 例: http_req_duration の "p(95)<1000"
type Threshold struct {
	Metric     string
	Expr       string
	Aggregate  string  // rate, avg, min, max, med, count, p
	Percentile float64 // Aggregate が p のとき
	Op         string
	Value      float64
}

// ParseThreshold は条件式を解析する
func ParseThreshold(metric, expr string) (Threshold, error) {
	if strings.TrimSpace(metric) == "" {
		return Threshold{}, fmt.Errorf("threshold %q has no metric", expr)
	}

	m := thresholdPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold expression for %s: %q", metric, expr)
	}

	th := Threshold{
		Metric:    metric,
		Expr:      strings.TrimSpace(expr),
		Aggregate: m[1],
		Op:        m[3],
	}

	if m[2] != "" {
		p, err := strconv.ParseFloat(m[2], 64)
		if err != nil || p < 0 || p > 100 {
			return Threshold{}, fmt.Errorf("invalid percentile in %q", expr)
		}
		th.Aggregate = "p"
		th.Percentile = p
	}

	v, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value in %q: %w", expr, err)
	}
	th.Value = v

	return th, nil
}

// ParseThresholds はメトリクス名→条件式リストのマップを解析する
func ParseThresholds(defs map[string][]string) ([]Threshold, error) {
	var out []Threshold
	for _, metric := range SortedNames(defs) {
		for _, expr := range defs[metric] {
			th, err := ParseThreshold(metric, expr)
			if err != nil {
				return nil, err
			}
			out = append(out, th)
		}
	}
	return out, nil
}

func (th Threshold) String() string {
	return th.Metric + ": " + th.Expr
}

func (th Threshold) compare(actual float64) bool {
	switch th.Op {
	case "<":
		return actual < th.Value
	case "<=":
		return actual <= th.Value
	case ">":
		return actual > th.Value
	case ">=":
		return actual >= th.Value
	case "==":
		return actual == th.Value
	default:
		return false
	}
}

// ThresholdResult は評価結果
type ThresholdResult struct {
	Threshold Threshold `json:"-"`
	Name      string    `json:"name"`
	Actual    float64   `json:"actual"`
	Passed    bool      `json:"passed"`
	NoData    bool      `json:"no_data"`
}

// Evaluate は条件を現在の値で評価する
// 未記録のメトリクスは値0として評価し NoData を立てる
func (r *Registry) Evaluate(thresholds []Threshold) []ThresholdResult {
	results := make([]ThresholdResult, 0, len(thresholds))
	for _, th := range thresholds {
		actual, ok := r.aggregate(th)
		results = append(results, ThresholdResult{
			Threshold: th,
			Name:      th.String(),
			Actual:    actual,
			Passed:    th.compare(actual),
			NoData:    !ok,
		})
	}
	return results
}

func (r *Registry) aggregate(th Threshold) (float64, bool) {
	r.mu.RLock()
	rate, isRate := r.rates[th.Metric]
	trend, isTrend := r.trends[th.Metric]
	counter, isCounter := r.counters[th.Metric]
	r.mu.RUnlock()

	switch {
	case isRate:
		switch th.Aggregate {
		case "rate":
			return rate.Value(), rate.Count() > 0
		case "count":
			return float64(rate.Count()), rate.Count() > 0
		}
	case isTrend:
		stats := trend.Stats()
		has := stats.Count > 0
		switch th.Aggregate {
		case "avg":
			return stats.Avg, has
		case "min":
			return stats.Min, has
		case "max":
			return stats.Max, has
		case "med":
			return stats.Med, has
		case "count":
			return float64(stats.Count), has
		case "p":
			return trend.Percentile(th.Percentile), has
		}
	case isCounter:
		if th.Aggregate == "count" {
			total := counter.Total()
			return total, total > 0
		}
	}
	return 0, false
}

// AllPassed は全結果が合格かどうかを返す
func AllPassed(results []ThresholdResult) bool {
	for _, res := range results {
		if !res.Passed {
			return false
		}
	}
	return true
}
