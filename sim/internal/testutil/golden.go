// Package testutil provides shared test infrastructure for the clinic simulator.
// It consolidates the analytic reference dataset and assertion helpers used across
// sim/ and sim/replication/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// AnalyticDataset represents the structure of testdata/analytic_network.json.
// Each case is an open Jackson network whose nodes are independent M/M/c
// queues, so every expected value has a closed form.
type AnalyticDataset struct {
	Cases []AnalyticCase `json:"cases"`
}

// AnalyticCase is one network configuration with its exact steady-state values.
type AnalyticCase struct {
	Name             string                  `json:"name"`
	ArrivalRate      float64                 `json:"arrival_rate"`
	PLab             float64                 `json:"p_lab"`
	MeanTimeInSystem float64                 `json:"mean_time_in_system"`
	Nodes            map[string]AnalyticNode `json:"nodes"`
}

// AnalyticNode holds the Erlang-C results of one node.
type AnalyticNode struct {
	ServiceRate     float64 `json:"service_rate"`
	Servers         int     `json:"servers"`
	ArrivalRate     float64 `json:"arrival_rate"` // effective rate after routing
	Utilization     float64 `json:"utilization"`
	MeanWait        float64 `json:"mean_wait"`
	MeanQueueLength float64 `json:"mean_queue_length"`
}

// LoadAnalyticDataset loads the reference dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadAnalyticDataset(t *testing.T) *AnalyticDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "analytic_network.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read analytic dataset: %v", err)
	}

	var dataset AnalyticDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse analytic dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertFloat64Near compares two float64 values with absolute tolerance.
func AssertFloat64Near(t *testing.T, name string, want, got, absTol float64) {
	t.Helper()
	if diff := math.Abs(want - got); diff > absTol {
		t.Errorf("%s: got %v, want %v (diff=%v, tol=%v)", name, got, want, diff, absTol)
	}
}

// BinomialTolerance returns k standard deviations of the observed fraction
// of n Bernoulli(p) trials.
func BinomialTolerance(p float64, n int64, k float64) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return k * math.Sqrt(p*(1-p)/float64(n))
}
