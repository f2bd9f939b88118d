package replication

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/clinic-sim/clinic-sim/sim"
)

// CIMethod selects the quantile used for confidence-interval half-widths.
type CIMethod string

const (
	// CIMethodNormal uses the standard normal quantile.
	CIMethodNormal CIMethod = "normal"
	// CIMethodStudentT uses Student's t with n-1 degrees of freedom.
	CIMethodStudentT CIMethod = "student-t"
)

var validCIMethods = map[CIMethod]bool{
	CIMethodNormal:   true,
	CIMethodStudentT: true,
}

// IsValidCIMethod returns true if name is a recognized CI method.
func IsValidCIMethod(name string) bool {
	return validCIMethods[CIMethod(name)]
}

// Estimate is the across-replication estimate of one metric.
type Estimate struct {
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Variance  float64 `json:"variance"`
	HalfWidth float64 `json:"half_width"`
	N         int     `json:"n"`
}

// Lower returns the lower confidence bound.
func (e Estimate) Lower() float64 { return e.Mean - e.HalfWidth }

// Upper returns the upper confidence bound.
func (e Estimate) Upper() float64 { return e.Mean + e.HalfWidth }

// Contains reports whether x lies inside the confidence interval.
func (e Estimate) Contains(x float64) bool { return x >= e.Lower() && x <= e.Upper() }

// NodeSummary holds the estimates of one node.
type NodeSummary struct {
	Name            string   `json:"name"`
	Servers         int      `json:"servers"`
	MeanWait        Estimate `json:"mean_wait"`
	WaitP95         Estimate `json:"wait_p95"`
	MeanQueueLength Estimate `json:"mean_queue_length"`
	Utilization     Estimate `json:"utilization"`
	MeanSojourn     Estimate `json:"mean_sojourn"`
	Throughput      Estimate `json:"throughput"`
	Arrivals        Estimate `json:"arrivals"`
}

// SystemSummary holds the network-wide estimates.
type SystemSummary struct {
	MeanTimeInSystem Estimate `json:"mean_time_in_system"`
	Exited           Estimate `json:"exited"`
	BranchFraction   Estimate `json:"branch_fraction"`
}

// Summary is the reduction of a set of replications.
type Summary struct {
	Replications int                    `json:"replications"`
	Confidence   float64                `json:"confidence"`
	Method       CIMethod               `json:"ci_method"`
	Nodes        map[string]NodeSummary `json:"nodes"`
	System       SystemSummary          `json:"system"`
}

// NodeNames returns the summarized node names in flow order.
func (s *Summary) NodeNames() []string {
	names := make([]string, 0, len(s.Nodes))
	for _, n := range sim.RequiredNodes {
		if _, ok := s.Nodes[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// Aggregate reduces snapshots into a Summary. The result does not depend on the
// order of snaps: they are sorted by replication index before any arithmetic.
// With a single replication every variance and half-width is 0.
func Aggregate(snaps []*sim.Snapshot, confidence float64, method CIMethod) (*Summary, error) {
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: no snapshots to aggregate", sim.ErrInvalidParameter)
	}
	if !(confidence > 0 && confidence < 1) {
		return nil, fmt.Errorf("%w: confidence must be in (0, 1), got %v", sim.ErrInvalidParameter, confidence)
	}
	if !IsValidCIMethod(string(method)) {
		return nil, fmt.Errorf("%w: unknown ci method %q", sim.ErrInvalidParameter, method)
	}

	sorted := slices.Clone(snaps)
	slices.SortFunc(sorted, func(a, b *sim.Snapshot) int { return a.Key.Replication - b.Key.Replication })

	q := quantile(confidence, method, len(sorted))
	est := func(f func(*sim.Snapshot) float64) Estimate {
		xs := make([]float64, len(sorted))
		for i, s := range sorted {
			xs[i] = f(s)
		}
		return newEstimate(xs, q)
	}

	summary := &Summary{
		Replications: len(sorted),
		Confidence:   confidence,
		Method:       method,
		Nodes:        make(map[string]NodeSummary),
	}
	for _, name := range sorted[0].NodeNames() {
		node := func(f func(sim.NodeStats) float64) Estimate {
			return est(func(s *sim.Snapshot) float64 { return f(s.Nodes[name]) })
		}
		summary.Nodes[name] = NodeSummary{
			Name:            name,
			Servers:         sorted[0].Nodes[name].Servers,
			MeanWait:        node(func(n sim.NodeStats) float64 { return n.MeanWait }),
			WaitP95:         node(func(n sim.NodeStats) float64 { return n.WaitP95 }),
			MeanQueueLength: node(func(n sim.NodeStats) float64 { return n.MeanQueueLength }),
			Utilization:     node(func(n sim.NodeStats) float64 { return n.Utilization }),
			MeanSojourn:     node(func(n sim.NodeStats) float64 { return n.MeanSojourn }),
			Throughput:      node(func(n sim.NodeStats) float64 { return n.Throughput }),
			Arrivals:        node(func(n sim.NodeStats) float64 { return float64(n.Arrivals) }),
		}
	}
	summary.System = SystemSummary{
		MeanTimeInSystem: est(func(s *sim.Snapshot) float64 { return s.System.MeanTimeInSystem }),
		Exited:           est(func(s *sim.Snapshot) float64 { return float64(s.System.Exited) }),
		BranchFraction: est(func(s *sim.Snapshot) float64 {
			if s.System.BranchDraws == 0 {
				return 0
			}
			return float64(s.System.BranchTaken) / float64(s.System.BranchDraws)
		}),
	}
	return summary, nil
}

// quantile returns the two-sided critical value for the confidence level.
func quantile(confidence float64, method CIMethod, n int) float64 {
	p := 1 - (1-confidence)/2
	if method == CIMethodStudentT && n > 1 {
		return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(p)
	}
	return distuv.UnitNormal.Quantile(p)
}

func newEstimate(xs []float64, q float64) Estimate {
	if len(xs) < 2 {
		return Estimate{Mean: stat.Mean(xs, nil), N: len(xs)}
	}
	mean, variance := stat.MeanVariance(xs, nil)
	sd := math.Sqrt(variance)
	return Estimate{
		Mean:      mean,
		StdDev:    sd,
		Variance:  variance,
		HalfWidth: q * sd / math.Sqrt(float64(len(xs))),
		N:         len(xs),
	}
}
