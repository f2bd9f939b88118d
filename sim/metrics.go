// Tracks per-node and network-wide performance metrics such as:
// time-weighted queue length, server utilization, wait and sojourn times.

package sim

import (
	"fmt"
	"math"
	"slices"
)

// NodeStats is the measured outcome of one node in one replication.
// Every field covers only the interval [warmup, end].
type NodeStats struct {
	Name            string  `json:"name"`
	Servers         int     `json:"servers"`
	Arrivals        int64   `json:"arrivals"`
	Completions     int64   `json:"completions"`
	WaitSamples     int64   `json:"wait_samples"`
	MeanWait        float64 `json:"mean_wait"`
	WaitP95         float64 `json:"wait_p95"`
	MeanSojourn     float64 `json:"mean_sojourn"`
	MeanQueueLength float64 `json:"mean_queue_length"` // time-weighted
	MaxQueueLength  int     `json:"max_queue_length"`
	BusyTime        float64 `json:"busy_time"`  // integral of busy servers over time
	Utilization     float64 `json:"utilization"`
	Throughput      float64 `json:"throughput"` // completions per time unit
}

// SystemStats summarizes the network as a whole.
type SystemStats struct {
	Entered          int64   `json:"entered"`             // external arrivals admitted
	Exited           int64   `json:"exited"`              // patients that left via the terminal node
	MeasuredExits    int64   `json:"measured_exits"`      // exits of patients that arrived after warmup
	MeanTimeInSystem float64 `json:"mean_time_in_system"` // over MeasuredExits
	BranchDraws      int64   `json:"branch_draws"`
	BranchTaken      int64   `json:"branch_taken"`
}

// Snapshot is the final statistics record of one replication.
type Snapshot struct {
	Key             SimulationKey        `json:"key"`
	Warmup          float64              `json:"warmup"`
	End             float64              `json:"end"`
	Duration        float64              `json:"duration"` // end - warmup
	EventsProcessed int64                `json:"events_processed"`
	Nodes           map[string]NodeStats `json:"nodes"`
	System          SystemStats          `json:"system"`
}

// NodeNames returns the snapshot's node names in sorted order.
func (s *Snapshot) NodeNames() []string {
	return sortedKeys(s.Nodes)
}

// nodeAccumulator holds the running integrals of one node.
type nodeAccumulator struct {
	servers   int
	lastTime  float64
	queueLen  int
	busy      int
	queueArea float64
	busyArea  float64
	maxQueue  int

	arrivals    int64
	completions int64
	waits       []float64
	sojournSum  float64
}

// Collector accumulates measurements for one replication.
// Observations timestamped before the warmup cutoff are excluded; the cutoff is
// a hard boundary. Time-weighted integrals only count the part of each interval
// that lies after the cutoff.
type Collector struct {
	warmup float64
	nodes  map[string]*nodeAccumulator

	entered       int64
	exited        int64
	measuredExits int64
	timeInSystem  float64
	branchDraws   int64
	branchTaken   int64

	finalized bool
}

// NewCollector creates a collector for the given nodes.
func NewCollector(warmup float64, servers map[string]int) *Collector {
	c := &Collector{
		warmup: warmup,
		nodes:  make(map[string]*nodeAccumulator, len(servers)),
	}
	for name, n := range servers {
		c.nodes[name] = &nodeAccumulator{servers: n}
	}
	return c
}

func (c *Collector) node(name string) *nodeAccumulator {
	acc, ok := c.nodes[name]
	if !ok {
		panic(fmt.Sprintf("collector: unknown node %q", name))
	}
	return acc
}

// integrate adds the area of the node's current state over (last, now],
// clipped to the measured interval.
func (c *Collector) integrate(acc *nodeAccumulator, now float64) {
	start := math.Max(acc.lastTime, c.warmup)
	if now > start {
		dt := now - start
		acc.queueArea += float64(acc.queueLen) * dt
		acc.busyArea += float64(acc.busy) * dt
		acc.maxQueue = max(acc.maxQueue, acc.queueLen)
	}
	if now > acc.lastTime {
		acc.lastTime = now
	}
}

// ObserveArrival implements NodeObserver.
func (c *Collector) ObserveArrival(node string, _ *Patient, now float64) {
	if now >= c.warmup {
		c.node(node).arrivals++
	}
}

// ObserveServiceStart implements NodeObserver. The wait sample belongs to the
// side of the cutoff its service start falls on.
func (c *Collector) ObserveServiceStart(node string, p *Patient, now float64) {
	if now < c.warmup {
		return
	}
	acc := c.node(node)
	acc.waits = append(acc.waits, p.current(node).Wait())
}

// ObserveDeparture implements NodeObserver.
func (c *Collector) ObserveDeparture(node string, p *Patient, now float64) {
	if now < c.warmup {
		return
	}
	acc := c.node(node)
	acc.completions++
	acc.sojournSum += p.current(node).Sojourn()
}

// ObserveTransition implements NodeObserver.
func (c *Collector) ObserveTransition(node string, now float64, queueLen, busy int) {
	acc := c.node(node)
	c.integrate(acc, now)
	acc.queueLen = queueLen
	acc.busy = busy
	if now >= c.warmup {
		acc.maxQueue = max(acc.maxQueue, queueLen)
	}
}

// ObserveAdmission counts an external arrival entering the network.
func (c *Collector) ObserveAdmission(_ *Patient, _ float64) {
	c.entered++
}

// ObserveRouting counts branch decisions.
func (c *Collector) ObserveRouting(_ *Patient, d RoutingDecision, _ float64) {
	if math.IsNaN(d.Draw) {
		return
	}
	c.branchDraws++
	if d.Branch {
		c.branchTaken++
	}
}

// ObserveExit records a patient leaving the network.
func (c *Collector) ObserveExit(p *Patient, _ float64) {
	c.exited++
	if p.ArrivalTime >= c.warmup {
		c.measuredExits++
		c.timeInSystem += p.TimeInSystem()
	}
}

// Snapshot closes every integral at end and returns the replication's statistics.
// It may only be called once.
func (c *Collector) Snapshot(key SimulationKey, end float64, events int64) *Snapshot {
	if c.finalized {
		panic("collector: Snapshot called twice")
	}
	c.finalized = true

	duration := math.Max(end-c.warmup, 0)
	snap := &Snapshot{
		Key:             key,
		Warmup:          c.warmup,
		End:             end,
		Duration:        duration,
		EventsProcessed: events,
		Nodes:           make(map[string]NodeStats, len(c.nodes)),
		System: SystemStats{
			Entered:       c.entered,
			Exited:        c.exited,
			MeasuredExits: c.measuredExits,
			BranchDraws:   c.branchDraws,
			BranchTaken:   c.branchTaken,
		},
	}
	if c.measuredExits > 0 {
		snap.System.MeanTimeInSystem = c.timeInSystem / float64(c.measuredExits)
	}

	for name, acc := range c.nodes {
		c.integrate(acc, end)
		ns := NodeStats{
			Name:           name,
			Servers:        acc.servers,
			Arrivals:       acc.arrivals,
			Completions:    acc.completions,
			WaitSamples:    int64(len(acc.waits)),
			MeanWait:       CalculateMean(acc.waits),
			MaxQueueLength: acc.maxQueue,
			BusyTime:       acc.busyArea,
		}
		if len(acc.waits) > 0 {
			sorted := slices.Clone(acc.waits)
			slices.Sort(sorted)
			ns.WaitP95 = CalculatePercentile(sorted, 95)
		}
		if acc.completions > 0 {
			ns.MeanSojourn = acc.sojournSum / float64(acc.completions)
		}
		if duration > 0 {
			ns.MeanQueueLength = acc.queueArea / duration
			ns.Utilization = acc.busyArea / (float64(acc.servers) * duration)
			ns.Throughput = float64(acc.completions) / duration
		}
		snap.Nodes[name] = ns
	}
	return snap
}
