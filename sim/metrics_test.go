package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic-sim/clinic-sim/sim/internal/testutil"
)

func TestCollector_TimeWeightedIntegralsClippedAtWarmup(t *testing.T) {
	// GIVEN a collector with warmup 10 for a 2-server node
	c := NewCollector(10, map[string]int{"n": 2})

	// WHEN the node is busy=1 on [0, 15), busy=2 with 1 waiting on [15, 20)
	c.ObserveTransition("n", 0, 0, 1)
	c.ObserveTransition("n", 15, 1, 2)
	snap := c.Snapshot(NewSimulationKey(1, 0), 20, 3)

	// THEN only [10, 20] is measured
	ns := snap.Nodes["n"]
	assert.Equal(t, 10.0, snap.Duration)
	testutil.AssertFloat64Equal(t, "busy time", 1*5+2*5, ns.BusyTime, 1e-12)
	testutil.AssertFloat64Equal(t, "utilization", 15.0/(2*10), ns.Utilization, 1e-12)
	testutil.AssertFloat64Equal(t, "mean queue length", 5.0/10, ns.MeanQueueLength, 1e-12)
	assert.Equal(t, 1, ns.MaxQueueLength)
	assert.Equal(t, int64(3), snap.EventsProcessed)
}

func TestCollector_WaitSamplesSplitAtWarmup(t *testing.T) {
	// GIVEN a collector with warmup 5
	c := NewCollector(5, map[string]int{NodeDoctor: 1})

	// WHEN one patient starts service before the cutoff and one after
	early := NewPatient(1, 1)
	early.enter(NodeDoctor, 1)
	early.current(NodeDoctor).ServiceStart = 4
	c.ObserveServiceStart(NodeDoctor, early, 4)

	late := NewPatient(2, 3)
	late.enter(NodeDoctor, 3)
	late.current(NodeDoctor).ServiceStart = 6
	c.ObserveServiceStart(NodeDoctor, late, 6)

	snap := c.Snapshot(NewSimulationKey(1, 0), 10, 0)

	// THEN only the post-warmup service start contributes a wait sample,
	// even though that patient arrived before the cutoff
	ns := snap.Nodes[NodeDoctor]
	assert.Equal(t, int64(1), ns.WaitSamples)
	assert.Equal(t, 3.0, ns.MeanWait)
	assert.Equal(t, 3.0, ns.WaitP95)
}

func TestCollector_ArrivalsCompletionsAndSojourn(t *testing.T) {
	c := NewCollector(2, map[string]int{NodeLab: 1})

	p := NewPatient(1, 1)
	p.enter(NodeLab, 1)
	c.ObserveArrival(NodeLab, p, 1) // before warmup, not counted
	v := p.current(NodeLab)
	v.ServiceStart, v.Exit = 1, 4
	c.ObserveDeparture(NodeLab, p, 4)

	q := NewPatient(2, 3)
	q.enter(NodeLab, 3)
	c.ObserveArrival(NodeLab, q, 3)

	snap := c.Snapshot(NewSimulationKey(1, 0), 12, 0)
	ns := snap.Nodes[NodeLab]
	assert.Equal(t, int64(1), ns.Arrivals)
	assert.Equal(t, int64(1), ns.Completions)
	assert.Equal(t, 3.0, ns.MeanSojourn)
	testutil.AssertFloat64Equal(t, "throughput", 1.0/10, ns.Throughput, 1e-12)
}

func TestCollector_SystemStats(t *testing.T) {
	c := NewCollector(10, map[string]int{})

	// GIVEN one patient admitted before warmup and one after
	early := NewPatient(1, 5)
	late := NewPatient(2, 12)
	c.ObserveAdmission(early, 5)
	c.ObserveAdmission(late, 12)

	// AND three routing decisions, two of them drawn and one branching
	c.ObserveRouting(early, RoutingDecision{From: NodeRegistration, To: NodeDoctor, Draw: math.NaN()}, 6)
	c.ObserveRouting(early, RoutingDecision{From: NodeDoctor, To: NodeLab, Draw: 0.1, Branch: true}, 7)
	c.ObserveRouting(late, RoutingDecision{From: NodeDoctor, To: NodePharmacy, Draw: 0.7}, 13)

	// WHEN both exit
	early.ExitTime = 15
	late.ExitTime = 20
	c.ObserveExit(early, 15)
	c.ObserveExit(late, 20)
	snap := c.Snapshot(NewSimulationKey(1, 0), 20, 0)

	// THEN time in system is measured only for the post-warmup arrival
	assert.Equal(t, int64(2), snap.System.Entered)
	assert.Equal(t, int64(2), snap.System.Exited)
	assert.Equal(t, int64(1), snap.System.MeasuredExits)
	assert.Equal(t, 8.0, snap.System.MeanTimeInSystem)
	assert.Equal(t, int64(2), snap.System.BranchDraws)
	assert.Equal(t, int64(1), snap.System.BranchTaken)
}

func TestCollector_SnapshotTwice_Panics(t *testing.T) {
	c := NewCollector(0, map[string]int{"n": 1})
	c.Snapshot(NewSimulationKey(1, 0), 1, 0)
	assert.Panics(t, func() { c.Snapshot(NewSimulationKey(1, 0), 1, 0) })
}

func TestCollector_UnknownNode_Panics(t *testing.T) {
	c := NewCollector(0, map[string]int{"n": 1})
	assert.Panics(t, func() { c.ObserveTransition("other", 1, 0, 0) })
}

func TestSnapshot_NodeNamesSorted(t *testing.T) {
	c := NewCollector(0, map[string]int{"b": 1, "a": 1, "c": 1})
	snap := c.Snapshot(NewSimulationKey(1, 0), 1, 0)
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, []string{"a", "b", "c"}, snap.NodeNames())
}
