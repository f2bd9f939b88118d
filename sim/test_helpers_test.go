package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testConfig returns the default clinic parameters with a short run so that
// engine tests stay fast. Callers tweak the copy they get.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DefaultRunTime = 200
	cfg.DefaultWarmupTime = 20
	cfg.DefaultReplications = 1
	return cfg
}

// mustParams validates cfg or fails the test.
func mustParams(t *testing.T, cfg Config) *Params {
	t.Helper()
	p, err := NewParams(cfg)
	require.NoError(t, err)
	return p
}

// runReplication builds and runs one replication and returns its snapshot
// together with the finished simulator.
func runReplication(t *testing.T, cfg Config, seed int64, rep int, opts ...Option) (*Snapshot, *Simulator) {
	t.Helper()
	s, err := NewSimulator(mustParams(t, cfg), NewSimulationKey(seed, rep), opts...)
	require.NoError(t, err)
	snap, err := s.Run()
	require.NoError(t, err)
	return snap, s
}

// transition is one ObserveTransition callback.
type transition struct {
	Node     string
	Now      float64
	QueueLen int
	Busy     int
}

// recordingObserver keeps every node notification for later assertions.
type recordingObserver struct {
	arrivals      []float64
	serviceStarts map[string][]float64
	waits         map[string][]float64
	departures    int
	transitions   []transition
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		serviceStarts: make(map[string][]float64),
		waits:         make(map[string][]float64),
	}
}

func (r *recordingObserver) ObserveArrival(_ string, _ *Patient, now float64) {
	r.arrivals = append(r.arrivals, now)
}

func (r *recordingObserver) ObserveServiceStart(node string, p *Patient, now float64) {
	r.serviceStarts[node] = append(r.serviceStarts[node], now)
	r.waits[node] = append(r.waits[node], p.current(node).Wait())
}

func (r *recordingObserver) ObserveDeparture(_ string, _ *Patient, _ float64) {
	r.departures++
}

func (r *recordingObserver) ObserveTransition(node string, now float64, queueLen, busy int) {
	r.transitions = append(r.transitions, transition{Node: node, Now: now, QueueLen: queueLen, Busy: busy})
}
