// sim/simulator.go
package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/clinic-sim/clinic-sim/sim/trace"
)

// State is the engine's lifecycle state.
type State int

const (
	// StateIdle: constructed, nothing scheduled yet.
	StateIdle State = iota
	// StateRunning: external intake is open.
	StateRunning
	// StateDraining: intake closed, in-flight patients finish naturally.
	StateDraining
	// StateDone: the event queue is empty.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// NodeFactory builds a station. The default builds an MMcNode.
type NodeFactory func(name string, cfg NodeConfig, service *Stream, observer NodeObserver) QueueNode

func defaultNodeFactory(name string, cfg NodeConfig, service *Stream, observer NodeObserver) QueueNode {
	return NewMMcNode(name, cfg, service, observer)
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithTrace records dispatched events and routing decisions into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(s *Simulator) { s.trace = st }
}

// WithObserver attaches an extra node observer after the statistics collector.
func WithObserver(o NodeObserver) Option {
	return func(s *Simulator) { s.extraObservers = append(s.extraObservers, o) }
}

// WithNodeFactory replaces the station implementation.
func WithNodeFactory(f NodeFactory) Option {
	return func(s *Simulator) { s.nodeFactory = f }
}

// WithPatientArchive keeps every patient that left the network.
func WithPatientArchive() Option {
	return func(s *Simulator) { s.archiveExited = true }
}

// Simulator is the core object that holds simulation time, network state, and the event loop
// of one replication. It is single-threaded: events run one at a time to completion.
type Simulator struct {
	Clock float64

	params  *Params
	key     SimulationKey
	horizon float64
	state   State

	queue  *EventQueue
	nodes  map[string]QueueNode
	routes *RoutingTable
	stats  *Collector
	trace  *trace.SimulationTrace

	rng      *VariateSource
	arrivals *Stream
	routing  *Stream

	nextPatientID int64
	inSystem      int
	events        int64
	discarded     int64

	extraObservers []NodeObserver
	nodeFactory    NodeFactory
	archiveExited  bool
	archive        []*Patient
}

// NewSimulator builds an idle engine for the replication identified by key.
func NewSimulator(params *Params, key SimulationKey, opts ...Option) (*Simulator, error) {
	if params == nil {
		return nil, fmt.Errorf("NewSimulator: params must not be nil")
	}
	routes, err := ClinicRoutes(params.PLab())
	if err != nil {
		return nil, err
	}
	if err := routes.Validate(params.NodeNames()); err != nil {
		return nil, err
	}

	s := &Simulator{
		params:      params,
		key:         key,
		horizon:     params.Horizon(),
		state:       StateIdle,
		queue:       NewEventQueue(),
		nodes:       make(map[string]QueueNode, len(params.NodeNames())),
		routes:      routes,
		rng:         NewVariateSource(key),
		nodeFactory: defaultNodeFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.arrivals = s.rng.Stream(StreamArrivals)
	s.routing = s.rng.Stream(StreamRouting)

	servers := make(map[string]int, len(params.NodeNames()))
	for _, name := range params.NodeNames() {
		cfg, _ := params.Node(name)
		servers[name] = cfg.Servers
	}
	s.stats = NewCollector(params.WarmupTime(), servers)

	obs := append(observers{s.stats}, s.extraObservers...)
	for _, name := range params.NodeNames() {
		cfg, _ := params.Node(name)
		s.nodes[name] = s.nodeFactory(name, cfg, s.rng.Stream(StreamService(name)), obs)
	}
	return s, nil
}

// State returns the engine's lifecycle state.
func (sim *Simulator) State() State { return sim.state }

// Key returns the replication key.
func (sim *Simulator) Key() SimulationKey { return sim.key }

// Node returns the named station, nil if unknown.
func (sim *Simulator) Node(name string) QueueNode { return sim.nodes[name] }

// InSystem returns the number of patients currently inside the network.
func (sim *Simulator) InSystem() int { return sim.inSystem }

// EventsProcessed returns how many events have been executed.
func (sim *Simulator) EventsProcessed() int64 { return sim.events }

// Discarded returns how many external arrivals were dropped after intake closed.
func (sim *Simulator) Discarded() int64 { return sim.discarded }

// Archive returns the patients that left the network, when archiving is enabled.
func (sim *Simulator) Archive() []*Patient { return sim.archive }

// Run executes the replication to completion and returns its statistics.
// Intake closes once an event past warmup+run_time is popped; patients already
// inside finish their path and the loop ends when the event queue drains.
func (sim *Simulator) Run() (*Snapshot, error) {
	if sim.state != StateIdle {
		return nil, fmt.Errorf("replication %d: simulator already ran (state %s)", sim.key.Replication, sim.state)
	}
	sim.state = StateRunning
	logrus.Debugf("[t=%.4f] replication %d started, horizon=%.4f", sim.Clock, sim.key.Replication, sim.horizon)

	if err := sim.scheduleExternalArrival(0); err != nil {
		return nil, sim.fail(err)
	}

	for !sim.queue.IsEmpty() {
		ev := sim.queue.PopNext()
		if ev.Timestamp() < sim.Clock {
			return nil, sim.fail(&CausalityError{Clock: sim.Clock, At: ev.Timestamp(), Kind: ev.Kind()})
		}
		if sim.state == StateRunning && ev.Timestamp() > sim.horizon {
			sim.state = StateDraining
			logrus.Debugf("[t=%.4f] intake closed, %d patients in system", ev.Timestamp(), sim.inSystem)
		}
		if sim.state == StateDraining && isExternal(ev) {
			sim.discarded++
			continue
		}

		// advance the clock
		sim.Clock = ev.Timestamp()
		sim.events++
		sim.trace.RecordEvent(trace.EventRecord{
			Seq:       sim.events,
			Time:      ev.Timestamp(),
			Kind:      ev.Kind().String(),
			Node:      ev.Node(),
			PatientID: ev.Patient().ID,
		})
		if err := ev.Execute(sim); err != nil {
			return nil, sim.fail(err)
		}
	}
	sim.state = StateDone
	logrus.Debugf("[t=%.4f] replication %d ended after %d events", sim.Clock, sim.key.Replication, sim.events)

	return sim.stats.Snapshot(sim.key, sim.Clock, sim.events), nil
}

func (sim *Simulator) fail(err error) error {
	return fmt.Errorf("replication %d at t=%v: %w", sim.key.Replication, sim.Clock, err)
}

func isExternal(ev Event) bool {
	a, ok := ev.(*ArrivalEvent)
	return ok && a.External()
}

func (sim *Simulator) schedule(ev Event) error {
	return sim.queue.Schedule(ev)
}

// scheduleExternalArrival draws the next interarrival time and schedules the
// corresponding patient at the entry node. No-op once intake is closed.
func (sim *Simulator) scheduleExternalArrival(now float64) error {
	if sim.state != StateRunning {
		return nil
	}
	d, err := sim.arrivals.DrawExponential(sim.params.ArrivalRate())
	if err != nil {
		return err
	}
	sim.nextPatientID++
	t := now + d
	return sim.schedule(NewArrivalEvent(t, sim.routes.Entry(), NewPatient(sim.nextPatientID, t), true))
}

// admit registers a patient entering the network from outside.
func (sim *Simulator) admit(p *Patient) {
	sim.inSystem++
	sim.stats.ObserveAdmission(p, sim.Clock)
}

// arrive dispatches an arrival to its node and schedules the resulting departure.
func (sim *Simulator) arrive(node string, p *Patient, now float64) error {
	n, ok := sim.nodes[node]
	if !ok {
		return fmt.Errorf("arrival of patient %d at unknown node %q", p.ID, node)
	}
	dep, err := n.Arrive(p, now)
	if err != nil {
		return err
	}
	if dep != nil {
		return sim.schedule(dep)
	}
	return nil
}

// depart dispatches a departure to its node and schedules the departure of
// the patient that took the freed server, if any.
func (sim *Simulator) depart(node string, p *Patient, now float64) error {
	n, ok := sim.nodes[node]
	if !ok {
		return fmt.Errorf("departure of patient %d from unknown node %q", p.ID, node)
	}
	next, err := n.Depart(p, now)
	if err != nil {
		return err
	}
	if next != nil {
		return sim.schedule(next)
	}
	return nil
}

// route consults the routing table for a patient that just finished at from.
// The branch draw happens here, exactly once per departure from a branching node.
func (sim *Simulator) route(from string, p *Patient, now float64) error {
	rule, ok := sim.routes.Rule(from)
	if !ok {
		return fmt.Errorf("routing: no rule for node %q", from)
	}
	u := math.NaN()
	if rule.Branches() {
		u = sim.routing.DrawUniform()
	}
	to, err := sim.routes.Next(from, u)
	if err != nil {
		return err
	}
	d := RoutingDecision{From: from, To: to, Draw: u, Branch: rule.Branches() && to == rule.Alternate}
	sim.stats.ObserveRouting(p, d, now)
	rec := trace.RoutingRecord{PatientID: p.ID, Clock: now, From: from, To: to, Branch: d.Branch}
	if rule.Branches() {
		rec.Drawn, rec.Draw = true, u
	}
	sim.trace.RecordRouting(rec)

	if to == Exit {
		p.ExitTime = now
		p.State = StateExited
		sim.inSystem--
		sim.stats.ObserveExit(p, now)
		if sim.archiveExited {
			sim.archive = append(sim.archive, p)
		}
		return nil
	}
	// zero transit delay: the patient arrives at the next node immediately
	return sim.schedule(NewArrivalEvent(now, to, p, false))
}
