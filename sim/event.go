package sim

import "github.com/sirupsen/logrus"

// EventKind distinguishes the two event types that drive the network.
type EventKind int

const (
	KindArrival EventKind = iota
	KindDeparture
)

func (k EventKind) String() string {
	switch k {
	case KindArrival:
		return "arrival"
	case KindDeparture:
		return "departure"
	default:
		return "unknown"
	}
}

// Event defines the interface for all simulation events.
// Each event has a Timestamp and an Execute method that advances
// simulation state when invoked. Events are immutable once scheduled.
type Event interface {
	Timestamp() float64
	Kind() EventKind
	Node() string
	Patient() *Patient
	Execute(*Simulator) error
}

// ArrivalEvent represents a patient arriving at a node.
// External arrivals come from the outside source into the entry node;
// their execution also schedules the next external arrival.
type ArrivalEvent struct {
	time     float64
	node     string
	patient  *Patient
	external bool
}

// NewArrivalEvent creates an arrival of p at node at time t.
func NewArrivalEvent(t float64, node string, p *Patient, external bool) *ArrivalEvent {
	return &ArrivalEvent{time: t, node: node, patient: p, external: external}
}

func (e *ArrivalEvent) Timestamp() float64 { return e.time }
func (e *ArrivalEvent) Kind() EventKind    { return KindArrival }
func (e *ArrivalEvent) Node() string       { return e.node }
func (e *ArrivalEvent) Patient() *Patient  { return e.patient }

// External reports whether the arrival comes from outside the network.
func (e *ArrivalEvent) External() bool { return e.external }

// Execute hands the patient to the target node and, for external arrivals,
// keeps the arrival process going while intake is open.
func (e *ArrivalEvent) Execute(sim *Simulator) error {
	logrus.Debugf("<< Arrival: patient %d at %s, t=%.4f", e.patient.ID, e.node, e.time)
	if e.external {
		sim.admit(e.patient)
	}
	if err := sim.arrive(e.node, e.patient, e.time); err != nil {
		return err
	}
	if e.external {
		return sim.scheduleExternalArrival(e.time)
	}
	return nil
}

// DepartureEvent represents a patient finishing service at a node.
type DepartureEvent struct {
	time    float64
	node    string
	patient *Patient
}

// NewDepartureEvent creates a departure of p from node at time t.
func NewDepartureEvent(t float64, node string, p *Patient) *DepartureEvent {
	return &DepartureEvent{time: t, node: node, patient: p}
}

func (e *DepartureEvent) Timestamp() float64 { return e.time }
func (e *DepartureEvent) Kind() EventKind    { return KindDeparture }
func (e *DepartureEvent) Node() string       { return e.node }
func (e *DepartureEvent) Patient() *Patient  { return e.patient }

// Execute releases the server, starts the next waiting patient if any,
// and routes the departing patient onward.
func (e *DepartureEvent) Execute(sim *Simulator) error {
	logrus.Debugf(">> Departure: patient %d from %s, t=%.4f", e.patient.ID, e.node, e.time)
	if err := sim.depart(e.node, e.patient, e.time); err != nil {
		return err
	}
	return sim.route(e.node, e.patient, e.time)
}
