// Defines the Patient struct that models an individual patient flowing through the clinic.
// Tracks arrival time and the per-node visit log (enter, service start, exit).

package sim

import (
	"fmt"
	"math"
)

// PatientState represents the lifecycle state of a patient at its current node.
type PatientState string

const (
	StateWaiting   PatientState = "waiting"
	StateInService PatientState = "in-service"
	StateExited    PatientState = "exited"
)

// Visit records one stay at a node. ServiceStart and Exit are NaN until set.
type Visit struct {
	Node         string
	Enter        float64
	ServiceStart float64
	Exit         float64
}

// Wait returns the time spent in the waiting line (service start - enter).
func (v Visit) Wait() float64 { return v.ServiceStart - v.Enter }

// Sojourn returns the total time spent at the node (exit - enter).
func (v Visit) Sojourn() float64 { return v.Exit - v.Enter }

// Patient is owned exclusively by the engine from its external arrival until it
// leaves the network.
type Patient struct {
	ID          int64
	ArrivalTime float64 // Time the patient entered the network
	ExitTime    float64 // Time the patient left the network (NaN while inside)
	State       PatientState
	Visits      []Visit // Ordered visit log, one entry per node
}

// NewPatient creates a patient entering the network at time t.
func NewPatient(id int64, t float64) *Patient {
	return &Patient{
		ID:          id,
		ArrivalTime: t,
		ExitTime:    math.NaN(),
		State:       StateWaiting,
		Visits:      make([]Visit, 0, len(RequiredNodes)),
	}
}

// enter opens a new visit at node.
func (p *Patient) enter(node string, t float64) {
	p.State = StateWaiting
	p.Visits = append(p.Visits, Visit{Node: node, Enter: t, ServiceStart: math.NaN(), Exit: math.NaN()})
}

// current returns the open visit. Panics if the patient is at no node.
func (p *Patient) current(node string) *Visit {
	if len(p.Visits) == 0 {
		panic(fmt.Sprintf("patient %d has no visit at %s", p.ID, node))
	}
	v := &p.Visits[len(p.Visits)-1]
	if v.Node != node {
		panic(fmt.Sprintf("patient %d is at %s, not %s", p.ID, v.Node, node))
	}
	return v
}

// VisitCount returns how many times the patient visited node.
func (p *Patient) VisitCount(node string) int {
	n := 0
	for _, v := range p.Visits {
		if v.Node == node {
			n++
		}
	}
	return n
}

// TimeInSystem returns exit - arrival, NaN while the patient is still inside.
func (p *Patient) TimeInSystem() float64 { return p.ExitTime - p.ArrivalTime }

// This method returns a human-readable string representation of a Patient.
func (p Patient) String() string {
	return fmt.Sprintf("Patient: (ID: %d, State: %s, Visits: %d, ArrivalTime: %.4f)", p.ID, p.State, len(p.Visits), p.ArrivalTime)
}
