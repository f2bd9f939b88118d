package sim

import "fmt"

// NodeObserver receives every state change of a node. The statistics
// collector is the primary implementation; tests attach their own.
type NodeObserver interface {
	// ObserveArrival is called when p joins node, before service or queueing.
	ObserveArrival(node string, p *Patient, now float64)
	// ObserveServiceStart is called when a server picks p up.
	ObserveServiceStart(node string, p *Patient, now float64)
	// ObserveDeparture is called when p finishes service at node.
	ObserveDeparture(node string, p *Patient, now float64)
	// ObserveTransition reports the node's state right after a change.
	ObserveTransition(node string, now float64, queueLen, busy int)
}

// observers fans one notification out to several observers, in order.
type observers []NodeObserver

func (o observers) ObserveArrival(node string, p *Patient, now float64) {
	for _, ob := range o {
		ob.ObserveArrival(node, p, now)
	}
}

func (o observers) ObserveServiceStart(node string, p *Patient, now float64) {
	for _, ob := range o {
		ob.ObserveServiceStart(node, p, now)
	}
}

func (o observers) ObserveDeparture(node string, p *Patient, now float64) {
	for _, ob := range o {
		ob.ObserveDeparture(node, p, now)
	}
}

func (o observers) ObserveTransition(node string, now float64, queueLen, busy int) {
	for _, ob := range o {
		ob.ObserveTransition(node, now, queueLen, busy)
	}
}

// QueueNode is the capability the engine needs from a service station.
// Nodes never touch the event queue: they return the events to schedule.
type QueueNode interface {
	Name() string
	Servers() int
	Busy() int
	QueueLen() int
	// Arrive admits p at now. It returns p's departure if service starts
	// immediately, nil if p has to wait.
	Arrive(p *Patient, now float64) (Event, error)
	// Depart ends p's service at now. It returns the departure of the next
	// waiting patient if one was taken into service, nil otherwise.
	Depart(p *Patient, now float64) (Event, error)
}

// MMcNode is a FIFO station with c identical exponential servers.
type MMcNode struct {
	name     string
	servers  int
	rate     float64
	busy     int
	waiting  WaitQueue
	service  *Stream
	observer NodeObserver
}

// NewMMcNode creates an idle node. service supplies its service-time draws.
func NewMMcNode(name string, cfg NodeConfig, service *Stream, observer NodeObserver) *MMcNode {
	if cfg.Servers < 1 {
		panic(fmt.Sprintf("NewMMcNode(%s): servers must be >= 1, got %d", name, cfg.Servers))
	}
	if service == nil || observer == nil {
		panic(fmt.Sprintf("NewMMcNode(%s): service stream and observer must not be nil", name))
	}
	return &MMcNode{
		name:     name,
		servers:  cfg.Servers,
		rate:     cfg.ServiceRate,
		service:  service,
		observer: observer,
	}
}

func (n *MMcNode) Name() string  { return n.name }
func (n *MMcNode) Servers() int  { return n.servers }
func (n *MMcNode) Busy() int     { return n.busy }
func (n *MMcNode) QueueLen() int { return n.waiting.Len() }

// Arrive implements QueueNode.
func (n *MMcNode) Arrive(p *Patient, now float64) (Event, error) {
	p.enter(n.name, now)
	n.observer.ObserveArrival(n.name, p, now)

	var dep Event
	if n.busy < n.servers {
		ev, err := n.startService(p, now)
		if err != nil {
			return nil, err
		}
		dep = ev
	} else {
		n.waiting.Enqueue(p)
	}
	n.transition(now)
	return dep, nil
}

// Depart implements QueueNode.
func (n *MMcNode) Depart(p *Patient, now float64) (Event, error) {
	if n.busy == 0 {
		panic(fmt.Sprintf("node %s: departure of patient %d with no busy server", n.name, p.ID))
	}
	v := p.current(n.name)
	v.Exit = now
	n.busy--
	n.observer.ObserveDeparture(n.name, p, now)

	var next Event
	if head := n.waiting.Dequeue(); head != nil {
		ev, err := n.startService(head, now)
		if err != nil {
			return nil, err
		}
		next = ev
	}
	n.transition(now)
	return next, nil
}

// startService seizes a server for p and returns its departure.
func (n *MMcNode) startService(p *Patient, now float64) (Event, error) {
	d, err := n.service.DrawExponential(n.rate)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.name, err)
	}
	n.busy++
	v := p.current(n.name)
	v.ServiceStart = now
	p.State = StateInService
	n.observer.ObserveServiceStart(n.name, p, now)
	return NewDepartureEvent(now+d, n.name, p), nil
}

// transition checks the node invariants and reports the new state.
func (n *MMcNode) transition(now float64) {
	if n.busy < 0 || n.busy > n.servers {
		panic(fmt.Sprintf("node %s: busy servers %d outside [0, %d]", n.name, n.busy, n.servers))
	}
	if n.waiting.Len() > 0 && n.busy < n.servers {
		panic(fmt.Sprintf("node %s: %d patients waiting with %d of %d servers busy", n.name, n.waiting.Len(), n.busy, n.servers))
	}
	n.observer.ObserveTransition(n.name, now, n.waiting.Len(), n.busy)
}
