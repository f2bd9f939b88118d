// Package sim provides the discrete-event simulation engine for a clinic
// patient-flow network.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - patient.go: Patient lifecycle (waiting → in-service → exited) and per-node visits
//   - event.go: Event types that drive the simulation (Arrival, Departure)
//   - simulator.go: The event loop, intake horizon, drain phase, and routing
//
// # Architecture
//
// One replication is one Simulator. It owns an EventQueue, one QueueNode per
// station, a RoutingTable, a VariateSource and a Collector. Nothing is shared
// between replications:
//   - sim/replication/: runs independent replications and aggregates them into confidence intervals
//   - sim/trace/: event and routing-decision recording
//
// Patients flow registration → doctor → (lab with probability p_lab) → pharmacy → exit.
// Random draws come from named streams derived from (base seed, replication, stream name),
// so adding a draw to one stream never shifts the sequence of another.
//
// # Key Interfaces
//
//   - Event: a timestamped state change executed by the engine
//   - QueueNode: a service station returning the events it wants scheduled
//   - NodeObserver: receives every node state change; the Collector is the main implementation
package sim
