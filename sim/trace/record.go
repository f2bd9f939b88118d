// Package trace provides event and routing-decision recording for replication analysis.
// This package has no dependencies on sim/ or sim/replication/; it stores pure data types.
package trace

// EventRecord captures one dispatched event.
type EventRecord struct {
	Seq       int64
	Time      float64
	Kind      string // "arrival" or "departure"
	Node      string
	PatientID int64
}

// RoutingRecord captures one routing-table decision.
type RoutingRecord struct {
	PatientID int64
	Clock     float64
	From      string
	To        string
	Drawn     bool    // false for deterministic rules
	Draw      float64 // uniform draw; 0 when Drawn is false
	Branch    bool    // true if the alternate target was taken
}
