package trace

// TraceLevel controls the verbosity of tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelRouting captures routing decisions only.
	TraceLevelRouting TraceLevel = "routing"
	// TraceLevelEvents captures every dispatched event and every routing decision.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelRouting: true,
	TraceLevelEvents:  true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during one replication.
// A nil *SimulationTrace is valid and records nothing.
type SimulationTrace struct {
	Config   TraceConfig
	Events   []EventRecord
	Routings []RoutingRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Events:   make([]EventRecord, 0),
		Routings: make([]RoutingRecord, 0),
	}
}

// RecordEvent appends an event record when the level includes events.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if st == nil || st.Config.Level != TraceLevelEvents {
		return
	}
	st.Events = append(st.Events, record)
}

// RecordRouting appends a routing record when the level includes routing.
func (st *SimulationTrace) RecordRouting(record RoutingRecord) {
	if st == nil {
		return
	}
	if st.Config.Level != TraceLevelEvents && st.Config.Level != TraceLevelRouting {
		return
	}
	st.Routings = append(st.Routings, record)
}
