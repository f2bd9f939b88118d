package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents      int
	ArrivalsByNode   map[string]int            // node -> arrival events dispatched
	DeparturesByNode map[string]int            // node -> departure events dispatched
	Transitions      map[string]map[string]int // from -> to -> count
	BranchDraws      int
	BranchTaken      int
	BranchFraction   float64 // BranchTaken / BranchDraws, 0 when no draws
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ArrivalsByNode:   make(map[string]int),
		DeparturesByNode: make(map[string]int),
		Transitions:      make(map[string]map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	for _, e := range st.Events {
		switch e.Kind {
		case "arrival":
			summary.ArrivalsByNode[e.Node]++
		case "departure":
			summary.DeparturesByNode[e.Node]++
		}
	}

	for _, r := range st.Routings {
		if summary.Transitions[r.From] == nil {
			summary.Transitions[r.From] = make(map[string]int)
		}
		summary.Transitions[r.From][r.To]++
		if r.Drawn {
			summary.BranchDraws++
			if r.Branch {
				summary.BranchTaken++
			}
		}
	}
	if summary.BranchDraws > 0 {
		summary.BranchFraction = float64(summary.BranchTaken) / float64(summary.BranchDraws)
	}

	return summary
}
