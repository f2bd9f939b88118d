package sim

import (
	"fmt"
	"slices"
)

// Exit is the pseudo-node a patient is routed to when it leaves the network.
const Exit = "exit"

// RouteRule is one row of the routing table.
// A patient leaving From goes to Alternate when the branch draw is < P,
// otherwise to Default. Rules without an Alternate never consume a draw.
type RouteRule struct {
	From      string
	Default   string
	Alternate string
	P         float64
}

// Branches reports whether the rule needs a random draw.
func (r RouteRule) Branches() bool { return r.Alternate != "" }

// RoutingDecision records where a patient was sent and why.
type RoutingDecision struct {
	From   string
	To     string
	Draw   float64 // NaN for deterministic rules
	Branch bool    // true if the alternate target was taken
}

// RoutingTable maps "finished at node X" to the next node.
// It is a pure decision table: it holds no random state.
type RoutingTable struct {
	entry string
	rules map[string]RouteRule
}

// NewRoutingTable builds a table whose external arrivals enter at entry.
func NewRoutingTable(entry string, rules ...RouteRule) (*RoutingTable, error) {
	rt := &RoutingTable{entry: entry, rules: make(map[string]RouteRule, len(rules))}
	for _, r := range rules {
		if _, dup := rt.rules[r.From]; dup {
			return nil, fmt.Errorf("routing: duplicate rule for %q", r.From)
		}
		if r.Default == "" {
			return nil, fmt.Errorf("routing: rule for %q has no default target", r.From)
		}
		if r.Branches() && !(r.P >= 0 && r.P <= 1) {
			return nil, fmt.Errorf("routing: branch probability for %q must be in [0, 1], got %v", r.From, r.P)
		}
		rt.rules[r.From] = r
	}
	return rt, nil
}

// ClinicRoutes is the clinic flow:
// registration -> doctor -> (lab with probability pLab) -> pharmacy -> exit.
func ClinicRoutes(pLab float64) (*RoutingTable, error) {
	return NewRoutingTable(NodeRegistration,
		RouteRule{From: NodeRegistration, Default: NodeDoctor},
		RouteRule{From: NodeDoctor, Default: NodePharmacy, Alternate: NodeLab, P: pLab},
		RouteRule{From: NodeLab, Default: NodePharmacy},
		RouteRule{From: NodePharmacy, Default: Exit},
	)
}

// Entry returns the node external arrivals are sent to.
func (rt *RoutingTable) Entry() string { return rt.entry }

// Rule returns the row for node.
func (rt *RoutingTable) Rule(node string) (RouteRule, bool) {
	r, ok := rt.rules[node]
	return r, ok
}

// Next returns the destination for a patient finishing at from, given a
// uniform draw u in [0, 1). u is ignored for non-branching rules.
func (rt *RoutingTable) Next(from string, u float64) (string, error) {
	r, ok := rt.rules[from]
	if !ok {
		return "", fmt.Errorf("routing: no rule for node %q", from)
	}
	if r.Branches() && u < r.P {
		return r.Alternate, nil
	}
	return r.Default, nil
}

// Validate checks that the entry and every node have a rule and every target exists.
func (rt *RoutingTable) Validate(nodes []string) error {
	verr := &ValidationError{}
	if !slices.Contains(nodes, rt.entry) {
		verr.addf("routing: entry node %q is not configured", rt.entry)
	}
	for _, n := range nodes {
		if _, ok := rt.rules[n]; !ok {
			verr.addf("routing: node %q has no outgoing rule", n)
		}
	}
	known := func(target string) bool { return target == Exit || slices.Contains(nodes, target) }
	for _, from := range sortedKeys(rt.rules) {
		r := rt.rules[from]
		if !slices.Contains(nodes, from) {
			verr.addf("routing: rule for unknown node %q", from)
		}
		if !known(r.Default) {
			verr.addf("routing: %q routes to unknown node %q", from, r.Default)
		}
		if r.Branches() && !known(r.Alternate) {
			verr.addf("routing: %q branches to unknown node %q", from, r.Alternate)
		}
	}
	return verr.errOrNil()
}
