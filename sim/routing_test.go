package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClinicRoutes_DecisionTable(t *testing.T) {
	rt, err := ClinicRoutes(0.2)
	require.NoError(t, err)
	assert.Equal(t, NodeRegistration, rt.Entry())

	tests := []struct {
		from string
		u    float64
		want string
	}{
		{NodeRegistration, math.NaN(), NodeDoctor},
		{NodeDoctor, 0.0, NodeLab},
		{NodeDoctor, 0.1999, NodeLab},
		{NodeDoctor, 0.2, NodePharmacy},
		{NodeDoctor, 0.95, NodePharmacy},
		{NodeLab, math.NaN(), NodePharmacy},
		{NodePharmacy, math.NaN(), Exit},
	}
	for _, tt := range tests {
		got, err := rt.Next(tt.from, tt.u)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("Next(%s, %v) = %s, want %s", tt.from, tt.u, got, tt.want)
		}
	}
}

func TestClinicRoutes_OnlyDoctorBranches(t *testing.T) {
	rt, err := ClinicRoutes(0.5)
	require.NoError(t, err)
	for _, n := range RequiredNodes {
		r, ok := rt.Rule(n)
		require.True(t, ok, n)
		assert.Equal(t, n == NodeDoctor, r.Branches(), n)
	}
}

func TestClinicRoutes_BoundaryProbabilities(t *testing.T) {
	never, err := ClinicRoutes(0)
	require.NoError(t, err)
	always, err := ClinicRoutes(1)
	require.NoError(t, err)

	for _, u := range []float64{0, 0.5, 0.999999} {
		got, _ := never.Next(NodeDoctor, u)
		assert.Equal(t, NodePharmacy, got, "p_lab=0, u=%v", u)
		got, _ = always.Next(NodeDoctor, u)
		assert.Equal(t, NodeLab, got, "p_lab=1, u=%v", u)
	}
}

func TestNewRoutingTable_RejectsMalformedRules(t *testing.T) {
	_, err := NewRoutingTable("a", RouteRule{From: "a", Default: "b"}, RouteRule{From: "a", Default: "c"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewRoutingTable("a", RouteRule{From: "a"})
	assert.ErrorContains(t, err, "no default")

	_, err = NewRoutingTable("a", RouteRule{From: "a", Default: "b", Alternate: "c", P: 1.1})
	assert.ErrorContains(t, err, "probability")
}

func TestRoutingTable_Next_UnknownNode(t *testing.T) {
	rt, _ := ClinicRoutes(0.2)
	_, err := rt.Next("radiology", 0.5)
	assert.Error(t, err)
}

func TestRoutingTable_Validate(t *testing.T) {
	// GIVEN the clinic table validated against the full node set
	rt, _ := ClinicRoutes(0.2)
	assert.NoError(t, rt.Validate(RequiredNodes))

	// WHEN the lab node is missing from the configured nodes
	err := rt.Validate([]string{NodeRegistration, NodeDoctor, NodePharmacy})

	// THEN the rule for lab and the branch to lab are both reported
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)

	// AND a node without a rule is reported
	partial, _ := NewRoutingTable("a", RouteRule{From: "a", Default: Exit})
	assert.ErrorContains(t, partial.Validate([]string{"a", "b"}), `"b" has no outgoing rule`)
}
