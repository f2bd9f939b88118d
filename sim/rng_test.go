package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
		rep  int
	}{
		{"positive seed", 42, 0},
		{"zero seed", 0, 3},
		{"negative seed", -1, 1},
		{"max int64", math.MaxInt64, 7},
		{"min int64", math.MinInt64, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed, tt.rep)
			if key.BaseSeed != tt.seed || key.Replication != tt.rep {
				t.Errorf("NewSimulationKey(%d, %d) = %+v", tt.seed, tt.rep, key)
			}
		})
	}
}

// === VariateSource Tests ===

func TestVariateSource_DeterministicDerivation(t *testing.T) {
	// GIVEN two sources with the same key
	a := NewVariateSource(NewSimulationKey(42, 3))
	b := NewVariateSource(NewSimulationKey(42, 3))

	// WHEN drawing the same sequence from the same stream name
	for i := 0; i < 100; i++ {
		x, err := a.Stream(StreamArrivals).DrawExponential(5)
		require.NoError(t, err)
		y, err := b.Stream(StreamArrivals).DrawExponential(5)
		require.NoError(t, err)

		// THEN every value is bit-identical
		if x != y {
			t.Fatalf("draw %d: got %v and %v, want identical", i, x, y)
		}
	}
}

func TestVariateSource_StreamIsolation(t *testing.T) {
	// GIVEN two sources with the same key
	a := NewVariateSource(NewSimulationKey(42, 0))
	b := NewVariateSource(NewSimulationKey(42, 0))

	// WHEN a consumes 50 draws from the arrivals stream first
	for i := 0; i < 50; i++ {
		_, _ = a.Stream(StreamArrivals).DrawExponential(1)
	}

	// THEN its routing stream still starts where b's does
	for i := 0; i < 10; i++ {
		assert.Equal(t, b.Stream(StreamRouting).DrawUniform(), a.Stream(StreamRouting).DrawUniform(), "draw %d", i)
	}
}

func TestVariateSource_CreationOrderIndependent(t *testing.T) {
	// GIVEN streams created in opposite orders
	a := NewVariateSource(NewSimulationKey(7, 1))
	a.Stream(StreamService(NodeDoctor))
	a.Stream(StreamRouting)

	b := NewVariateSource(NewSimulationKey(7, 1))
	b.Stream(StreamRouting)
	b.Stream(StreamService(NodeDoctor))

	// THEN both orders yield the same sequences
	for i := 0; i < 10; i++ {
		x, _ := a.Stream(StreamService(NodeDoctor)).DrawExponential(2)
		y, _ := b.Stream(StreamService(NodeDoctor)).DrawExponential(2)
		assert.Equal(t, y, x)
	}
}

func TestVariateSource_DifferentReplications_DifferentSequences(t *testing.T) {
	// GIVEN the same base seed and two neighbouring replication indices
	a := NewVariateSource(NewSimulationKey(42, 0)).Stream(StreamArrivals)
	b := NewVariateSource(NewSimulationKey(42, 1)).Stream(StreamArrivals)

	// THEN the sequences differ
	same := 0
	for i := 0; i < 20; i++ {
		if a.DrawUniform() == b.DrawUniform() {
			same++
		}
	}
	assert.Less(t, same, 20, "replications 0 and 1 produced identical arrival streams")
}

func TestVariateSource_StreamCached(t *testing.T) {
	v := NewVariateSource(NewSimulationKey(1, 0))
	assert.Same(t, v.Stream("x"), v.Stream("x"))
	assert.NotSame(t, v.Stream("x"), v.Stream("y"))
	assert.Equal(t, "service/lab", StreamService(NodeLab))
}

// === Stream Tests ===

func TestStream_DrawExponential_NonPositiveRate_DomainError(t *testing.T) {
	s := NewVariateSource(NewSimulationKey(1, 0)).Stream(StreamArrivals)
	for _, rate := range []float64{0, -1, math.NaN()} {
		// WHEN a non-positive rate is requested
		_, err := s.DrawExponential(rate)

		// THEN a DomainError naming the stream is returned and nothing is consumed
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain))
		var derr *DomainError
		require.True(t, errors.As(err, &derr))
		assert.Equal(t, StreamArrivals, derr.Stream)
	}
	assert.Equal(t, int64(0), s.Draws())
}

func TestStream_DrawExponential_MeanMatchesRate(t *testing.T) {
	// GIVEN 20000 draws of Exp(4)
	s := NewVariateSource(NewSimulationKey(99, 0)).Stream("test")
	const n = 20000
	sum := 0.0
	for i := 0; i < n; i++ {
		x, err := s.DrawExponential(4)
		require.NoError(t, err)
		require.GreaterOrEqual(t, x, 0.0)
		sum += x
	}

	// THEN the sample mean is within 5 standard errors of 1/4
	mean := sum / n
	se := 0.25 / math.Sqrt(n)
	assert.InDelta(t, 0.25, mean, 5*se)
	assert.Equal(t, int64(n), s.Draws())
}

func TestStream_DrawUniform_InUnitInterval(t *testing.T) {
	s := NewVariateSource(NewSimulationKey(5, 2)).Stream(StreamRouting)
	for i := 0; i < 1000; i++ {
		u := s.DrawUniform()
		if u < 0 || u >= 1 {
			t.Fatalf("draw %d: %v outside [0, 1)", i, u)
		}
	}
}
