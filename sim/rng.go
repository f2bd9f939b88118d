package sim

import (
	"hash/fnv"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SimulationKey uniquely identifies a reproducible replication.
// Two engines with the same SimulationKey and identical Params
// MUST produce bit-for-bit identical results.
type SimulationKey struct {
	BaseSeed    int64
	Replication int
}

// NewSimulationKey creates the key of replication index rep under baseSeed.
func NewSimulationKey(baseSeed int64, rep int) SimulationKey {
	return SimulationKey{BaseSeed: baseSeed, Replication: rep}
}

// === Stream names ===

const (
	// StreamArrivals drives the external interarrival process.
	StreamArrivals = "arrivals"
	// StreamRouting drives branch decisions in the routing table.
	StreamRouting = "routing"
)

// StreamService returns the stream name for a node's service-time process.
func StreamService(node string) string {
	return "service/" + node
}

// === VariateSource ===

// VariateSource provides deterministic, isolated random streams per logical use.
//
// Derivation formula for stream "name" under key (seed, rep):
//
//	PCG(uint64(seed) XOR fnv1a64(name), splitmix64(rep))
//
// so streams are independent of the order in which they are requested.
//
// Thread-safety: NOT thread-safe. Each replication owns its own VariateSource.
type VariateSource struct {
	key     SimulationKey
	streams map[string]*Stream
}

// NewVariateSource creates a VariateSource for the given key.
func NewVariateSource(key SimulationKey) *VariateSource {
	return &VariateSource{
		key:     key,
		streams: make(map[string]*Stream),
	}
}

// Stream returns the named stream, creating it on first use.
// The same name always returns the same *Stream. Never returns nil.
func (v *VariateSource) Stream(name string) *Stream {
	if s, ok := v.streams[name]; ok {
		return s
	}
	s := &Stream{
		name: name,
		src:  rand.NewPCG(uint64(v.key.BaseSeed)^fnv1a64(name), splitmix64(uint64(v.key.Replication))),
	}
	v.streams[name] = s
	return s
}

// Key returns the SimulationKey this source was derived from.
func (v *VariateSource) Key() SimulationKey {
	return v.key
}

// Stream is one independent random sequence.
type Stream struct {
	name  string
	src   rand.Source
	draws int64
}

// Name returns the stream's name.
func (s *Stream) Name() string { return s.name }

// Draws returns how many variates have been taken from the stream.
func (s *Stream) Draws() int64 { return s.draws }

// DrawExponential samples Exp(rate). rate must be > 0.
func (s *Stream) DrawExponential(rate float64) (float64, error) {
	if !(rate > 0) {
		return 0, &DomainError{Stream: s.name, Rate: rate}
	}
	s.draws++
	return distuv.Exponential{Rate: rate, Src: s.src}.Rand(), nil
}

// DrawUniform samples U[0, 1).
func (s *Stream) DrawUniform() float64 {
	s.draws++
	return distuv.Uniform{Min: 0, Max: 1, Src: s.src}.Rand()
}

func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// splitmix64 scrambles the replication index so neighbouring indices
// seed unrelated PCG sequences.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
