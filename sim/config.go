package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Node names of the modeled clinic network.
const (
	NodeRegistration = "registration"
	NodeDoctor       = "doctor"
	NodeLab          = "lab"
	NodePharmacy     = "pharmacy"
)

// RequiredNodes lists the stations every configuration must define, in flow order.
var RequiredNodes = []string{NodeRegistration, NodeDoctor, NodeLab, NodePharmacy}

// NodeConfig holds the M/M/c parameters of one station.
type NodeConfig struct {
	ServiceRate float64 `yaml:"service_rate" json:"service_rate"` // mu, services per time unit per server
	Servers     int     `yaml:"servers" json:"servers"`           // c
}

// RoutingConfig holds the branching probabilities of the network.
type RoutingConfig struct {
	PLab float64 `yaml:"p_lab" json:"p_lab"` // probability a patient visits lab after doctor
}

// Config mirrors the YAML configuration file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	ArrivalRate         float64               `yaml:"arrival_rate" json:"arrival_rate"`
	Routing             RoutingConfig         `yaml:"routing" json:"routing"`
	Nodes               map[string]NodeConfig `yaml:"nodes" json:"nodes"`
	DefaultRunTime      float64               `yaml:"default_run_time" json:"default_run_time"`
	DefaultWarmupTime   float64               `yaml:"default_warmup_time" json:"default_warmup_time"`
	DefaultReplications int                   `yaml:"default_replications" json:"default_replications"`
}

// DefaultConfig returns the reference clinic parameter set.
func DefaultConfig() Config {
	return Config{
		ArrivalRate: 5.0,
		Routing:     RoutingConfig{PLab: 0.2},
		Nodes: map[string]NodeConfig{
			NodeRegistration: {ServiceRate: 8.0, Servers: 3},
			NodeDoctor:       {ServiceRate: 5.0, Servers: 5},
			NodeLab:          {ServiceRate: 10.0, Servers: 4},
			NodePharmacy:     {ServiceRate: 6.0, Servers: 2},
		},
		DefaultRunTime:      20000.0,
		DefaultWarmupTime:   2000.0,
		DefaultReplications: 10,
	}
}

// ParseConfig decodes YAML with strict field checking: typos must cause errors.
// The result is not validated; use NewParams for that.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parsing config: empty document")
		}
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(bytes.NewReader(data))
}

// Encode writes c as YAML in the same layout ParseConfig accepts.
func (c Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	verr := &ValidationError{}
	if !(c.ArrivalRate > 0) || math.IsInf(c.ArrivalRate, 0) {
		verr.addf("arrival_rate must be > 0, got %v", c.ArrivalRate)
	}
	if !(c.Routing.PLab >= 0 && c.Routing.PLab <= 1) {
		verr.addf("routing.p_lab must be in [0, 1], got %v", c.Routing.PLab)
	}
	for _, name := range RequiredNodes {
		if _, ok := c.Nodes[name]; !ok {
			verr.addf("nodes.%s is required", name)
		}
	}
	for _, name := range sortedKeys(c.Nodes) {
		n := c.Nodes[name]
		if !slices.Contains(RequiredNodes, name) {
			verr.addf("nodes.%s is not part of the clinic network", name)
			continue
		}
		if !(n.ServiceRate > 0) || math.IsInf(n.ServiceRate, 0) {
			verr.addf("nodes.%s.service_rate must be > 0, got %v", name, n.ServiceRate)
		}
		if n.Servers < 1 {
			verr.addf("nodes.%s.servers must be >= 1, got %d", name, n.Servers)
		}
	}
	if !(c.DefaultRunTime > 0) || math.IsInf(c.DefaultRunTime, 0) {
		verr.addf("default_run_time must be > 0, got %v", c.DefaultRunTime)
	}
	if !(c.DefaultWarmupTime >= 0) {
		verr.addf("default_warmup_time must be >= 0, got %v", c.DefaultWarmupTime)
	} else if c.DefaultWarmupTime > c.DefaultRunTime {
		verr.addf("default_warmup_time (%v) must not exceed default_run_time (%v)", c.DefaultWarmupTime, c.DefaultRunTime)
	}
	if c.DefaultReplications < 1 {
		verr.addf("default_replications must be >= 1, got %d", c.DefaultReplications)
	}
	return verr.errOrNil()
}

// Params is the validated, immutable parameter set shared by the replication
// runner and every engine it creates. It is safe for concurrent readers.
type Params struct {
	arrivalRate  float64
	pLab         float64
	nodes        map[string]NodeConfig
	runTime      float64
	warmupTime   float64
	replications int
}

// NewParams validates cfg and freezes it into a Params.
func NewParams(cfg Config) (*Params, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nodes := make(map[string]NodeConfig, len(cfg.Nodes))
	for name, n := range cfg.Nodes {
		nodes[name] = n
	}
	return &Params{
		arrivalRate:  cfg.ArrivalRate,
		pLab:         cfg.Routing.PLab,
		nodes:        nodes,
		runTime:      cfg.DefaultRunTime,
		warmupTime:   cfg.DefaultWarmupTime,
		replications: cfg.DefaultReplications,
	}, nil
}

// WithRunControl returns a copy of p with the run-control values replaced.
// The copy is validated like a fresh configuration.
func (p *Params) WithRunControl(runTime, warmupTime float64, replications int) (*Params, error) {
	cfg := p.Config()
	cfg.DefaultRunTime = runTime
	cfg.DefaultWarmupTime = warmupTime
	cfg.DefaultReplications = replications
	return NewParams(cfg)
}

// Config returns a mutable copy of the parameters as a Config.
func (p *Params) Config() Config {
	nodes := make(map[string]NodeConfig, len(p.nodes))
	for name, n := range p.nodes {
		nodes[name] = n
	}
	return Config{
		ArrivalRate:         p.arrivalRate,
		Routing:             RoutingConfig{PLab: p.pLab},
		Nodes:               nodes,
		DefaultRunTime:      p.runTime,
		DefaultWarmupTime:   p.warmupTime,
		DefaultReplications: p.replications,
	}
}

func (p *Params) ArrivalRate() float64 { return p.arrivalRate }
func (p *Params) PLab() float64        { return p.pLab }
func (p *Params) RunTime() float64     { return p.runTime }
func (p *Params) WarmupTime() float64  { return p.warmupTime }
func (p *Params) Replications() int    { return p.replications }

// Horizon is the intake cutoff: warmup plus the measured run length.
func (p *Params) Horizon() float64 { return p.warmupTime + p.runTime }

// Node returns the parameters of the named station.
func (p *Params) Node(name string) (NodeConfig, bool) {
	n, ok := p.nodes[name]
	return n, ok
}

// NodeNames returns the configured station names in flow order.
func (p *Params) NodeNames() []string {
	names := make([]string, 0, len(p.nodes))
	for _, name := range RequiredNodes {
		if _, ok := p.nodes[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
