// Package config defines the immutable configuration of a simulation run.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid simulation config")

// ReplacementPolicy selects how a full set chooses its victim.
type ReplacementPolicy int

// Supported replacement policies.
const (
	LRU ReplacementPolicy = iota
	FIFO
	Random
)

var policyNames = map[ReplacementPolicy]string{
	LRU:    "lru",
	FIFO:   "fifo",
	Random: "random",
}

func (p ReplacementPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}

	return fmt.Sprintf("ReplacementPolicy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p ReplacementPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ReplacementPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseReplacementPolicy(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// ParseReplacementPolicy converts a policy name into a ReplacementPolicy.
func ParseReplacementPolicy(name string) (ReplacementPolicy, error) {
	for p, n := range policyNames {
		if strings.EqualFold(name, n) {
			return p, nil
		}
	}

	return LRU, fmt.Errorf("%w: unknown replacement policy %q",
		ErrInvalidConfig, name)
}

// ThreadMapping decides which simulated core runs a trace thread.
type ThreadMapping int

// Supported thread mappings.
const (
	// RoundRobin assigns cores in order of first appearance of each thread.
	RoundRobin ThreadMapping = iota
	// Modulo assigns thread t to core t mod numCores.
	Modulo
)

func (m ThreadMapping) String() string {
	switch m {
	case RoundRobin:
		return "round-robin"
	case Modulo:
		return "modulo"
	default:
		return fmt.Sprintf("ThreadMapping(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ThreadMapping) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ThreadMapping) UnmarshalText(text []byte) error {
	parsed, err := ParseThreadMapping(string(text))
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// ParseThreadMapping converts a mapping name into a ThreadMapping.
func ParseThreadMapping(name string) (ThreadMapping, error) {
	switch strings.ToLower(name) {
	case "round-robin", "roundrobin", "rr":
		return RoundRobin, nil
	case "modulo", "mod":
		return Modulo, nil
	default:
		return RoundRobin, fmt.Errorf("%w: unknown thread mapping %q",
			ErrInvalidConfig, name)
	}
}

// SimulationConfig describes the simulated cache geometry and analysis
// parameters. It is immutable once built.
type SimulationConfig struct {
	LineSize          uint64            `json:"lineSize" yaml:"lineSize"`
	SetsPerCore       int               `json:"setsPerCore" yaml:"setsPerCore"`
	WaysPerSet        int               `json:"waysPerSet" yaml:"waysPerSet"`
	NumCores          int               `json:"numCores" yaml:"numCores"`
	ReplacementPolicy ReplacementPolicy `json:"replacementPolicy" yaml:"replacementPolicy"`

	// FalseSharingWindow is compared against trace timestamps, which are in
	// nanoseconds.
	FalseSharingWindow time.Duration `json:"falseSharingWindow" yaml:"falseSharingWindow"`

	// FalseSharingGranularity is the block size, in bytes, at which two
	// writes to the same line are compared for overlap.
	FalseSharingGranularity uint64 `json:"falseSharingGranularity" yaml:"falseSharingGranularity"`

	ThreadMapping ThreadMapping `json:"threadMapping" yaml:"threadMapping"`

	// Seed feeds the Random replacement policy so runs are reproducible.
	Seed int64 `json:"seed" yaml:"seed"`
}

// CacheSize returns the capacity of one core's cache in bytes.
func (c SimulationConfig) CacheSize() uint64 {
	return c.LineSize * uint64(c.SetsPerCore) * uint64(c.WaysPerSet)
}

// WindowTicks returns the false-sharing window in trace timestamp units.
func (c SimulationConfig) WindowTicks() uint64 {
	if c.FalseSharingWindow < 0 {
		return 0
	}

	return uint64(c.FalseSharingWindow.Nanoseconds())
}

// Validate checks every field and reports the first violation.
func (c SimulationConfig) Validate() error {
	switch {
	case !isPowerOfTwo(c.LineSize):
		return fmt.Errorf("%w: line size %d is not a power of two",
			ErrInvalidConfig, c.LineSize)
	case c.SetsPerCore < 1 || !isPowerOfTwo(uint64(c.SetsPerCore)):
		return fmt.Errorf("%w: sets per core %d is not a power of two",
			ErrInvalidConfig, c.SetsPerCore)
	case c.WaysPerSet < 1:
		return fmt.Errorf("%w: ways per set must be at least 1, got %d",
			ErrInvalidConfig, c.WaysPerSet)
	case c.NumCores < 1:
		return fmt.Errorf("%w: number of cores must be at least 1, got %d",
			ErrInvalidConfig, c.NumCores)
	case c.FalseSharingWindow < 0:
		return fmt.Errorf("%w: negative false sharing window %s",
			ErrInvalidConfig, c.FalseSharingWindow)
	case !isPowerOfTwo(c.FalseSharingGranularity) ||
		c.FalseSharingGranularity > c.LineSize:
		return fmt.Errorf(
			"%w: false sharing granularity %d must be a power of two "+
				"no larger than the line size",
			ErrInvalidConfig, c.FalseSharingGranularity)
	}

	if _, ok := policyNames[c.ReplacementPolicy]; !ok {
		return fmt.Errorf("%w: unknown replacement policy %d",
			ErrInvalidConfig, int(c.ReplacementPolicy))
	}

	if c.ThreadMapping != RoundRobin && c.ThreadMapping != Modulo {
		return fmt.Errorf("%w: unknown thread mapping %d",
			ErrInvalidConfig, int(c.ThreadMapping))
	}

	return nil
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
