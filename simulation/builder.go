package simulation

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cachescope/config"
	"github.com/sarchlab/cachescope/mem/coherence"
)

// Builder can build simulators.
type Builder struct {
	config config.SimulationConfig
	log    logrus.FieldLogger
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	c, err := config.MakeBuilder().Build()
	if err != nil {
		panic(err)
	}

	return Builder{
		config: c,
		log:    logrus.StandardLogger(),
	}
}

// WithConfig sets the simulation configuration.
func (b Builder) WithConfig(c config.SimulationConfig) Builder {
	b.config = c
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(log logrus.FieldLogger) Builder {
	b.log = log
	return b
}

// Build creates a simulator with cold caches.
func (b Builder) Build() *Simulator {
	if err := b.config.Validate(); err != nil {
		panic(err)
	}

	return &Simulator{
		log:    b.log,
		config: b.config,
		engine: coherence.NewEngine(b.config),
		cores:  make(map[uint32]int),
	}
}
