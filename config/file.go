package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a configuration. Absent fields keep the value
// already held by the builder.
type File struct {
	Preset                  string             `yaml:"preset"`
	LineSize                *uint64            `yaml:"lineSize"`
	SetsPerCore             *int               `yaml:"setsPerCore"`
	WaysPerSet              *int               `yaml:"waysPerSet"`
	NumCores                *int               `yaml:"numCores"`
	ReplacementPolicy       *ReplacementPolicy `yaml:"replacementPolicy"`
	FalseSharingWindow      *time.Duration     `yaml:"falseSharingWindow"`
	FalseSharingGranularity *uint64            `yaml:"falseSharingGranularity"`
	ThreadMapping           *ThreadMapping     `yaml:"threadMapping"`
	Seed                    *int64             `yaml:"seed"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a YAML configuration from r.
func Decode(r io.Reader) (File, error) {
	var file File

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return file, nil
}

// ApplyTo overlays the fields present in the file onto b.
func (f File) ApplyTo(b Builder) (Builder, error) {
	if f.Preset != "" {
		p, err := LookupPreset(f.Preset)
		if err != nil {
			return b, err
		}

		b = b.WithPreset(p)
	}

	if f.LineSize != nil {
		b = b.WithLineSize(*f.LineSize)
	}

	if f.SetsPerCore != nil {
		b = b.WithSetsPerCore(*f.SetsPerCore)
	}

	if f.WaysPerSet != nil {
		b = b.WithWaysPerSet(*f.WaysPerSet)
	}

	if f.NumCores != nil {
		b = b.WithNumCores(*f.NumCores)
	}

	if f.ReplacementPolicy != nil {
		b = b.WithReplacementPolicy(*f.ReplacementPolicy)
	}

	if f.FalseSharingWindow != nil {
		b = b.WithFalseSharingWindow(*f.FalseSharingWindow)
	}

	if f.FalseSharingGranularity != nil {
		b = b.WithFalseSharingGranularity(*f.FalseSharingGranularity)
	}

	if f.ThreadMapping != nil {
		b = b.WithThreadMapping(*f.ThreadMapping)
	}

	if f.Seed != nil {
		b = b.WithSeed(*f.Seed)
	}

	return b, nil
}
