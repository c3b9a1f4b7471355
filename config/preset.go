package config

import (
	"fmt"
	"sort"
	"strings"
)

// A Preset describes the L1 data cache of a real processor.
type Preset struct {
	Name        string
	Description string
	SizeKB      uint64
	Ways        int
	LineSize    uint64
	Policy      ReplacementPolicy
}

// Sets returns the number of sets implied by the preset geometry.
func (p Preset) Sets() int {
	return int(p.SizeKB * 1024 / (uint64(p.Ways) * p.LineSize))
}

// Pseudo-LRU hardware is modeled as true LRU.
var presets = map[string]Preset{
	"intel": {
		Name: "intel", Description: "Intel 12th gen P-core",
		SizeKB: 32, Ways: 8, LineSize: 64, Policy: LRU,
	},
	"intel14": {
		Name: "intel14", Description: "Intel 14th gen P-core",
		SizeKB: 48, Ways: 12, LineSize: 64, Policy: LRU,
	},
	"xeon": {
		Name: "xeon", Description: "Intel Xeon (Sapphire Rapids)",
		SizeKB: 48, Ways: 12, LineSize: 64, Policy: LRU,
	},
	"amd": {
		Name: "amd", Description: "AMD Zen 4",
		SizeKB: 32, Ways: 8, LineSize: 64, Policy: LRU,
	},
	"apple": {
		Name: "apple", Description: "Apple M1 P-core",
		SizeKB: 64, Ways: 8, LineSize: 64, Policy: LRU,
	},
	"m2": {
		Name: "m2", Description: "Apple M2 P-core",
		SizeKB: 128, Ways: 8, LineSize: 64, Policy: LRU,
	},
	"graviton": {
		Name: "graviton", Description: "AWS Graviton 3",
		SizeKB: 64, Ways: 4, LineSize: 64, Policy: LRU,
	},
	"rpi4": {
		Name: "rpi4", Description: "Raspberry Pi 4 (Cortex-A72)",
		SizeKB: 32, Ways: 2, LineSize: 64, Policy: LRU,
	},
	"embedded": {
		Name: "embedded", Description: "Small embedded core",
		SizeKB: 32, Ways: 4, LineSize: 64, Policy: LRU,
	},
	"educational": {
		Name: "educational", Description: "Tiny cache for teaching",
		SizeKB: 1, Ways: 2, LineSize: 64, Policy: LRU,
	},
}

// LookupPreset finds a preset by name.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, fmt.Errorf("%w: unknown preset %q",
			ErrInvalidConfig, name)
	}

	return p, nil
}

// Presets lists all presets ordered by name.
func Presets() []Preset {
	list := make([]Preset, 0, len(presets))
	for _, p := range presets {
		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return list
}
