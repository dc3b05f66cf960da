// Package config loads the YAML boot manifest cmd/nucleus reads before
// merging CLI overrides on top of it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk boot manifest shape. Every field is optional; a
// missing field keeps whatever default the caller already had.
type Manifest struct {
	TotalMemory uint64   `yaml:"total_memory"`
	Terminals   int      `yaml:"terminals"`
	InitProgram string   `yaml:"init_program"`
	InitArgv    []string `yaml:"init_argv"`
	Backend     string   `yaml:"backend"`
}

// Load reads and parses the YAML manifest at path.
func Load(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return m, nil
}

// MergeDefaults fills any zero-valued field of m with the corresponding
// field from defaults, the way CLI flags with their own defaults merge over
// an optional manifest: an explicit manifest field always wins, otherwise
// the flag's own default survives.
func MergeDefaults(m, defaults Manifest) Manifest {
	out := m
	if out.TotalMemory == 0 {
		out.TotalMemory = defaults.TotalMemory
	}
	if out.Terminals == 0 {
		out.Terminals = defaults.Terminals
	}
	if out.InitProgram == "" {
		out.InitProgram = defaults.InitProgram
	}
	if out.InitArgv == nil {
		out.InitArgv = defaults.InitArgv
	}
	if out.Backend == "" {
		out.Backend = defaults.Backend
	}
	return out
}
