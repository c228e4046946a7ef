package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Edge is a static relationship between two topics.
type Edge struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Topology describes the monitored topic set and the statically configured
// edges between topics. Edges discovered from live traces are added on top
// of this at runtime.
type Topology struct {
	Topics []string `yaml:"topics"`
	Edges  []Edge   `yaml:"edges"`
}

// LoadTopology reads a topology YAML file. An empty path yields an empty
// topology, which is valid: topics are then discovered from traffic only.
func LoadTopology(path string) (*Topology, error) {
	if path == "" {
		return &Topology{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}

	return &topo, nil
}
