package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/p2p2-protocol/p2p2-go/internal/scenario"
)

// simConfig is the device layout of an interactive session.
type simConfig struct {
	Devices []scenario.DeviceSpec `yaml:"devices"`
}

// loadSimConfig reads a device layout from a YAML file.
func loadSimConfig(path string) (*simConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parseSimConfig(data)
}

func parseSimConfig(data []byte) (*simConfig, error) {
	var cfg simConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("config has no devices")
	}
	seen := make(map[string]bool)
	for i, d := range cfg.Devices {
		if d.Name == "" {
			return nil, fmt.Errorf("device %d has no name", i+1)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate device %q", d.Name)
		}
		seen[d.Name] = true
	}
	return &cfg, nil
}

// defaultSimConfig names n devices dev1..devN.
func defaultSimConfig(n int) *simConfig {
	cfg := &simConfig{}
	for i := 1; i <= n; i++ {
		cfg.Devices = append(cfg.Devices, scenario.DeviceSpec{Name: fmt.Sprintf("dev%d", i)})
	}
	return cfg
}
