package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ParseScenario parses a scenario from YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, &LoadError{
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}
	if err := validate(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario loads a scenario from a file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	sc, err := ParseScenario(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return sc, nil
}

// LoadDirectory loads all scenarios from a directory.
// Only files with .yaml or .yml extensions are loaded, in name order.
func LoadDirectory(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{
			File:    dir,
			Message: "failed to read directory",
			Cause:   err,
		}
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		sc, err := LoadScenario(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func validate(sc *Scenario) error {
	if sc.ID == "" {
		return &LoadError{Message: "scenario ID is required"}
	}
	if len(sc.Devices) == 0 {
		return &LoadError{Message: "scenario must have at least one device"}
	}
	if len(sc.Steps) == 0 {
		return &LoadError{Message: "scenario must have at least one step"}
	}
	if err := checkDuration(sc.Timeout); err != nil {
		return &LoadError{Message: "invalid timeout", Cause: err}
	}

	names := make(map[string]bool, len(sc.Devices))
	for _, d := range sc.Devices {
		if d.Name == "" {
			return &LoadError{Message: "device name is required"}
		}
		if names[d.Name] {
			return &LoadError{Message: fmt.Sprintf("duplicate device %q", d.Name)}
		}
		names[d.Name] = true

		for _, v := range []string{d.TTLUnit, d.PairingTimeout, d.FormationTimeout} {
			if err := checkDuration(v); err != nil {
				return &LoadError{Message: fmt.Sprintf("device %q", d.Name), Cause: err}
			}
		}
	}

	for i, st := range sc.Steps {
		if st.Command == "" && st.Wait == "" && st.Advance == "" {
			return &LoadError{Step: i + 1, Message: "step needs a command, wait or advance"}
		}
		if (st.Command != "" || st.Wait != "") && !names[st.Device] {
			return &LoadError{Step: i + 1, Message: fmt.Sprintf("unknown device %q", st.Device)}
		}
		if st.Field != "" && st.Save == "" {
			return &LoadError{Step: i + 1, Message: "field requires save"}
		}
		for _, v := range []string{st.Advance, st.Timeout} {
			if err := checkDuration(v); err != nil {
				return &LoadError{Step: i + 1, Message: "invalid duration", Cause: err}
			}
		}
	}
	return nil
}

func checkDuration(s string) error {
	if s == "" {
		return nil
	}
	_, err := time.ParseDuration(s)
	return err
}

// parseDuration parses a validated duration, falling back to def when empty.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
