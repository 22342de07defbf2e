// Package scenario loads YAML scenarios and runs them against simulated
// P2P2 devices sharing one medium.
package scenario

import (
	"strconv"
	"time"
)

// Scenario is a scripted exchange between devices, loaded from YAML.
type Scenario struct {
	// ID is the unique scenario identifier (e.g., "USD-001").
	ID string `yaml:"id"`

	// Name is a human-readable name for the scenario.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Devices are started before the first step, in order.
	Devices []DeviceSpec `yaml:"devices"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Timeout is the default wait timeout for steps (e.g., "5s").
	Timeout string `yaml:"timeout,omitempty"`

	// Tags for categorizing scenarios.
	Tags []string `yaml:"tags,omitempty"`
}

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	// Name is how steps refer to the device. The variable <name>_addr holds
	// its address.
	Name string `yaml:"name"`

	// Address overrides the generated device address.
	Address string `yaml:"address,omitempty"`

	// GoIntent overrides the configured group owner intent.
	GoIntent *int `yaml:"go_intent,omitempty"`

	// Freq overrides the operating frequency of owned groups.
	Freq int `yaml:"freq,omitempty"`

	// TTLUnit, PairingTimeout and FormationTimeout override the device
	// timing (e.g., "100ms").
	TTLUnit          string `yaml:"ttl_unit,omitempty"`
	PairingTimeout   string `yaml:"pairing_timeout,omitempty"`
	FormationTimeout string `yaml:"formation_timeout,omitempty"`

	// Init lists control commands run right after the device starts.
	Init []string `yaml:"init,omitempty"`
}

// Step is one action of a scenario. A step runs its command first, then
// advances the clock, then waits for an event; any of the three may be
// omitted.
type Step struct {
	// Device names the device the command and wait apply to.
	Device string `yaml:"device,omitempty"`

	// Command is a control command line. {{ var }} placeholders are
	// replaced before it runs.
	Command string `yaml:"command,omitempty"`

	// Expect is the exact reply expected from Command. When empty any reply
	// but FAIL is accepted.
	Expect string `yaml:"expect,omitempty"`

	// Advance moves the scenario clock forward (e.g., "3s").
	Advance string `yaml:"advance,omitempty"`

	// Wait is an event line prefix to wait for.
	Wait string `yaml:"wait,omitempty"`

	// Contains lists substrings the event line (or reply, without Wait)
	// must contain.
	Contains []string `yaml:"contains,omitempty"`

	// Save stores the reply (or event line) in the named variable. With
	// Field, only the value of that key=value token is stored.
	Save  string `yaml:"save,omitempty"`
	Field string `yaml:"field,omitempty"`

	// Timeout overrides the scenario timeout for this step.
	Timeout string `yaml:"timeout,omitempty"`

	// Description explains what this step does.
	Description string `yaml:"description,omitempty"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index       int
	Description string
	Reply       string
	Event       string
	Err         error
	Duration    time.Duration
}

// Passed reports whether the step succeeded.
func (r StepResult) Passed() bool {
	return r.Err == nil
}

// Result is the outcome of a scenario run.
type Result struct {
	ScenarioID string
	Steps      []StepResult
	Duration   time.Duration

	// Err is set when the scenario could not start or a step failed.
	Err error
}

// Passed reports whether every step succeeded.
func (r *Result) Passed() bool {
	return r.Err == nil
}

// LoadError provides details about a scenario loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Step is the 1-based index of the offending step (0 if none).
	Step int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Step > 0 {
		msg = "step " + strconv.Itoa(e.Step) + ": " + msg
	}
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
