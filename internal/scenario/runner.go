package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/p2p2-protocol/p2p2-go/pkg/ctrl"
)

// Step errors.
var (
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrMissingText     = errors.New("missing text")
	ErrUnresolved      = errors.New("unresolved variable")
	ErrMissingField    = errors.New("missing field")
)

// Runner executes scenarios, each on a fresh network.
type Runner struct {
	config Config
}

// NewRunner creates a runner.
func NewRunner(config Config) *Runner {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	return &Runner{config: config}
}

// Run executes a scenario. It stops at the first failing step.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *Result {
	start := time.Now()
	result := &Result{ScenarioID: sc.ID}
	defer func() { result.Duration = time.Since(start) }()

	net := NewNetwork(r.config)
	defer func() {
		if err := net.Close(); err != nil && result.Err == nil {
			result.Err = err
		}
	}()

	vars := make(map[string]string)
	for _, spec := range sc.Devices {
		iface, err := net.Add(ctx, spec)
		if err != nil {
			result.Err = err
			return result
		}
		vars[spec.Name+"_addr"] = iface.Device().Address()
	}

	timeout := parseDuration(sc.Timeout, r.config.DefaultTimeout)
	for i := range sc.Steps {
		sr := r.runStep(ctx, net, &sc.Steps[i], vars, timeout)
		sr.Index = i + 1
		result.Steps = append(result.Steps, sr)
		if sr.Err != nil {
			result.Err = fmt.Errorf("step %d: %w", sr.Index, sr.Err)
			break
		}
	}
	return result
}

// RunAll executes scenarios in order and returns their results.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) []*Result {
	results := make([]*Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.Run(ctx, sc))
	}
	return results
}

func (r *Runner) runStep(ctx context.Context, net *Network, st *Step, vars map[string]string, timeout time.Duration) StepResult {
	start := time.Now()
	sr := StepResult{Description: st.Description}
	sr.Err = r.execStep(ctx, net, st, vars, timeout, &sr)
	sr.Duration = time.Since(start)
	return sr
}

func (r *Runner) execStep(ctx context.Context, net *Network, st *Step, vars map[string]string, timeout time.Duration, sr *StepResult) error {
	var iface *ctrl.Interface
	if st.Command != "" || st.Wait != "" {
		var err error
		if iface, err = net.Device(st.Device); err != nil {
			return err
		}
	}

	if st.Command != "" {
		line, err := resolve(st.Command, vars)
		if err != nil {
			return err
		}
		sr.Reply = iface.Request(line)
		if st.Expect != "" {
			if want := Interpolate(st.Expect, vars); sr.Reply != want {
				return fmt.Errorf("%w: %s: got %q, want %q", ErrUnexpectedReply, line, sr.Reply, want)
			}
		} else if sr.Reply == ctrl.ReplyFail {
			return fmt.Errorf("%w: %s: %s", ErrUnexpectedReply, line, sr.Reply)
		}
	}

	if st.Advance != "" {
		if err := net.Advance(ctx, parseDuration(st.Advance, 0)); err != nil {
			return err
		}
	}

	target := sr.Reply
	if st.Wait != "" {
		wctx, cancel := context.WithTimeout(ctx, parseDuration(st.Timeout, timeout))
		line, err := iface.WaitEvent(wctx, st.Wait)
		cancel()
		if err != nil {
			return fmt.Errorf("waiting for %s on %s: %w", st.Wait, st.Device, err)
		}
		sr.Event = line
		target = line
	}

	for _, text := range st.Contains {
		want, err := resolve(text, vars)
		if err != nil {
			return err
		}
		if !strings.Contains(target, want) {
			return fmt.Errorf("%w: %q not in %q", ErrMissingText, want, target)
		}
	}

	if st.Save != "" {
		value := target
		if st.Field != "" {
			v, ok := Field(target, st.Field)
			if !ok {
				return fmt.Errorf("%w: %s in %q", ErrMissingField, st.Field, target)
			}
			value = v
		}
		vars[st.Save] = value
	}
	return nil
}

func resolve(s string, vars map[string]string) (string, error) {
	out := Interpolate(s, vars)
	if names := Unresolved(out); len(names) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(names, ", "))
	}
	return out, nil
}
