package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/p2p2-protocol/p2p2-go/internal/scenario"
	"github.com/p2p2-protocol/p2p2-go/pkg/ctrl"
)

// Shell is the interactive command line of the simulator.
//
// Lines starting with a shell command are handled locally; anything else is
// sent as a control command to the selected device. "@name CMD" sends CMD
// to another device.
type Shell struct {
	net     *scenario.Network
	current string
	rl      *readline.Instance
}

// NewShell creates a shell with readline input.
func NewShell() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "p2p2> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that coordinates with the readline prompt.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Close releases the terminal.
func (s *Shell) Close() error {
	return s.rl.Close()
}

// Attach selects the network the shell drives and prints device events.
func (s *Shell) Attach(net *scenario.Network) {
	s.net = net
	for _, name := range net.Names() {
		iface, _ := net.Device(name)
		name := name
		iface.OnEvent(func(line string) {
			fmt.Fprintf(s.rl.Stdout(), "<%s> %s\n", name, line)
		})
	}
	s.selectDevice(net.Names()[0])
}

func (s *Shell) selectDevice(name string) {
	s.current = name
	if s.rl != nil {
		s.rl.SetPrompt(fmt.Sprintf("p2p2[%s]> ", name))
	}
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	printHelp(s.rl.Stdout())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if !s.exec(ctx, line, s.rl.Stdout()) {
			cancel()
			return
		}
	}
}

// exec handles one input line. It returns false when the shell should exit.
func (s *Shell) exec(ctx context.Context, line string, out io.Writer) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	args := parts[1:]

	switch strings.ToLower(parts[0]) {
	case "help", "?":
		printHelp(out)
	case "devices", "d":
		s.cmdDevices(out)
	case "medium", "m":
		s.cmdMedium(out)
	case "use", "u":
		s.cmdUse(args, out)
	case "wait", "w":
		s.cmdWait(ctx, args, out)
	case "clear":
		s.cmdClear(out)
	case "commands":
		names := ctrl.Commands()
		sort.Strings(names)
		fmt.Fprintln(out, strings.Join(names, " "))
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Exiting...")
		return false
	default:
		s.cmdControl(input, out)
	}
	return true
}

func (s *Shell) cmdDevices(out io.Writer) {
	for _, name := range s.net.Names() {
		iface, _ := s.net.Device(name)
		dev := iface.Device()
		marker := " "
		if name == s.current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-10s %s %s", marker, name, dev.Address(), dev.State())
		if st, ok := dev.Group(); ok {
			fmt.Fprintf(out, " group=%s role=%s", st.SSID, st.Role)
		}
		fmt.Fprintln(out)
	}
}

// cmdMedium prints the attached addresses and frame counters of the shared
// medium.
func (s *Shell) cmdMedium(out io.Writer) {
	hub := s.net.Hub()
	st := hub.Stats()
	fmt.Fprintf(out, "attached: %s\n", strings.Join(hub.Addresses(), " "))
	fmt.Fprintf(out, "sent=%d delivered=%d dropped=%d\n", st.Sent, st.Delivered, st.Dropped)
}

func (s *Shell) cmdUse(args []string, out io.Writer) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: use <device>")
		return
	}
	if _, err := s.net.Device(args[0]); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	s.selectDevice(args[0])
}

// cmdWait waits for an event on the current device: wait <prefix> [timeout].
func (s *Shell) cmdWait(ctx context.Context, args []string, out io.Writer) {
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: wait <event-prefix> [timeout]")
		return
	}
	timeout := 5 * time.Second
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(out, "Error: invalid timeout: %v\n", err)
			return
		}
		timeout = d
	}

	iface, err := s.net.Device(s.current)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	line, err := iface.WaitEvent(wctx, args[0])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(out, line)
}

// cmdClear drops the queued events of every device.
func (s *Shell) cmdClear(out io.Writer) {
	total := 0
	for _, name := range s.net.Names() {
		iface, _ := s.net.Device(name)
		total += len(iface.Device().Events().Drain())
	}
	fmt.Fprintf(out, "Cleared %d events\n", total)
}

func (s *Shell) cmdControl(input string, out io.Writer) {
	target := s.current
	if strings.HasPrefix(input, "@") {
		name, rest, _ := strings.Cut(input[1:], " ")
		target, input = name, strings.TrimSpace(rest)
	}

	iface, err := s.net.Device(target)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	reply, err := iface.Do(input)
	if err != nil {
		fmt.Fprintf(out, "FAIL (%v)\n", err)
		return
	}
	fmt.Fprintln(out, reply)
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `
Shell commands:
  devices, d             List devices (* marks the selected one)
  medium, m              Show attached addresses and frame counters
  use, u <device>        Select the device commands are sent to
  wait, w <prefix> [t]   Wait for an event on the selected device
  clear                  Drop queued events of all devices
  commands               List control commands
  help, ?                Show this help
  quit, exit, q          Exit

Anything else is a control command for the selected device, e.g.
  NAN_PUBLISH service_name=_test srv_proto_type=2 ssi=6677 ttl=5 p2p=1
  P2P_CONNECT 02:00:00:00:00:02 pair bstrapmethod=2 auth password=12345670
Prefix a command with @<device> to send it elsewhere.

`)
}
