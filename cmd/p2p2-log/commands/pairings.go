package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/p2p2-protocol/p2p2-go/pkg/log"
)

// RunPairings prints one block per pairing attempt of the events matching
// q: who paired with whom, the states entered, the frames exchanged and
// the group that followed.
func RunPairings(path string, q log.Query, w io.Writer) error {
	reader, err := log.Open(path, q)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	attempts, err := log.CollectAttempts(reader)
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}
	if len(attempts) == 0 {
		fmt.Fprintln(w, "No pairing attempts")
		return nil
	}

	for _, a := range attempts {
		formatAttempt(w, a)
	}
	return nil
}

func formatAttempt(w io.Writer, a *log.Attempt) {
	role := a.Role()
	if role == "" {
		role = "unknown"
	}
	outcome := a.Outcome()
	if !a.Done() {
		outcome = "INCOMPLETE"
	}

	fmt.Fprintf(w, "%s [%s] %s with %s trace=%s %s",
		a.Start.UTC().Format(csvTime), a.Device, role, a.Peer, shortenTraceID(a.TraceID), outcome)
	if a.Reason != "" {
		fmt.Fprintf(w, " (%s)", a.Reason)
	}
	fmt.Fprintf(w, " in %s\n", a.Duration())

	if len(a.States) > 0 {
		fmt.Fprintf(w, "  States: %s\n", strings.Join(a.States, " -> "))
	}
	if len(a.Frames) > 0 {
		fmt.Fprintf(w, "  Frames: %s\n", strings.Join(a.Frames, " "))
	}
	if a.Group != "" {
		fmt.Fprintf(w, "  Group: %s\n", a.Group)
	}
	if a.Errors > 0 {
		fmt.Fprintf(w, "  Errors: %d\n", a.Errors)
	}
	fmt.Fprintln(w)
}
