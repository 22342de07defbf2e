// Package commands implements the p2p2-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/wire"
)

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [device] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = event.Frame.Type
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Notification != nil:
		typeLabel = event.Notification.Type
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	dir := ""
	if event.Category == log.CategoryFrame {
		dir = event.Direction.String()
	}
	fmt.Fprintf(w, "%s [%s] %-3s %s %s", ts, event.DeviceAddr, dir, event.Layer.String(), typeLabel)
	if event.PeerAddr != "" {
		fmt.Fprintf(w, " peer=%s", event.PeerAddr)
	}
	if event.TraceID != "" {
		fmt.Fprintf(w, " trace=%s", shortenTraceID(event.TraceID))
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Notification != nil:
		formatNotificationDetails(w, event.Notification)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenTraceID returns the first 8 characters of the trace ID.
func shortenTraceID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatFrameDetails writes frame-specific details. Frames that were not
// truncated are decoded for a summary line.
func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) == 0 {
		return
	}
	fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
	if frame.Truncated {
		fmt.Fprintf(w, " (truncated)")
	}
	fmt.Fprintln(w)

	if frame.Truncated {
		return
	}
	f, err := wire.Decode(frame.Data)
	if err != nil {
		return
	}
	if f.Dst != "" {
		fmt.Fprintf(w, "  Dst: %s\n", f.Dst)
	}
	if f.USD != nil {
		fmt.Fprintf(w, "  Service: %s id=%d\n", f.USD.ServiceName, f.USD.LocalID)
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s %s\n", sc.Entity.String(), sc.ID)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatNotificationDetails writes the notification fields in key order.
func formatNotificationDetails(w io.Writer, n *log.NotificationEvent) {
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, n.Fields[k])
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// RunView writes the events matching q in human-readable form.
func RunView(path string, q log.Query, w io.Writer) error {
	reader, err := log.Open(path, q)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	err = reader.Each(func(event log.Event) error {
		formatEvent(w, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}
	if reader.Truncated() {
		fmt.Fprintln(w, "(log ends in a partial record)")
	}
	return nil
}
