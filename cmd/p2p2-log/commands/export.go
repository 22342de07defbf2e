package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/p2p2-protocol/p2p2-go/pkg/log"
)

// Export formats.
const (
	FormatJSONL    = "jsonl"
	FormatCSV      = "csv"
	FormatAttempts = "attempts"
)

const csvTime = "2006-01-02T15:04:05.000000Z"

// RunExport writes the events matching q to output, or stdout when output
// is empty. The attempts format writes one CSV row per pairing attempt.
func RunExport(path, format, output string, q log.Query) error {
	var write func(*log.Reader, io.Writer) error
	switch format {
	case FormatJSONL:
		write = exportJSONL
	case FormatCSV:
		write = exportEvents
	case FormatAttempts:
		write = exportAttempts
	default:
		return fmt.Errorf("unknown format: %s (supported: %s, %s, %s)", format, FormatJSONL, FormatCSV, FormatAttempts)
	}

	reader, err := log.Open(path, q)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return write(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	return reader.Each(func(event log.Event) error {
		return enc.Encode(event)
	})
}

// eventKind names the payload of an event and summarizes it.
func eventKind(event log.Event) (kind, name, detail string) {
	switch {
	case event.Frame != nil:
		return "frame", event.Frame.Type, strings.ToLower(event.Direction.String()) + " " + strconv.Itoa(event.Frame.Size)
	case event.StateChange != nil:
		sc := event.StateChange
		detail = sc.NewState
		if sc.OldState != "" {
			detail = sc.OldState + " -> " + sc.NewState
		}
		if sc.Reason != "" {
			detail += " (" + sc.Reason + ")"
		}
		return "state", sc.Entity.String() + " " + sc.ID, detail
	case event.Notification != nil:
		return "notification", event.Notification.Type, notificationSummary(event.Notification)
	case event.Error != nil:
		return "error", event.Error.Context, event.Error.Message
	}
	return "unknown", "", ""
}

func notificationSummary(n *log.NotificationEvent) string {
	parts := make([]string, 0, len(n.Fields))
	for k, v := range n.Fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func exportEvents(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "device", "peer", "trace_id", "layer", "kind", "name", "detail"}); err != nil {
		return err
	}
	err := reader.Each(func(event log.Event) error {
		kind, name, detail := eventKind(event)
		return cw.Write([]string{
			event.Timestamp.UTC().Format(csvTime),
			event.DeviceAddr,
			event.PeerAddr,
			event.TraceID,
			event.Layer.String(),
			kind,
			name,
			detail,
		})
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func exportAttempts(reader *log.Reader, w io.Writer) error {
	attempts, err := log.CollectAttempts(reader)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"start", "device", "peer", "trace_id", "role", "outcome", "reason", "group", "duration_ms", "frames"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, a := range attempts {
		row := []string{
			a.Start.UTC().Format(csvTime),
			a.Device,
			a.Peer,
			a.TraceID,
			a.Role(),
			a.Outcome(),
			a.Reason,
			a.Group,
			strconv.FormatInt(a.Duration().Milliseconds(), 10),
			strings.Join(a.Frames, " "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
