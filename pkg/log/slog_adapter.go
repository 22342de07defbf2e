package log

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// SlogAdapter mirrors trace events to an slog.Logger.
//
// Frames and ordinary state changes are logged at debug level, consumer
// notifications at info, and failures and errors at warn, so a logger at
// info level shows the outcome of every session, pairing and group without
// the frame exchange.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes ev to the logger.
func (a *SlogAdapter) Log(ev Event) {
	ctx := context.Background()
	level, msg, attrs := describe(ev)
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs = append(attrs, slog.String("device", ev.DeviceAddr))
	if ev.PeerAddr != "" {
		attrs = append(attrs, slog.String("peer", ev.PeerAddr))
	}
	if ev.TraceID != "" {
		attrs = append(attrs, slog.String("trace", ev.TraceID))
	}
	a.logger.LogAttrs(ctx, level, msg, attrs...)
}

// describe picks the level, message and payload attributes of ev.
func describe(ev Event) (slog.Level, string, []slog.Attr) {
	switch {
	case ev.Frame != nil:
		verb := "received "
		if ev.Direction == DirectionOut {
			verb = "sent "
		}
		attrs := []slog.Attr{slog.Int("size", ev.Frame.Size)}
		if ev.Frame.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
		return slog.LevelDebug, verb + ev.Frame.Type, attrs

	case ev.StateChange != nil:
		sc := ev.StateChange
		attrs := []slog.Attr{slog.String("id", sc.ID)}
		if sc.OldState != "" {
			attrs = append(attrs, slog.String("from", sc.OldState))
		}
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
		level := slog.LevelDebug
		if sc.NewState == pairingFailed || sc.NewState == pairingTimedOut {
			level = slog.LevelWarn
		}
		return level, strings.ToLower(sc.Entity.String()) + " " + sc.NewState, attrs

	case ev.Notification != nil:
		n := ev.Notification
		keys := make([]string, 0, len(n.Fields))
		for k := range n.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]any, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, slog.String(k, n.Fields[k]))
		}
		level := slog.LevelInfo
		if strings.HasSuffix(n.Type, "_FAILED") || strings.HasSuffix(n.Type, "_FAILURE") {
			level = slog.LevelWarn
		}
		return level, n.Type, []slog.Attr{slog.Group("fields", fields...)}

	case ev.Error != nil:
		attrs := []slog.Attr{slog.String("layer", ev.Error.Layer.String())}
		if ev.Error.Context != "" {
			attrs = append(attrs, slog.String("context", ev.Error.Context))
		}
		return slog.LevelWarn, ev.Error.Message, attrs
	}
	return slog.LevelDebug, ev.Category.String(), nil
}

var _ Logger = (*SlogAdapter)(nil)
