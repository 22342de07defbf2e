package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/p2p2-protocol/p2p2-go/pkg/log"
)

// QueryOptions holds the event selection flags shared by the commands.
// List options are comma separated.
type QueryOptions struct {
	TraceID       string
	Device        string
	Peer          string
	Layers        string
	Category      string
	Direction     string
	Frames        string
	Entities      string
	Notifications string
	Since         string
	Until         string
}

// BuildQuery converts the options into a log query.
func BuildQuery(opts QueryOptions) (log.Query, error) {
	q := log.Query{
		TraceID:       opts.TraceID,
		Device:        opts.Device,
		Peer:          opts.Peer,
		FrameTypes:    splitList(opts.Frames),
		Notifications: splitList(opts.Notifications),
	}

	for _, s := range splitList(opts.Layers) {
		l, err := parseLayer(s)
		if err != nil {
			return q, err
		}
		q.Layers = append(q.Layers, l)
	}
	for _, s := range splitList(opts.Entities) {
		e, err := parseEntity(s)
		if err != nil {
			return q, err
		}
		q.Entities = append(q.Entities, e)
	}
	if opts.Category != "" {
		c, err := parseCategory(opts.Category)
		if err != nil {
			return q, err
		}
		q.Category = &c
	}
	if opts.Direction != "" {
		d, err := parseDirection(opts.Direction)
		if err != nil {
			return q, err
		}
		q.Direction = &d
	}

	var err error
	if q.Since, err = parseTime("since", opts.Since); err != nil {
		return q, err
	}
	if q.Until, err = parseTime("until", opts.Until); err != nil {
		return q, err
	}
	return q, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseTime(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s time: %w", name, err)
	}
	return t, nil
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "medium":
		return log.LayerMedium, nil
	case "usd":
		return log.LayerUSD, nil
	case "pairing":
		return log.LayerPairing, nil
	case "group":
		return log.LayerGroup, nil
	case "control":
		return log.LayerControl, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be medium, usd, pairing, group, or control)", s)
	}
}

func parseEntity(s string) (log.StateEntity, error) {
	switch strings.ToLower(s) {
	case "publish":
		return log.StateEntityPublish, nil
	case "subscribe":
		return log.StateEntitySubscribe, nil
	case "pairing":
		return log.StateEntityPairing, nil
	case "group":
		return log.StateEntityGroup, nil
	default:
		return 0, fmt.Errorf("invalid entity: %s (must be publish, subscribe, pairing, or group)", s)
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "frame":
		return log.CategoryFrame, nil
	case "state":
		return log.CategoryState, nil
	case "notification":
		return log.CategoryNotification, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be frame, state, notification, or error)", s)
	}
}
