package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/p2p2-protocol/p2p2-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	FramesByType      map[string]int
	Devices           map[string]*DeviceStats
	Pairings          int
	PairingOutcomes   map[string]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceStats holds statistics for a single capturing device.
type DeviceStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	FramesIn  int
	FramesOut int
	Peers     map[string]bool
}

// collectStats reads every event of the log file.
func collectStats(path string) (*Stats, error) {
	reader, err := log.Open(path, log.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		FramesByType:      make(map[string]int),
		Devices:           make(map[string]*DeviceStats),
		PairingOutcomes:   make(map[string]int),
	}
	attempts := log.NewAttempts()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		dev, ok := stats.Devices[event.DeviceAddr]
		if !ok {
			dev = &DeviceStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Peers:     make(map[string]bool),
			}
			stats.Devices[event.DeviceAddr] = dev
		}
		dev.Events++
		if event.Timestamp.After(dev.LastSeen) {
			dev.LastSeen = event.Timestamp
		}
		if event.PeerAddr != "" {
			dev.Peers[event.PeerAddr] = true
		}

		if event.Frame != nil {
			stats.EventsByDirection[event.Direction]++
			stats.FramesByType[event.Frame.Type]++
			if event.Direction == log.DirectionIn {
				dev.FramesIn++
			} else {
				dev.FramesOut++
			}
		}
		attempts.Add(event)
		if event.Error != nil {
			stats.Errors++
		}
	}

	stats.Pairings = attempts.Len()
	for _, a := range attempts.List() {
		outcome := a.Outcome()
		if !a.Done() {
			outcome = "INCOMPLETE"
		}
		stats.PairingOutcomes[outcome]++
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := collectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== P2P2 Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerMedium, log.LayerUSD, log.LayerPairing, log.LayerGroup, log.LayerControl} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryFrame, log.CategoryState, log.CategoryNotification, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.FramesByType) > 0 {
		fmt.Fprintln(w, "Frames by Type:")
		types := make([]string, 0, len(stats.FramesByType))
		for t := range stats.FramesByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "  %-20s %d\n", t+":", stats.FramesByType[t])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Pairing Attempts: %d\n", stats.Pairings)
	for _, outcome := range []string{"PAIRED", "FAILED", "TIMED_OUT", "INCOMPLETE"} {
		if count := stats.PairingOutcomes[outcome]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", outcome+":", count)
		}
	}
	fmt.Fprintf(w, "Devices: %d\n", len(stats.Devices))
	if len(stats.Devices) > 0 {
		addrs := make([]string, 0, len(stats.Devices))
		for addr := range stats.Devices {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)

		fmt.Fprintln(w)
		for _, addr := range addrs {
			d := stats.Devices[addr]
			fmt.Fprintf(w, "  [%s] %d events, %d in, %d out, %d peers\n",
				addr, d.Events, d.FramesIn, d.FramesOut, len(d.Peers))
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
