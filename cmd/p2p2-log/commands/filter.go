package commands

import (
	"fmt"

	"github.com/p2p2-protocol/p2p2-go/pkg/log"
)

// FilterOptions controls the filter command.
type FilterOptions struct {
	Output string
	Query  log.Query

	// Unpaired keeps only the events of pairing attempts that ended without
	// reaching PAIRED or never ended.
	Unpaired bool
}

// RunFilter copies the events selected by opts into a new protocol log and
// returns the number of events written.
func RunFilter(path string, opts FilterOptions) (int, error) {
	q := opts.Query
	var keep map[string]bool
	if opts.Unpaired {
		var err error
		if keep, err = unpairedTraces(path, q); err != nil {
			return 0, err
		}
	}

	reader, err := log.Open(path, q)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	err = reader.Each(func(event log.Event) error {
		if keep != nil && !keep[attemptID(event.DeviceAddr, event.TraceID)] {
			return nil
		}
		logger.Log(event)
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to read event: %w", err)
	}
	return count, nil
}

// unpairedTraces returns the attempts that did not pair. Outcomes are read
// from every event of an attempt, not only those q selects.
func unpairedTraces(path string, q log.Query) (map[string]bool, error) {
	reader, err := log.Open(path, log.Query{TraceID: q.TraceID, Device: q.Device})
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	attempts, err := log.CollectAttempts(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	keep := make(map[string]bool)
	for _, a := range attempts {
		if a.Outcome() != "PAIRED" {
			keep[attemptID(a.Device, a.TraceID)] = true
		}
	}
	return keep, nil
}

func attemptID(device, traceID string) string {
	return device + "/" + traceID
}
