// Command p2p2-log is a tool for viewing and analyzing P2P2 protocol trace
// files.
//
// Trace files are written by p2p2-sim with the -protocol-log flag.
//
// Usage:
//
//	p2p2-log <command> [flags] <file.plog>
//
// Commands:
//
//	view      View trace file in human-readable format
//	pairings  Show one summary per pairing attempt
//	export    Export trace file to JSONL or CSV format
//	filter    Filter trace file and write to new file
//	stats     Show statistics about the trace file
//
// Examples:
//
//	# View the authentication exchange and pairing failures
//	p2p2-log view -frame 'AUTH*' -notification PAIRING_FAILED sim.plog
//
//	# Follow one pairing attempt
//	p2p2-log view -trace-id 5f1c2a9e-... sim.plog
//
//	# Summarize the attempts one device ran
//	p2p2-log pairings -device 02:00:00:00:00:01 sim.plog
//
//	# Keep the attempts that did not pair
//	p2p2-log filter -unpaired -o unpaired.plog sim.plog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/p2p2-protocol/p2p2-go/cmd/p2p2-log/commands"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
)

const usage = `p2p2-log - P2P2 Protocol Trace Analyzer

Usage:
  p2p2-log <command> [flags] <file.plog>

Commands:
  view      View trace file in human-readable format
  pairings  Show one summary per pairing attempt
  export    Export trace file to JSONL or CSV format
  filter    Filter trace file and write to new file
  stats     Show statistics about the trace file

Use "p2p2-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "pairings":
		runPairings(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the command's usage text.
func newFlagSet(name, summary, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "p2p2-log %s - %s\n\nUsage:\n  %s\n\nFlags:\n", name, summary, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// pathArg parses args and returns the trace file argument.
func pathArg(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// queryFlags registers the event selection flags on fs. The returned
// function builds the query after parsing.
func queryFlags(fs *flag.FlagSet) func() log.Query {
	var opts commands.QueryOptions
	fs.StringVar(&opts.TraceID, "trace-id", "", "Filter by pairing trace ID")
	fs.StringVar(&opts.Device, "device", "", "Filter by capturing device address")
	fs.StringVar(&opts.Peer, "peer", "", "Filter by peer address")
	fs.StringVar(&opts.Layers, "layer", "", "Filter by layers (medium, usd, pairing, group, control)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (frame, state, notification, error)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter frames by direction (in, out)")
	fs.StringVar(&opts.Frames, "frame", "", "Select frames by type, e.g. AUTH1,BOOTSTRAP_*")
	fs.StringVar(&opts.Entities, "entity", "", "Select state changes by entity (publish, subscribe, pairing, group)")
	fs.StringVar(&opts.Notifications, "notification", "", "Select notifications by type, e.g. PAIRING_*")
	fs.StringVar(&opts.Since, "since", "", "Filter events at or after this time (RFC3339)")
	fs.StringVar(&opts.Until, "until", "", "Filter events before this time (RFC3339)")

	return func() log.Query {
		q, err := commands.BuildQuery(opts)
		if err != nil {
			fail(err)
		}
		return q
	}
}

func runView(args []string) {
	fs := newFlagSet("view", "View trace file in human-readable format", "p2p2-log view [flags] <file.plog>")
	query := queryFlags(fs)
	path := pathArg(fs, args)

	if err := commands.RunView(path, query(), os.Stdout); err != nil {
		fail(err)
	}
}

func runPairings(args []string) {
	fs := newFlagSet("pairings", "Show one summary per pairing attempt", "p2p2-log pairings [flags] <file.plog>")
	query := queryFlags(fs)
	path := pathArg(fs, args)

	if err := commands.RunPairings(path, query(), os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export trace file to JSONL or CSV format", "p2p2-log export [flags] <file.plog>")
	format := fs.String("format", commands.FormatJSONL, "Output format (jsonl, csv, attempts)")
	output := fs.String("o", "", "Output file (default: stdout)")
	query := queryFlags(fs)
	path := pathArg(fs, args)

	if err := commands.RunExport(path, *format, *output, query()); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter trace file and write to new file", "p2p2-log filter [flags] <file.plog>")
	var opts commands.FilterOptions
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.BoolVar(&opts.Unpaired, "unpaired", false, "Keep only pairing attempts that did not pair")
	query := queryFlags(fs)
	path := pathArg(fs, args)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	opts.Query = query()

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, opts.Output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the trace file", "p2p2-log stats <file.plog>")
	path := pathArg(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
