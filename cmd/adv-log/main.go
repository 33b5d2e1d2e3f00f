// Command adv-log is a tool for viewing and analyzing ingestion log files.
//
// Log files are created by configuring a log.FileLogger on the scanner and
// coordinator stack; they use CBOR encoding with the .blog extension.
//
// Usage:
//
//	adv-log <command> [flags] <file.blog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	adv-log view ingest.blog
//
//	# View only error events for one device
//	adv-log view -category error -address AA:BB:CC:DD:EE:FF ingest.blog
//
//	# Export to JSONL
//	adv-log export -format jsonl ingest.blog
//
//	# Show statistics
//	adv-log stats ingest.blog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/blecore/blecore-go/cmd/adv-log/commands"
	"github.com/blecore/blecore-go/pkg/log"
	"github.com/blecore/blecore-go/pkg/version"
)

const usage = `adv-log - Advertisement Ingestion Log Analyzer

Usage:
  adv-log <command> [flags] <file.blog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  stats    Show statistics about the log file
  version  Print the adv-log version

Use "adv-log <command> -help" for more information about a command.
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
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "version":
		fmt.Printf("adv-log %s (log format %s)\n", version.Current, version.LogFormat)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	address := fs.String("address", "", "filter by device address")
	category := fs.String("category", "", "filter by category (adv, state, error)")
	_ = fs.Parse(args)

	path := requirePath(fs)
	filter := log.Filter{Address: *address}
	if *category != "" {
		cat, err := commands.ParseCategory(*category)
		if err != nil {
			fatal(err)
		}
		filter.Category = &cat
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "jsonl", "output format (jsonl, csv)")
	output := fs.String("o", "", "output file (default: stdout)")
	_ = fs.Parse(args)

	if err := commands.RunExport(requirePath(fs), *format, *output); err != nil {
		fatal(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := commands.RunStats(requirePath(fs), os.Stdout); err != nil {
		fatal(err)
	}
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one log file argument")
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "adv-log: %v\n", err)
	os.Exit(1)
}
