// Command climatescope runs the weather analytics pipeline: it cleans a raw
// weather CSV, aggregates it into monthly and seasonal tables, and flags
// extreme months per location.
//
// Usage:
//
//	climatescope <command> [flags]
//
// Commands:
//
//	clean      raw CSV -> cleaned CSV
//	aggregate  cleaned CSV -> monthly and seasonal CSVs
//	extremes   monthly CSV -> extremes CSV
//	run        all three stages, optional sinks, run manifest
//	inspect    profile the raw CSV into a Markdown summary report
//	serve      read-only HTTP API over the persisted artifacts
//
// Settings come from the environment (optionally a .env file); flags override
// paths and thresholds.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/climatescope-etl/internal/config"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "load .env: %v\n", err)
		return exitFatal
	}

	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		if name == "-h" || name == "--help" || name == "help" {
			usage(stdout)
			return exitOK
		}
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFatal
	}
	return cmd.run(cfg, rest, stdout, stderr)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: climatescope <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
}
