// Command planner builds an event timeline from a request file without the
// HTTP service.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vertigo/eventtimeline/internal/config"
	"github.com/vertigo/eventtimeline/internal/scheduler"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
	case "--version", "version":
		fmt.Println("planner", version)
	case "plan":
		os.Exit(cmdPlan(os.Args[2:], engineDefaults(), os.Stdin, os.Stdout, os.Stderr))
	default:
		fmt.Fprintf(os.Stderr, "planner: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'planner --help' for usage.")
		os.Exit(2)
	}
}

// engineDefaults reads the scheduler section of the service configuration so
// the CLI plans exactly like the API.
func engineDefaults() scheduler.Options {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Using built-in engine defaults", "error", err)
		return scheduler.DefaultOptions()
	}
	return cfg.Scheduler.Options()
}

func printUsage() {
	fmt.Print(`planner - event timeline scheduling

Usage:
  planner plan [flags] <request.yaml|request.json|->
  planner version

Plan flags:
  -format json|ics   output format (default json)
  -lead N            minutes of lead setup before the first act
  -crew              include crew entries in ICS output
  -calls             include call times in ICS output
  -strict            fail when the plan runs past curfew

Engine defaults come from config.yaml and the environment, as for the server.
`)
}
