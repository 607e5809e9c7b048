// The undertow command drives the editorial pipeline from the shell: run a
// story end to end, work the escalation queue, inspect the build.
//
// Usage:
//
//	undertow run --story story.yaml --offline      # analyze one story
//	undertow escalations list                      # show the review queue
//	undertow escalations resolve <id> --reviewer … # rule on a package
//	undertow version                               # show version information
//
// The pipeline itself never fails hard: a degraded run still exits 0 and
// reports its state in the printed summary. Exit code 2 is reserved for
// configuration and I/O errors.
package main

import (
	"fmt"
	"os"
)

// Build-time metadata, injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runStory(os.Args[2:]))
	case "escalations":
		os.Exit(runEscalations(os.Args[2:]))
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printVersion() {
	fmt.Printf("undertow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`undertow - editorial pipeline for geopolitical analysis

Usage:
  undertow <command> [options]

Commands:
  run          Run one story through the pipeline
  escalations  Work the human-review queue (list, resolve)
  version      Show version information
  help         Show this help message

Options for 'run':
  --config <path>        Path to configuration file (YAML)
  --story <path>         Path to the story file (YAML, required)
  --offline              Use the built-in heuristic agents
  --out <path>           Write the full result as JSON
  --metrics-addr <addr>  Serve Prometheus /metrics on this address

Options for 'escalations list':
  --config <path>        Path to configuration file (YAML)
  --status <status>      pending|in_review|approved|rejected|revised|all

Options for 'escalations resolve <id>':
  --config <path>        Path to configuration file (YAML)
  --status <status>      approved|rejected|revised (default approved)
  --reviewer <name>      Reviewer of record (required)
  --notes <text>         Resolution notes

Exit codes:
  0  command completed (including degraded pipeline runs)
  2  configuration or I/O error`)
}
