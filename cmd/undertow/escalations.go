package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	undertow "github.com/100PercentTuna/the-undertow-sub000"
	"github.com/100PercentTuna/the-undertow-sub000/escalation"
)

func runEscalations(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "escalations: expected a subcommand (list, resolve)")
		return 2
	}
	switch args[0] {
	case "list":
		return listEscalations(args[1:])
	case "resolve":
		return resolveEscalation(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "escalations: unknown subcommand %q\n", args[0])
		return 2
	}
}

func listEscalations(args []string) int {
	fs := flag.NewFlagSet("escalations list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file (YAML)")
	status := fs.String("status", "pending", "pending|in_review|approved|rejected|revised|all")
	_ = fs.Parse(args)

	sys, logger, code := buildDesk(*configPath)
	if code != 0 {
		return code
	}
	defer func() { _ = sys.Close() }()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		pkgs []*escalation.Package
		err  error
	)
	if *status == "pending" {
		pkgs, err = sys.Escalations.Pending(ctx)
	} else {
		filter, ok := parseStatus(*status)
		if !ok {
			fmt.Fprintf(os.Stderr, "escalations list: unknown status %q\n", *status)
			return 2
		}
		pkgs, err = sys.Store.List(ctx, filter)
	}
	if err != nil {
		logger.Error("list escalations", zap.Error(err))
		return 2
	}

	if len(pkgs) == 0 {
		fmt.Println("no escalations")
		return 0
	}
	fmt.Printf("%-36s  %-8s  %-9s  %-7s  %s\n", "ID", "PRIORITY", "STATUS", "QUALITY", "CREATED")
	for _, pkg := range pkgs {
		fmt.Printf("%-36s  %-8s  %-9s  %.3f    %s\n",
			pkg.ID, pkg.Priority, pkg.Status, pkg.Quality, pkg.CreatedAt.Format(time.RFC3339))
		for _, reason := range pkg.Reasons {
			fmt.Printf("    reason: %s\n", reason)
		}
	}
	return 0
}

func resolveEscalation(args []string) int {
	fs := flag.NewFlagSet("escalations resolve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file (YAML)")
	status := fs.String("status", "approved", "approved|rejected|revised")
	reviewer := fs.String("reviewer", "", "reviewer of record (required)")
	notes := fs.String("notes", "", "resolution notes")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "escalations resolve: expected a package id")
		return 2
	}
	id := fs.Arg(0)
	if *reviewer == "" {
		fmt.Fprintln(os.Stderr, "escalations resolve: --reviewer is required")
		return 2
	}
	resolution, ok := parseStatus(*status)
	if !ok || !resolution.Terminal() {
		fmt.Fprintf(os.Stderr, "escalations resolve: status must be approved, rejected, or revised\n")
		return 2
	}

	sys, logger, code := buildDesk(*configPath)
	if code != 0 {
		return code
	}
	defer func() { _ = sys.Close() }()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pkg, err := sys.Escalations.Resolve(ctx, id, resolution, *reviewer, *notes)
	switch {
	case errors.Is(err, escalation.ErrNotFound):
		fmt.Fprintf(os.Stderr, "escalations resolve: no package with id %s\n", id)
		return 2
	case errors.Is(err, escalation.ErrAlreadyResolved):
		fmt.Fprintf(os.Stderr, "escalations resolve: package %s is already resolved\n", id)
		return 2
	case err != nil:
		logger.Error("resolve escalation", zap.Error(err))
		return 2
	}

	fmt.Printf("resolved %s: %s by %s\n", pkg.ID, pkg.Status, pkg.Reviewer)
	return 0
}

// buildDesk wires the system for queue commands. The escalation queue only
// outlives a process when the database is enabled, so require it here.
func buildDesk(configPath string) (*undertow.System, *zap.Logger, int) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "escalations: %v\n", err)
		return nil, nil, 2
	}
	logger := initLogger(cfg.Log)

	if !cfg.Database.Enabled {
		fmt.Fprintln(os.Stderr, "escalations: the review queue requires database.enabled in configuration")
		return nil, nil, 2
	}

	sys, err := undertow.Build(cfg, logger)
	if err != nil {
		logger.Error("build system", zap.Error(err))
		return nil, nil, 2
	}
	return sys, logger, 0
}

func parseStatus(s string) (escalation.Status, bool) {
	switch s {
	case "pending":
		return escalation.StatusPending, true
	case "in_review":
		return escalation.StatusInReview, true
	case "approved":
		return escalation.StatusApproved, true
	case "rejected":
		return escalation.StatusRejected, true
	case "revised":
		return escalation.StatusRevised, true
	case "all":
		return escalation.Status(""), true
	default:
		return escalation.Status(""), false
	}
}
