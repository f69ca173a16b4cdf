package main

// Package main is the entry point for the fraudlens client.
//
// Responsibilities:
//   - Parse the subcommand (watch, resume, history) and its flags
//   - Load and validate configuration from YAML and environment variables
//   - Assemble the client: audit trail, journal, snapshot loader, stream
//   - Install signal handling so Ctrl+C tears the stream down cleanly
//
// Subcommands:
//   - watch:   attach to the live investigation stream for a user
//   - resume:  reconstruct the latest persisted run without replaying it
//   - history: list journaled runs

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fraudlens/fraudlens-client/internal/app"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	case "resume":
		err = runResume(ctx, os.Args[2:])
	case "history":
		err = runHistory(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	userID := fs.String("user", "", "user id to investigate (required)")
	investigationID := fs.String("investigation", "", "attach to a specific run")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	a, err := app.New(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Watch(ctx, *userID, *investigationID)
}

func runResume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	userID := fs.String("user", "", "user id to resume (required)")
	follow := fs.Bool("follow", false, "watch a live run when no snapshot exists")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	a, err := app.New(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Resume(ctx, *userID, *follow)
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	userID := fs.String("user", "", "filter runs by user id")
	limit := fs.Int("limit", 20, "maximum runs to list")
	fs.Parse(args)

	a, err := app.New(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.History(ctx, *userID, *limit)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: fraudlens <command> [flags]

Commands:
  watch    -user <id> [-investigation <id>]  attach to the live stream
  resume   -user <id> [-follow]              reconstruct the latest run
  history  [-user <id>] [-limit <n>]         list journaled runs

Flags common to all commands:
  -config <path>   config file (default /etc/fraudlens/config.yaml)
`)
}
