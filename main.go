// Command listingexport converts a real-estate listing XML feed into a CSV file.
//
// Usage:
//
//	listingexport [flags] [source] [output]      # run the export
//	listingexport [flags] history [job] [limit]  # show recent runs
//	listingexport [flags] mcp                    # serve MCP tools on stdio
//
// The source is a local path, a file:// URL or an http(s) URL. Without a
// -config file the built-in listing feed configuration is used.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"listingexport/internal/app"
)

var version = "dev"

func main() {
	var opts app.Options
	flag.StringVar(&opts.ConfigPath, "config", "", "path to a YAML job config (default: built-in listing feed)")
	flag.StringVar(&opts.Schedule, "schedule", "", "cron expression; keep running and export on every tick")
	flag.BoolVar(&opts.Watch, "watch", false, "keep running and export whenever the local source file changes")
	flag.StringVar(&opts.History, "history", "", "SQLite file recording run history")
	flag.BoolVar(&opts.Verify, "verify", false, "read the CSV back after writing and compare it with the table")
	flag.DurationVar(&opts.Timeout, "timeout", 0, "limit for a single run, download included (default 5m)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 && (args[0] == "history" || args[0] == "mcp") {
		cmd, args = args[0], args[1:]
	}
	if cmd == "run" {
		if len(args) > 2 {
			usage()
			os.Exit(2)
		}
		if len(args) > 0 {
			opts.Source = args[0]
		}
		if len(args) > 1 {
			opts.Output = args[1]
		}
	}

	cfg, err := app.LoadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listingexport: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("listingexport: setup failed", "err", err)
		os.Exit(1)
	}

	switch cmd {
	case "history":
		job, limit := "", 20
		if len(args) > 0 {
			job = args[0]
		}
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				limit = n
			}
		}
		err = a.History(os.Stdout, job, limit)
	case "mcp":
		err = a.ServeMCP(ctx, version)
	default:
		err = a.Run(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a.Shutdown(shutdownCtx)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("listingexport: fatal", "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage:
  listingexport [flags] [source] [output]
  listingexport [flags] history [job] [limit]
  listingexport [flags] mcp

flags:
`)
	flag.PrintDefaults()
}
