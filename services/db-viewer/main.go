package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"garden-bridge/internal/config"
	"garden-bridge/internal/livecache"
	"garden-bridge/internal/mqttlog"
	"garden-bridge/internal/report"
	"garden-bridge/internal/store"
)

func main() {
	config.LoadDotEnv()
	cfg := LoadConfig()

	// Diagnostics go to stderr so reports can be piped.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: mqttlog.ParseLevel(cfg.LogLevel)}))

	// The viewer always exits 0; failures are printed.
	run(context.Background(), cfg, os.Args[1:], os.Stdin, os.Stdout, logger)
}

func run(ctx context.Context, cfg Config, args []string, in io.Reader, out io.Writer, logger *slog.Logger) {
	view, limit, err := report.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	// Reading a missing SQLite file would silently create an empty one.
	if cfg.Store.Driver == "" || cfg.Store.Driver == store.DriverSQLite {
		if _, err := os.Stat(cfg.Store.Path); err != nil {
			fmt.Fprintf(out, "❌ Cannot open database: %v\n", err)
			fmt.Fprintf(out, "Make sure '%s' exists. Start the data-logger first!\n", cfg.Store.Path)
			return
		}
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(out, "❌ Cannot open database: %v\n", err)
		return
	}
	defer st.Close()

	var live *livecache.Cache
	if view == report.ViewLive {
		live, err = livecache.Connect(ctx, cfg.ValkeyAddr)
		if err != nil {
			logger.Warn("live cache unavailable", "addr", cfg.ValkeyAddr, "error", err)
		}
		defer live.Close()
	}

	viewer := report.NewViewer(st, live, out)
	if view == "" {
		viewer.Menu(ctx, in)
		return
	}
	if err := viewer.Run(ctx, view, limit); err != nil {
		fmt.Fprintf(out, "❌ Error: %v\n", err)
	}
}
