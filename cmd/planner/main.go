package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/cardplanner/config"
	"github.com/alejandrodnm/cardplanner/internal/adapters/notify"
	"github.com/alejandrodnm/cardplanner/internal/adapters/snapshot"
	"github.com/alejandrodnm/cardplanner/internal/api"
	"github.com/alejandrodnm/cardplanner/internal/application/planner"
	"github.com/alejandrodnm/cardplanner/internal/metrics"
	"github.com/alejandrodnm/cardplanner/internal/seasonality"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	snapshotPath := flag.String("snapshot", "", "run snapshot (YAML or JSON) to plan once")
	dryRun := flag.Bool("dry-run", false, "plan without recording the run")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	chartPath := flag.String("chart", "", "write an HTML spend chart to this path")
	jsonPath := flag.String("json", "", "write the plan as JSON to this path")
	report := flag.String("report", "", "print the recorded run with this id and exit")
	serve := flag.Bool("serve", false, "serve the HTTP API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("cardplanner starting",
		"config", *configPath,
		"snapshot", *snapshotPath,
		"dry_run", *dryRun,
		"serve", *serve,
		"storage", cfg.Storage.Driver,
		"sources", len(cfg.Marketplace.Sources),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	console := notify.NewConsole(*table)

	collab, err := wire(ctx, cfg, m, *dryRun && !*serve)
	if err != nil {
		slog.Error("failed to set up", "err", err)
		os.Exit(1)
	}
	defer collab.Close()

	notifiers := []planner.Option{}
	if !*serve {
		notifiers = append(notifiers, planner.WithNotifiers(console))
	}
	if *chartPath != "" {
		notifiers = append(notifiers, planner.WithNotifiers(notify.NewChartWriter(*chartPath)))
	}

	p := planner.New(planner.Config{
		Optimizer:     cfg.Optimizer,
		IPS:           cfg.IPS,
		DryRun:        *dryRun,
		DefaultBudget: cfg.Budget,
	}, append(collab.Options(m), notifiers...)...)

	switch {
	case *report != "":
		err = printReport(ctx, p, console, *report)
	case *serve:
		err = runServer(ctx, cfg, p, m, collab.seasons)
	case *snapshotPath != "":
		err = runOnce(ctx, p, console, *snapshotPath, *jsonPath, *table)
	default:
		err = errors.New("nothing to do: pass -snapshot, -report or -serve")
	}
	if err != nil {
		slog.Error("cardplanner exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("cardplanner stopped cleanly")
}

func runOnce(ctx context.Context, p *planner.Planner, console *notify.Console, path, jsonPath string, table bool) error {
	snap, err := snapshot.LoadFile(path)
	if err != nil {
		return err
	}
	res, err := p.Plan(ctx, snap)
	if err != nil {
		return err
	}
	if table && len(res.HotList) > 0 {
		fmt.Println("\n=== HOT LIST ===")
		console.PrintHotList(res.HotList)
	}
	if jsonPath != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			return fmt.Errorf("write %q: %w", jsonPath, err)
		}
		slog.Info("plan written", "path", jsonPath)
	}
	return nil
}

func printReport(ctx context.Context, p *planner.Planner, console *notify.Console, runID string) error {
	rep, err := p.Run(ctx, runID)
	if err != nil {
		return err
	}
	console.PrintRunReport(rep)
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, p *planner.Planner, m *metrics.Metrics, seasons *seasonality.Service) error {
	if cfg.Seasonality.Watch && cfg.Seasonality.Path != "" {
		go func() {
			if err := seasons.Watch(ctx); err != nil {
				slog.Warn("seasonality watcher stopped", "err", err)
			}
		}()
	}

	srv := api.NewServer(cfg.Server.Addr, api.NewRouter(p, m))
	errCh := make(chan error, 1)
	go func() {
		slog.Info("cardplanner listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("shutting down cardplanner...")
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
