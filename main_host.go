//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"tinyscope/app"
	"tinyscope/hal"
	"tinyscope/internal/buildinfo"
	"tinyscope/internal/config"
	"tinyscope/scope/sched"
	"tinyscope/services/record"
	"tinyscope/services/stream"
	"tinyscope/tasks/display"
)

func main() {
	var (
		hcfg       hal.HeadlessConfig
		configPath string
		scale      int
		stdin      bool
		listen     string
		recordPath string
		version    bool
	)
	flag.BoolVar(&hcfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&hcfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&hcfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.IntVar(&hcfg.StepBudget, "budget", 16, "App steps per headless tick.")
	flag.StringVar(&configPath, "config", "", "YAML configuration file.")
	flag.IntVar(&scale, "scale", 2, "Window scale factor.")
	flag.BoolVar(&stdin, "stdin", false, "Use stdin/stdout as the serial console.")
	flag.StringVar(&listen, "listen", "", "Serve the HTTP API and frame stream on this address.")
	flag.StringVar(&recordPath, "record", "", "Record drawn frames to this Parquet file.")
	flag.BoolVar(&version, "version", false, "Print the build and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.String())
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if stdin {
		cfg.Stdin = true
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if recordPath != "" {
		cfg.Record.Path = recordPath
	}

	if err := run(cfg, hcfg, scale); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config, hcfg hal.HeadlessConfig, scale int) error {
	log := hal.StderrLogger()
	initial, err := cfg.Settings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	acfg := app.Config{
		Settings:    initial,
		Sched:       sched.Config{ColumnsPerStep: cfg.Pipeline.ColumnsPerStep},
		Display:     display.Config{RefreshTicks: cfg.Pipeline.RefreshTicks},
		HaltOnPanic: hcfg.Enabled,
	}

	var hub *stream.Hub
	if cfg.Listen != "" {
		hub = stream.NewHub()
		acfg.Sinks = append(acfg.Sinks, hub)
	}
	if cfg.Record.Path != "" {
		f, err := os.Create(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		defer f.Close()
		rec := record.New(f, record.Options{Every: cfg.Record.Every, Config: cfg})
		acfg.Sinks = append(acfg.Sinks, rec)
		log.WriteLineString(fmt.Sprintf("record: session %s -> %s", rec.Session(), cfg.Record.Path))
		g.Go(func() error { return rec.Run(ctx) })
	}

	// The HTTP server needs the system's store, which exists once the
	// runner has built the app. Only the first system is served.
	ready := make(chan *app.System, 1)
	factory := app.Factory(acfg, offer(ready))

	if cfg.Listen != "" {
		g.Go(func() error {
			var sys *app.System
			select {
			case sys = <-ready:
			case <-ctx.Done():
				return nil
			}
			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           stream.NewServer(sys.Store(), hub, sys.NotifySettings, log).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Shutdown(shutdown)
			}()
			log.WriteLineString("stream: listening on " + cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("stream: %w", err)
			}
			return nil
		})
	}

	if hcfg.Enabled {
		g.Go(func() error {
			defer stop()
			return hal.RunHeadless(ctx, cfg.Host(), factory, hcfg)
		})
		return g.Wait()
	}

	// The window must own the main goroutine.
	werr := hal.RunWindow(cfg.Host(), factory, scale)
	stop()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return werr
}

// offer returns a hook that hands the first system to ready and drops any
// later one, so a rebuilt app never blocks its runner.
func offer(ready chan<- *app.System) func(*app.System) {
	return func(s *app.System) {
		select {
		case ready <- s:
		default:
		}
	}
}
