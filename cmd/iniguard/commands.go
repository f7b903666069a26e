package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/loykin/iniguard/internal/config"
	"github.com/loykin/iniguard/internal/detector"
	"github.com/loykin/iniguard/internal/discovery"
	"github.com/loykin/iniguard/internal/logger"
	"github.com/loykin/iniguard/internal/manager"
	"github.com/loykin/iniguard/pkg/client"
)

type command struct {
	global *GlobalFlags
	out    io.Writer
	// newDetector overrides the process probe, nil uses the process table.
	newDetector func(exePath string) (detector.Detector, error)
}

func (c *command) stdout() io.Writer {
	if c.out == nil {
		return os.Stdout
	}
	return c.out
}

// load reads the config file named by --config, or defaults plus env.
func (c *command) load() (*config.Config, error) {
	path := ""
	if c.global != nil {
		path = c.global.ConfigPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	resolveRelative(cfg)
	return cfg, nil
}

func (c *command) managerConfig(cfg *config.Config, log *slog.Logger) manager.Config {
	return manager.Config{
		Paths:               manager.NewPaths(cfg.AppDir),
		ExePath:             cfg.Monitor.ExePath,
		GameSearchPaths:     cfg.Monitor.SearchPaths,
		Interval:            cfg.Monitor.Interval,
		RestoreDelaySeconds: cfg.Monitor.RestoreDelaySeconds,
		Logger:              log,
		NewDetector:         c.newDetector,
	}
}

// open builds a manager for a single CLI operation. History and notify
// sinks belong to serve and watch.
func (c *command) open() (*manager.Manager, *config.Config, func(), error) {
	cfg, err := c.load()
	if err != nil {
		return nil, nil, nil, err
	}
	log, closer, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	mgr := manager.New(c.managerConfig(cfg, log))
	return mgr, cfg, func() {
		_ = mgr.Close()
		_ = closer.Close()
	}, nil
}

func (c *command) remote(cfg *config.Config, f RemoteFlags) *client.Client {
	url := f.APIUrl
	if url == "" {
		url = apiURL(cfg)
	}
	return client.New(client.Config{BaseURL: url, Timeout: f.APITimeout})
}

// Search looks for config files and selects the first match.
func (c *command) Search(ctx context.Context, f SearchFlags) error {
	mgr, cfg, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()

	suffix := f.Suffix
	if suffix == "" {
		suffix = cfg.Search.Suffix
	}
	resolved, err := config.ResolveSuffix(suffix)
	if err != nil {
		return err
	}
	roots := f.Roots
	if len(roots) == 0 {
		roots = cfg.Search.Paths
	}
	res, err := mgr.Search(ctx, roots, discovery.Options{
		Suffix:     resolved,
		First:      f.First || cfg.Search.First,
		Global:     f.Global || cfg.Search.Global,
		NoFallback: f.NoFallback,
	})
	if err != nil {
		return err
	}
	printJSON(c.stdout(), res)
	if len(res.Paths) == 0 {
		return fmt.Errorf("no %s found", resolved)
	}
	return nil
}

func (c *command) Select(ctx context.Context, path string) error {
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	if err := mgr.Select(ctx, path); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.stdout(), "Selected %s\n", path)
	return nil
}

func (c *command) Backup(ctx context.Context, f BackupFlags) error {
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	dst, err := mgr.Backup(ctx, f.ConfigPath)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.stdout(), "Backup written: %s\n", dst)
	return nil
}

// Restore copies the backup back immediately, through the daemon when
// --api-url is given.
func (c *command) Restore(ctx context.Context, f RestoreFlags) error {
	if f.APIUrl != "" {
		res, err := client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout}).Restore(ctx)
		if err != nil {
			return err
		}
		printJSON(c.stdout(), res)
		return nil
	}
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	res, err := mgr.Restore(ctx)
	if err != nil {
		return err
	}
	printJSON(c.stdout(), res)
	return nil
}

// Status prefers a running daemon and falls back to local state.
func (c *command) Status(ctx context.Context, f StatusFlags) error {
	if !f.Local {
		cfg, err := c.load()
		if err != nil {
			return err
		}
		api := c.remote(cfg, f.RemoteFlags)
		if f.APIUrl != "" || api.IsReachable(ctx) {
			st, err := api.Status(ctx)
			if err != nil {
				return err
			}
			printJSON(c.stdout(), st)
			return nil
		}
	}
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	st, err := mgr.Status(ctx)
	if err != nil {
		return err
	}
	printJSON(c.stdout(), st)
	return nil
}

func (c *command) PresetList() error {
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	list, err := mgr.Presets()
	if err != nil {
		return err
	}
	printJSON(c.stdout(), list)
	return nil
}

func (c *command) PresetApply(ctx context.Context, f PresetFlags) error {
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	p, err := mgr.ApplyPreset(ctx, f.Name)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.stdout(), "Preset '%s' applied\n", p.Name)
	return nil
}

func (c *command) Patch(ctx context.Context, f PatchFlags) error {
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	res, err := mgr.Patch(ctx, manager.PatchAction(f.Action))
	if err != nil {
		return err
	}
	printJSON(c.stdout(), res)
	return nil
}

// Delay prints the restore delay, updating it first when f.Set is true.
func (c *command) Delay(ctx context.Context, f DelayFlags) error {
	mgr, _, done, err := c.open()
	if err != nil {
		return err
	}
	defer done()
	if f.Set {
		n, err := mgr.SetRestoreDelay(ctx, f.Seconds)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.stdout(), "Restore delay: %ds\n", n)
		return nil
	}
	s, err := mgr.Settings(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.stdout(), "Restore delay: %ds\n", s.RestoreDelaySeconds)
	return nil
}

type probeResult struct {
	Probe   string          `json:"probe"`
	Running bool            `json:"running"`
	Match   *detector.Match `json:"match,omitempty"`
	Skipped string          `json:"skipped,omitempty"`
}

// Probe checks once whether the game, or the process in a pidfile, runs.
func (c *command) Probe(ctx context.Context, f ProbeFlags) error {
	if f.PIDFile != "" {
		d := detector.PIDFileDetector{PIDFile: f.PIDFile}
		alive, err := d.Alive()
		if err != nil {
			return err
		}
		printJSON(c.stdout(), probeResult{Probe: d.Describe(), Running: alive})
		return nil
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}
	exe := f.ExePath
	if exe == "" {
		exe = cfg.Monitor.ExePath
	}
	if exe == "" {
		roots := cfg.Monitor.SearchPaths
		if len(roots) == 0 {
			roots = discovery.DefaultRoots
		}
		p, ok := discovery.FindExecutable(ctx, roots)
		if !ok {
			return manager.ErrExecutableNotFound
		}
		exe = p
	}
	if c.newDetector != nil {
		d, err := c.newDetector(exe)
		if err != nil {
			return err
		}
		alive, err := d.Alive()
		if err != nil {
			return err
		}
		printJSON(c.stdout(), probeResult{Probe: d.Describe(), Running: alive})
		return nil
	}
	d, err := detector.NewProcessDetector(exe)
	if err != nil {
		return err
	}
	res, err := d.Scan()
	if err != nil {
		return err
	}
	out := probeResult{Probe: d.Describe(), Running: res.Match != nil, Match: res.Match}
	if res.Skipped != nil {
		out.Skipped = res.Skipped.Error()
	}
	printJSON(c.stdout(), out)
	return nil
}

// Watch runs a monitoring session in the foreground until ctx ends or the
// poll loop fails.
func (c *command) Watch(ctx context.Context, f WatchFlags) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if f.Interval > 0 {
		cfg.Monitor.Interval = f.Interval
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	rt, err := c.buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	target, ended, err := rt.mgr.StartSession(ctx, f.ExePath)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.stdout(), "Watching %s (Ctrl+C to stop)\n", target)
	select {
	case <-ctx.Done():
		return rt.mgr.StopMonitor(context.Background())
	case err := <-ended:
		if err != nil {
			return fmt.Errorf("watch %s: %w", target, err)
		}
		return nil
	}
}

// Monitor starts or stops monitoring on a running daemon.
func (c *command) Monitor(ctx context.Context, action string, f MonitorFlags) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	api := c.remote(cfg, f.RemoteFlags)
	if !api.IsReachable(ctx) {
		return errors.New("daemon not reachable - please start it first with 'iniguard serve'")
	}
	switch action {
	case "start":
		target, err := api.StartMonitor(ctx, f.ExePath)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.stdout(), "Monitoring %s\n", target)
	case "stop":
		if err := api.StopMonitor(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(c.stdout(), "Monitoring stopped")
	default:
		return fmt.Errorf("unknown monitor action %q (supported: start, stop)", action)
	}
	return nil
}
