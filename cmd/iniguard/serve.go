package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/loykin/iniguard/internal/config"
	"github.com/loykin/iniguard/internal/detector"
	"github.com/loykin/iniguard/internal/history"
	"github.com/loykin/iniguard/internal/history/factory"
	"github.com/loykin/iniguard/internal/logger"
	"github.com/loykin/iniguard/internal/manager"
	"github.com/loykin/iniguard/internal/metrics"
	"github.com/loykin/iniguard/internal/notify"
	"github.com/loykin/iniguard/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

// runtime is a manager wired to the configured logging, history and
// notification sinks.
type runtime struct {
	log     *slog.Logger
	mgr     *manager.Manager
	disp    *notify.Dispatcher
	closers []io.Closer
}

// Close stops the manager, drains notifications, then releases sinks in
// reverse order of creation.
func (r *runtime) Close() {
	_ = r.mgr.Close()
	r.disp.Wait()
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i].Close()
	}
}

func (c *command) buildRuntime(cfg *config.Config) (*runtime, error) {
	log, logCloser, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	rt := &runtime{log: log, closers: []io.Closer{logCloser}}
	fail := func(err error) (*runtime, error) {
		for i := len(rt.closers) - 1; i >= 0; i-- {
			_ = rt.closers[i].Close()
		}
		return nil, err
	}

	var sink history.Sink
	if cfg.History.Enabled {
		multi, err := factory.NewMulti(cfg.History.AllDSNs())
		if err != nil {
			return fail(err)
		}
		if len(multi) > 0 {
			sink = multi
			rt.closers = append(rt.closers, multi)
			log.Info("history enabled", "sinks", len(multi))
		}
	}

	var notifiers []notify.Notifier
	if cfg.Notify.Log {
		notifiers = append(notifiers, notify.Log{Logger: log})
	}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.Webhook{URL: cfg.Notify.WebhookURL})
	}
	if cfg.Notify.MQTTBroker != "" {
		mq, err := notify.NewMQTT(notify.MQTTConfig{
			Broker:   cfg.Notify.MQTTBroker,
			Topic:    cfg.Notify.MQTTTopic,
			ClientID: cfg.Notify.MQTTClientID,
		})
		if err != nil {
			// the broker may come up later; the guard works without it
			log.Warn("mqtt notifier disabled", "broker", cfg.Notify.MQTTBroker, "error", err)
		} else {
			notifiers = append(notifiers, mq)
			rt.closers = append(rt.closers, mq)
		}
	}
	rt.disp = notify.NewDispatcher(log, cfg.Notify.Timeout, notifiers...)

	mc := c.managerConfig(cfg, log)
	mc.History = sink
	mc.Notifier = rt.disp
	rt.mgr = manager.New(mc)
	return rt, nil
}

// runServe starts the HTTP API and blocks until ctx is cancelled.
func (c *command) runServe(ctx context.Context, flags ServeFlags) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if flags.Daemonize {
		if !isDaemonSupported() {
			return errors.New("daemonize is not supported on this platform")
		}
		logfile := flags.LogFile
		if logfile == "" && cfg.Log.File != "" {
			logfile = cfg.Log.File + ".out"
		}
		return daemonize(logfile)
	}

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	rt, err := c.buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.Server.PIDFile != "" {
		if err := detector.WritePIDFile(cfg.Server.PIDFile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = removePidFile(cfg.Server.PIDFile) }()
	}

	router := server.NewRouter(rt.mgr, cfg.Server.BasePath)
	if cfg.Metrics.Enabled {
		router = router.WithMetrics()
	}
	srv := server.NewServer(cfg.Server.Listen, router)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.Error("metrics server error", "error", err)
			}
		}()
	}

	rt.log.Info("iniguard server started", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath, "app_dir", cfg.AppDir)
	_, _ = fmt.Fprintf(c.stdout(), "Starting iniguard HTTP server on %s%s\n", cfg.Server.Listen, cfg.Server.BasePath)

	<-ctx.Done()
	rt.log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(sctx)
	}
	return srv.Shutdown(sctx)
}
