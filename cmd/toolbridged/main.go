// Command toolbridged serves the toolbridge control API on localhost.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcp-scooter/toolbridge/internal/api"
	"github.com/mcp-scooter/toolbridge/internal/app"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type daemon struct {
	svc     *app.Services
	control *api.ControlServer
}

func setup() (*daemon, error) {
	dir, err := app.Dir()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := app.New(dir, os.Getenv("TOOLBRIDGE_CONFIG"), app.Options{Registerer: reg})
	if err != nil {
		return nil, err
	}
	detection.SetDefault(svc.Registry)

	d := &daemon{svc: svc}
	d.control = api.NewControlServer(api.Deps{
		Registry:   svc.Registry,
		Gateway:    svc.Gateway,
		Manager:    svc.Manager,
		Scripts:    svc.Scripts,
		Fixer:      svc.Fixer,
		Store:      svc.Store,
		Locator:    integration.SystemLocator(),
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		OnSettings: svc.Apply,
	}, svc.Settings())
	return d, nil
}

// reload applies settings changed on disk.
func (d *daemon) reload(settings profile.Settings) {
	if res := profile.Validate(settings, detection.BuiltinNames()...); !res.Valid {
		logger.Warnf("Ignoring invalid settings change: %v", res.Err())
		return
	}
	d.svc.Apply(settings)
	d.control.SetSettings(settings)
}

func run(ctx context.Context, serve bool) error {
	logger.Infof("toolbridged - initializing...")
	d, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()
	defer d.svc.Manager.Shutdown()

	// GUI launches inherit a truncated PATH; repair it before the first
	// detection needs it.
	d.svc.Fixer.EnsureAsync(ctx)

	if !serve {
		return nil
	}

	go func() {
		if err := profile.NewWatcher(d.svc.Store, d.reload).Run(ctx); err != nil {
			logger.Warnf("Settings watcher stopped: %v", err)
		}
	}()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(d.svc.Settings().ControlPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           d.control,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Infof("Starting control server on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
