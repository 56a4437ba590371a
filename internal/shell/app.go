package shell

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"media-organizer/internal/config"
	"media-organizer/internal/sidecar"
	"media-organizer/pkg/logging"
	"media-organizer/pkg/shutdown"
)

// Default grace period before the backend is killed on exit.
const stopGrace = 5 * time.Second

// How long the backend gets to answer its first health check.
const healthTimeout = 15 * time.Second

// Interval between backend CPU/RSS samples.
const monitorInterval = 30 * time.Second

// Application is the desktop shell. It owns the window, the lifecycle
// context, and, in release mode, the backend sidecar process.
type Application struct {
	cfg     *config.Config
	fyneApp fyne.App
	window  fyne.Window
	ctx     context.Context
	cancel  context.CancelFunc

	log        *logging.Logger
	supervisor *sidecar.Supervisor
	shutdown   *shutdown.Manager

	status *widget.Label
}

// New builds the shell and runs the configured startup strategy.
// Any startup failure is returned before the GUI loop ever starts, so
// the process can exit non-zero instead of presenting a dead window.
func New(fyneApp fyne.App, window fyne.Window, cfg *config.Config, ctx context.Context, cancel context.CancelFunc) (*Application, error) {
	app := &Application{
		cfg:      cfg,
		fyneApp:  fyneApp,
		window:   window,
		ctx:      ctx,
		cancel:   cancel,
		shutdown: shutdown.New(10 * time.Second),
		status:   widget.NewLabel("Starting..."),
	}

	switch cfg.Mode {
	case config.ModeDebug:
		if err := app.configureLogging(); err != nil {
			return nil, fmt.Errorf("debug logger attach failed: %w", err)
		}
	case config.ModeRelease:
		if err := app.configureLogging(); err != nil {
			return nil, fmt.Errorf("logger attach failed: %w", err)
		}
		if err := app.launchBackend(); err != nil {
			return nil, fmt.Errorf("backend launch failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported mode %q", cfg.Mode)
	}

	app.setupWindow()
	app.log.Info("Shell initialized", map[string]interface{}{
		"mode":    string(cfg.Mode),
		"backend": cfg.BackendURL(),
	})
	return app, nil
}

// configureLogging attaches the component logger. Debug mode
// guarantees at least informational verbosity; release mode stays at
// the configured level.
func (a *Application) configureLogging() error {
	level := logging.ParseLevel(a.cfg.LogLevel)
	if a.cfg.Mode == config.ModeDebug && level > logging.INFO {
		level = logging.INFO
	}

	log, err := logging.NewComponentLogger(a.cfg.LogDir(), "shell", level, false)
	if err != nil {
		return err
	}
	a.log = log
	a.shutdown.Register(shutdown.CloseResource(log, "shell logger"))
	return nil
}

// launchBackend resolves and spawns the bundled backend, then waits
// for it to answer health checks. The supervisor enforces the
// one-backend-per-run rule; registration here guarantees the child is
// stopped when the shell exits.
func (a *Application) launchBackend() error {
	a.supervisor = sidecar.NewSupervisor(a.log)

	path, err := sidecar.Resolve("")
	if err != nil {
		return err
	}

	if err := a.supervisor.Start(a.ctx, path, "serve"); err != nil {
		return err
	}
	a.shutdown.Register(func(ctx context.Context) error {
		return a.supervisor.Stop(stopGrace)
	})

	if err := a.supervisor.WaitHealthy(a.ctx, a.cfg.BackendURL(), healthTimeout); err != nil {
		// Don't leave the half-started child behind
		a.supervisor.Stop(stopGrace)
		return err
	}

	if mon, err := sidecar.NewMonitor(a.supervisor.PID(), a.log); err != nil {
		a.log.Warn("Backend resource monitor unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		go mon.Watch(a.ctx, monitorInterval)
	}

	// Surface unexpected backend death in the UI
	go func() {
		select {
		case <-a.supervisor.Done():
			if a.supervisor.ExitReason().IsSuccess() {
				return
			}
			a.log.Error("Backend exited unexpectedly", map[string]interface{}{
				"reason": string(a.supervisor.ExitReason()),
			})
			fyne.Do(func() {
				a.status.SetText("Backend stopped unexpectedly")
			})
		case <-a.ctx.Done():
		}
	}()
	return nil
}

func (a *Application) setupWindow() {
	a.window.Resize(fyne.NewSize(1100, 760))
	a.window.CenterOnScreen()
	a.window.SetMaster()

	switch a.cfg.Mode {
	case config.ModeDebug:
		a.status.SetText("Debug mode: no backend process, file logging attached")
	case config.ModeRelease:
		a.status.SetText(fmt.Sprintf("Backend running (PID %d) at %s",
			a.supervisor.PID(), a.cfg.BackendURL()))
	}

	header := widget.NewLabelWithStyle("Media Organizer",
		fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	a.window.SetContent(container.NewVBox(
		header,
		widget.NewSeparator(),
		a.status,
	))

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.window.Close()
	})
}

// cleanup runs registered shutdown hooks in LIFO order: the backend
// dies before the logger closes.
func (a *Application) cleanup() {
	a.log.Info("Shell shutting down")
	a.shutdown.Trigger()
	a.shutdown.Shutdown()
	a.cancel()
}

// Run blocks in the GUI event loop until the window closes.
func (a *Application) Run() {
	a.window.ShowAndRun()
}

// Supervisor exposes the sidecar owner, nil in debug mode.
func (a *Application) Supervisor() *sidecar.Supervisor {
	return a.supervisor
}
