package shell

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-organizer/internal/config"
	"media-organizer/pkg/shutdown"
)

func testConfig(t *testing.T, mode config.Mode) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Mode:         mode,
		LogLevel:     "error",
		Host:         "127.0.0.1",
		Port:         18742,
		DataDir:      dir,
		DatabasePath: filepath.Join(dir, "media_organizer.db"),
	}
}

func TestDebugModeSkipsBackend(t *testing.T) {
	fyneApp := test.NewApp()
	window := fyneApp.NewWindow("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := New(fyneApp, window, testConfig(t, config.ModeDebug), ctx, cancel)
	require.NoError(t, err)
	assert.Nil(t, app.Supervisor())
}

func TestReleaseModeFailsWithoutBackend(t *testing.T) {
	fyneApp := test.NewApp()
	window := fyneApp.NewWindow("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No backend binary sits next to the test executable, so startup
	// must fail before the GUI loop instead of opening a dead window.
	_, err := New(fyneApp, window, testConfig(t, config.ModeRelease), ctx, cancel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend launch failed")
}

func TestUnknownModeIsRejected(t *testing.T) {
	fyneApp := test.NewApp()
	window := fyneApp.NewWindow("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := New(fyneApp, window, testConfig(t, config.Mode("hybrid")), ctx, cancel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}

func TestDebugModeRaisesLogVerbosity(t *testing.T) {
	cfg := testConfig(t, config.ModeDebug)
	cfg.LogLevel = "error"
	a := &Application{cfg: cfg, shutdown: shutdown.New(time.Second)}

	require.NoError(t, a.configureLogging())

	var buf bytes.Buffer
	a.log.SetOutput(&buf)
	a.log.Info("catalog scan progress")
	assert.Contains(t, buf.String(), "catalog scan progress")
}

func TestReleaseModeKeepsConfiguredVerbosity(t *testing.T) {
	cfg := testConfig(t, config.ModeRelease)
	cfg.LogLevel = "error"
	a := &Application{cfg: cfg, shutdown: shutdown.New(time.Second)}

	require.NoError(t, a.configureLogging())

	var buf bytes.Buffer
	a.log.SetOutput(&buf)
	a.log.Info("catalog scan progress")
	assert.Empty(t, buf.String())
}

func TestCloseInterceptShutsDownCleanly(t *testing.T) {
	fyneApp := test.NewApp()
	window := fyneApp.NewWindow("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := New(fyneApp, window, testConfig(t, config.ModeDebug), ctx, cancel)
	require.NoError(t, err)

	app.cleanup()
	select {
	case <-ctx.Done():
	default:
		t.Fatal("cleanup did not cancel the lifecycle context")
	}
}
