package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	fyneapp "fyne.io/fyne/v2/app"

	"media-organizer/internal/config"
	"media-organizer/internal/shell"
)

func main() {
	cfg, err := config.Load(os.Getenv("MEDIA_ORGANIZER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "media-organizer: %v\n", err)
		os.Exit(1)
	}

	fyneApp := fyneapp.NewWithID("io.media-organizer.shell")
	window := fyneApp.NewWindow("Media Organizer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := shell.New(fyneApp, window, cfg, ctx, cancel)
	if err != nil {
		// Startup failures abort before the GUI loop. A window with a
		// dead backend behind it helps nobody.
		fmt.Fprintf(os.Stderr, "media-organizer: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
			fyneApp.Quit()
		case <-ctx.Done():
		}
	}()

	application.Run()
}
