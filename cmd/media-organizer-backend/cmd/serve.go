package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"media-organizer/internal/backend/api"
	"media-organizer/internal/backend/media"
	"media-organizer/internal/backend/metrics"
	"media-organizer/internal/backend/ops"
	"media-organizer/internal/backend/providers"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
	"media-organizer/pkg/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend HTTP API",
	Long:  `Start the backend server. The desktop shell spawns this command in release mode; it can also be run standalone during development.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logging.NewComponentLogger(cfg.LogDir(), "backend",
		logging.ParseLevel(cfg.LogLevel), false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	dbPath, err := cfg.EnsureDataDir()
	if err != nil {
		return err
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	m := metrics.New()
	cache := providers.NewResponseCache(st)

	var books *providers.GoogleBooksClient
	var audnexus *providers.AudnexusClient
	if cfg.EnableProviders {
		books = providers.NewGoogleBooksClient(cfg.GoogleBooksAPIKey, cache, log)
		audnexus = providers.NewAudnexusClient(cfg.AudnexusBaseURL, cache, log)
	}
	var gemini *providers.GeminiClient
	if cfg.EnableLLM && cfg.GeminiAPIKey != "" {
		gemini = providers.NewGeminiClient(cfg.GeminiAPIKey, cache, log)
	}

	detector := media.NewDetector(cfg.AudiobookExtensions, cfg.EbookExtensions,
		cfg.ComicExtensions, cfg.AudiobookFolderPattern)
	scanner := media.NewScanner(detector, media.NoopTagReader{}, log)

	server := api.NewServer(api.Deps{
		Store:           st,
		Scanner:         scanner,
		ScanOptions:     media.DefaultScanOptions(cfg.AudiobookMinDuration),
		Planner:         ops.NewPlanner(st, log),
		Executor:        ops.NewExecutor(st, log),
		GoogleBooks:     books,
		Audnexus:        audnexus,
		Gemini:          gemini,
		Metrics:         m,
		Log:             log,
		FolderTemplate:  cfg.AudiobookFolderTemplate,
		FileTemplate:    cfg.AudiobookFileTemplate,
		EnableLLM:       cfg.EnableLLM,
		EnableProviders: cfg.EnableProviders,
		GeminiKeySet:    cfg.GeminiAPIKey != "",
		BooksKeySet:     cfg.GoogleBooksAPIKey != "",
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// LIFO: the server drains before the store and logger close.
	mgr := shutdown.New(15 * time.Second)
	mgr.Register(shutdown.CloseResource(log, "logger"))
	mgr.Register(shutdown.CloseResource(st, "database"))
	mgr.Register(shutdown.StopHTTPServer(srv, "http server"))

	errCh := make(chan error, 1)
	go func() {
		log.Info("Backend listening", map[string]interface{}{
			"addr":      srv.Addr,
			"database":  dbPath,
			"providers": cfg.EnableProviders,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		mgr.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	case <-cmd.Context().Done():
		log.Info("Shutting down", map[string]interface{}{"reason": "context canceled"})
	}

	mgr.Shutdown()
	return nil
}
