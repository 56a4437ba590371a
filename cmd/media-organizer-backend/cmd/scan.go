package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"media-organizer/internal/backend/media"
	"media-organizer/internal/config"
	"media-organizer/pkg/logging"
)

var (
	scanExclude        []string
	scanHash           bool
	scanMetadata       bool
	scanVerifyDuration bool
	scanJSONOut        string
	scanAsJSON         bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <root>",
	Short: "Dry-run a library scan without touching the database",
	Long:  `Walk a library folder, classify media files, and print what a catalog scan would find. Nothing is written to the database; use this to tune exclusion patterns before scanning for real.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "glob patterns to skip")
	scanCmd.Flags().BoolVar(&scanHash, "hash", false, "hash file contents")
	scanCmd.Flags().BoolVar(&scanMetadata, "metadata", true, "extract audio metadata")
	scanCmd.Flags().BoolVar(&scanVerifyDuration, "verify-duration", false, "verify audiobook duration threshold")
	scanCmd.Flags().StringVar(&scanJSONOut, "json-out", "", "write the full scan result to a JSON file")
	scanCmd.Flags().BoolVar(&scanAsJSON, "json", false, "print the result as JSON instead of a table")
}

func runScan(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New(logging.ParseLevel(cfg.LogLevel), false)
	detector := media.NewDetector(cfg.AudiobookExtensions, cfg.EbookExtensions,
		cfg.ComicExtensions, cfg.AudiobookFolderPattern)
	scanner := media.NewScanner(detector, media.NoopTagReader{}, log)

	opts := media.ScanOptions{
		HashFiles:            scanHash,
		ExtractAudioMetadata: scanMetadata,
		VerifyAudioDuration:  scanVerifyDuration,
		MinAudiobookDuration: cfg.AudiobookMinDuration,
		ExclusionPatterns:    scanExclude,
	}

	result := scanner.Scan(cmd.Context(), root, "", opts, nil)

	if scanJSONOut != "" {
		if err := writeScanResult(scanJSONOut, result); err != nil {
			return err
		}
		fmt.Printf("Result written to %s\n", scanJSONOut)
	}

	if scanAsJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	printScanTables(cfg, result)
	return nil
}

func writeScanResult(path string, result *media.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func printScanTables(cfg *config.Config, result *media.Result) {
	if len(result.Groups) > 0 {
		fmt.Println("Audiobook groups:")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Folder", "Title", "Author", "Series", "Tracks")

		for _, g := range result.Groups {
			series := g.Series
			if series != "" && g.SeriesIndex > 0 {
				series = fmt.Sprintf("%s #%g", series, g.SeriesIndex)
			}
			table.Append(
				filepath.Base(g.FolderPath),
				g.Title,
				g.Author,
				series,
				fmt.Sprintf("%d", g.FileCount),
			)
		}
		table.Render()
		fmt.Println()
	}

	standalone := 0
	byType := map[string]int{}
	for _, f := range result.Files {
		byType[string(f.Type)]++
		if f.GroupID == "" {
			standalone++
		}
	}

	if standalone > 0 {
		fmt.Println("Standalone files:")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("File", "Type", "Title", "Author", "Year")

		for _, f := range result.Files {
			if f.GroupID != "" {
				continue
			}
			year := ""
			if f.ExtractedYear > 0 {
				year = fmt.Sprintf("%d", f.ExtractedYear)
			}
			table.Append(
				filepath.Base(f.FilePath),
				string(f.Type),
				f.ExtractedTitle,
				f.ExtractedAuthor,
				year,
			)
		}
		table.Render()
		fmt.Println()
	}

	summary := tablewriter.NewWriter(os.Stdout)
	summary.Header("Metric", "Value")
	summary.Append("Root", result.RootPath)
	summary.Append("Files found", fmt.Sprintf("%d", len(result.Files)))
	summary.Append("Audiobook groups", fmt.Sprintf("%d", len(result.Groups)))
	for mediaType, count := range byType {
		summary.Append("  "+mediaType, fmt.Sprintf("%d", count))
	}
	summary.Append("Errors", fmt.Sprintf("%d", len(result.Errors)))
	summary.Append("Duration", result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond).String())
	summary.Render()

	for _, e := range result.Errors {
		fmt.Printf("error: %s\n", e)
	}
}
