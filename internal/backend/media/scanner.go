package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-organizer/internal/backend/models"
	"media-organizer/pkg/logging"
)

// ScanOptions control scan behavior. The zero value hashes nothing and
// reads no tags; DefaultScanOptions matches production scanning.
type ScanOptions struct {
	HashFiles            bool
	ExtractAudioMetadata bool
	VerifyAudioDuration  bool
	MinAudiobookDuration int
	ExclusionPatterns    []string
}

// DefaultScanOptions returns full-fidelity scan behavior with the given
// audiobook duration threshold in seconds.
func DefaultScanOptions(minDuration int) ScanOptions {
	return ScanOptions{
		HashFiles:            true,
		ExtractAudioMetadata: true,
		MinAudiobookDuration: minDuration,
	}
}

// Progress is a point-in-time snapshot of a running scan.
type Progress struct {
	ScanID         string `json:"scan_id"`
	RootPath       string `json:"root_path"`
	Status         string `json:"status"`
	FilesFound     int    `json:"files_found"`
	FilesProcessed int    `json:"files_processed"`
	GroupsCreated  int    `json:"groups_created"`
	CurrentFolder  string `json:"current_folder,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Result holds everything a scan discovered.
type Result struct {
	ScanID      string
	RootPath    string
	Files       []*models.MediaFile
	Groups      []*models.AudiobookGroup
	Errors      []string
	StartedAt   time.Time
	CompletedAt time.Time
}

// discovery separates standalone files from per-folder audio sets while
// preserving walk order, so scan output is deterministic.
type discovery struct {
	standalone   []string
	audioFolders []string
	folderFiles  map[string][]string
	errors       []string
}

// Scanner walks directory trees and catalogs supported media files.
type Scanner struct {
	detector *Detector
	tags     TagReader
	log      *logging.Logger
}

// NewScanner builds a scanner. A nil reader disables tag extraction.
func NewScanner(detector *Detector, tags TagReader, log *logging.Logger) *Scanner {
	if tags == nil {
		tags = NoopTagReader{}
	}
	return &Scanner{detector: detector, tags: tags, log: log}
}

// Scan walks rootPath and returns all discovered files and groups.
// The progress callback, when non-nil, receives status updates as the scan
// moves through discovering, grouping, processing, and completed phases.
func (s *Scanner) Scan(ctx context.Context, rootPath, scanID string, opts ScanOptions, progress func(Progress)) *Result {
	if scanID == "" {
		scanID = uuid.NewString()
	}
	result := &Result{
		ScanID:    scanID,
		RootPath:  rootPath,
		StartedAt: time.Now(),
	}
	filesProcessed := 0

	report := func(status, folder, errMsg string) {
		if progress == nil {
			return
		}
		progress(Progress{
			ScanID:         scanID,
			RootPath:       rootPath,
			Status:         status,
			FilesFound:     len(result.Files),
			FilesProcessed: filesProcessed,
			GroupsCreated:  len(result.Groups),
			CurrentFolder:  folder,
			ErrorMessage:   errMsg,
		})
	}

	report("discovering", "", "")

	info, err := os.Stat(rootPath)
	if err != nil || !info.IsDir() {
		msg := fmt.Sprintf("scan root does not exist or is not a directory: %s", rootPath)
		result.Errors = append(result.Errors, msg)
		result.CompletedAt = time.Now()
		report("failed", "", msg)
		return result
	}

	disc := &discovery{folderFiles: make(map[string][]string)}
	s.walk(ctx, rootPath, opts, disc)
	result.Errors = append(result.Errors, disc.errors...)

	if ctx.Err() != nil {
		msg := "scan canceled"
		result.Errors = append(result.Errors, msg)
		result.CompletedAt = time.Now()
		report("failed", "", msg)
		return result
	}

	report("grouping", "", "")

	for _, folder := range disc.audioFolders {
		audioFiles := disc.folderFiles[folder]
		report("processing", folder, "")

		if len(audioFiles) == 1 {
			// Lone file in a folder, grouped or not it stands alone
			scanned := s.processAudioFile(audioFiles[0], "", false, 0, nil, opts)
			scanned.ScanID = scanID
			result.Files = append(result.Files, scanned)
			filesProcessed++
			continue
		}

		group := BuildGroup(folder, audioFiles, s.tags, opts.ExtractAudioMetadata)
		if group == nil {
			continue
		}

		mg := &models.AudiobookGroup{
			ID:                   group.ID,
			ScanID:               scanID,
			FolderPath:           group.FolderPath,
			FileCount:            len(group.Files),
			TotalDurationSeconds: group.TotalDurationSeconds(),
			Title:                group.Title,
			Author:               group.Author,
			Narrator:             group.Narrator,
			Series:               group.Series,
			SeriesIndex:          group.SeriesIndex,
			Year:                 group.Year,
			Status:               models.FileStatusPending,
			Confidence:           group.Confidence,
		}
		result.Groups = append(result.Groups, mg)

		for idx, gf := range group.SortedFiles() {
			meta := gf.Meta
			scanned := s.processAudioFile(gf.Path, group.ID, idx == 0, gf.TrackNumber, &meta, opts)
			scanned.ScanID = scanID
			result.Files = append(result.Files, scanned)
			filesProcessed++
		}
	}

	for _, path := range disc.standalone {
		report("processing", filepath.Dir(path), "")

		scanned := s.processStandaloneFile(path, opts)
		scanned.ScanID = scanID
		result.Files = append(result.Files, scanned)
		filesProcessed++
	}

	result.CompletedAt = time.Now()
	report("completed", "", "")
	return result
}

// walk recurses through the tree in case-insensitive name order, pruning
// skipped and excluded folders.
func (s *Scanner) walk(ctx context.Context, dir string, opts ScanOptions, disc *discovery) {
	if ctx.Err() != nil {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		disc.errors = append(disc.errors, fmt.Sprintf("error scanning %s: %v", dir, err))
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if !SkipFolder(entry.Name()) && !excluded(path, opts.ExclusionPatterns) {
				s.walk(ctx, path, opts, disc)
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if SkipFile(entry.Name()) || excluded(path, opts.ExclusionPatterns) {
			continue
		}
		if !s.detector.Supported(path) {
			continue
		}

		if s.detector.Detect(path) == models.MediaTypeAudiobook {
			if !s.keepAudioFile(path, opts) {
				continue
			}
			folder := filepath.Dir(path)
			if _, seen := disc.folderFiles[folder]; !seen {
				disc.audioFolders = append(disc.audioFolders, folder)
			}
			disc.folderFiles[folder] = append(disc.folderFiles[folder], path)
		} else {
			disc.standalone = append(disc.standalone, path)
		}
	}
}

func excluded(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	lower := strings.ToLower(path)
	for _, pattern := range patterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// keepAudioFile applies the optional duration filter that weeds out short
// music tracks. Definitive audiobooks and unreadable files always pass.
func (s *Scanner) keepAudioFile(path string, opts ScanOptions) bool {
	if !opts.VerifyAudioDuration {
		return true
	}
	if s.detector.IsDefinitiveAudiobook(path) {
		return true
	}
	duration := s.tags.Duration(path)
	if duration == 0 {
		return true
	}
	return duration >= opts.MinAudiobookDuration
}

func (s *Scanner) processAudioFile(path, groupID string, isPrimary bool, trackNumber int, meta *AudioMetadata, opts ScanOptions) *models.MediaFile {
	scanned := &models.MediaFile{
		ID:       uuid.NewString(),
		FilePath: path,
		Type:     models.MediaTypeAudiobook,
		Status:   models.FileStatusPending,
	}

	info, err := os.Stat(path)
	if err != nil {
		s.log.Warn("Failed to stat file", map[string]interface{}{"path": path, "error": err.Error()})
		return scanned
	}
	scanned.FileSize = info.Size()

	var tags AudioMetadata
	switch {
	case meta != nil:
		tags = *meta
	case opts.ExtractAudioMetadata:
		tags, _ = s.tags.ReadTags(path)
	}
	scanned.DurationSeconds = tags.DurationSeconds

	parsed := ParseFilename(filepath.Base(path))
	merged := MergeMetadata(parsed, tags.Title, tags.Author, tags.Album)

	scanned.ExtractedTitle = firstNonEmpty(merged.Title, tags.Title, tags.Album)
	scanned.ExtractedAuthor = firstNonEmpty(merged.Author, tags.Author)
	scanned.ExtractedNarrator = firstNonEmpty(tags.Narrator, merged.Narrator)
	scanned.ExtractedSeries = merged.Series
	scanned.ExtractedSeriesIndex = merged.SeriesIndex
	scanned.ExtractedYear = merged.Year
	if scanned.ExtractedYear == 0 {
		scanned.ExtractedYear = tags.Year
	}
	scanned.Confidence = merged.Confidence

	scanned.GroupID = groupID
	scanned.IsGroupPrimary = isPrimary
	scanned.TrackNumber = trackNumber
	if scanned.TrackNumber == 0 {
		scanned.TrackNumber = tags.TrackNumber
	}

	if opts.HashFiles {
		hash, err := HashFile(path)
		if err != nil {
			s.log.Warn("Failed to hash file", map[string]interface{}{"path": path, "error": err.Error()})
		} else {
			scanned.FileHash = hash
		}
	}

	return scanned
}

func (s *Scanner) processStandaloneFile(path string, opts ScanOptions) *models.MediaFile {
	scanned := &models.MediaFile{
		ID:       uuid.NewString(),
		FilePath: path,
		Type:     s.detector.Detect(path),
		Status:   models.FileStatusPending,
	}

	if info, err := os.Stat(path); err == nil {
		scanned.FileSize = info.Size()
	}

	if opts.HashFiles {
		if hash, err := HashFile(path); err == nil {
			scanned.FileHash = hash
		}
	}

	parsed := ParseFilename(filepath.Base(path))
	scanned.ExtractedTitle = parsed.Title
	scanned.ExtractedAuthor = parsed.Author
	scanned.ExtractedYear = parsed.Year
	scanned.Confidence = parsed.Confidence

	return scanned
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
