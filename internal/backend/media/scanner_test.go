package media

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-organizer/internal/backend/models"
	"media-organizer/pkg/logging"
)

func testDetector() *Detector {
	return NewDetector(
		[]string{".mp3", ".m4b", ".m4a", ".flac"},
		[]string{".epub", ".mobi", ".pdf", ".azw3"},
		[]string{".cbz", ".cbr", ".cb7"},
		"audiobook",
	)
}

// fakeTagReader serves canned durations keyed by file path.
type fakeTagReader struct {
	durations map[string]int
}

func (f *fakeTagReader) ReadTags(path string) (AudioMetadata, error) {
	return AudioMetadata{DurationSeconds: f.durations[path]}, nil
}

func (f *fakeTagReader) Duration(path string) int {
	return f.durations[path]
}

func TestScanGroupsMultiFileFolders(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "Audiobook", "My Book")
	fileOne := touch(t, filepath.Join(folder, "01 - Part One.mp3"))
	fileTwo := touch(t, filepath.Join(folder, "02 - Part Two.mp3"))

	s := NewScanner(testDetector(), nil, logging.New(logging.ERROR, false))
	result := s.Scan(context.Background(), root, "", ScanOptions{}, nil)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Groups, 1)
	require.Len(t, result.Files, 2)

	group := result.Groups[0]
	assert.Equal(t, folder, group.FolderPath)
	assert.Equal(t, 2, group.FileCount)

	byPath := make(map[string]*models.MediaFile)
	for _, f := range result.Files {
		byPath[f.FilePath] = f
	}
	assert.Equal(t, group.ID, byPath[fileOne].GroupID)
	assert.Equal(t, group.ID, byPath[fileTwo].GroupID)
	assert.Equal(t, 1, byPath[fileOne].TrackNumber)
	assert.Equal(t, 2, byPath[fileTwo].TrackNumber)
	assert.True(t, byPath[fileOne].IsGroupPrimary)
	assert.False(t, byPath[fileTwo].IsGroupPrimary)
	assert.Empty(t, byPath[fileOne].FileHash, "hashing disabled by options")
}

func TestScanDurationFilterSkipsShortTracks(t *testing.T) {
	root := t.TempDir()
	keep := touch(t, filepath.Join(root, "Audiobook", "Book One", "01 - Chapter.mp3"))
	skip := touch(t, filepath.Join(root, "Music", "song.mp3"))
	ebook := touch(t, filepath.Join(root, "Books", "Some Book.epub"))

	tags := &fakeTagReader{durations: map[string]int{
		keep: 1900,
		skip: 100,
	}}
	s := NewScanner(testDetector(), tags, logging.New(logging.ERROR, false))

	result := s.Scan(context.Background(), root, "", ScanOptions{
		VerifyAudioDuration:  true,
		MinAudiobookDuration: 1800,
	}, nil)

	paths := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		paths = append(paths, f.FilePath)
	}
	assert.Contains(t, paths, keep, "audiobook-folder files pass without a duration check")
	assert.Contains(t, paths, ebook)
	assert.NotContains(t, paths, skip, "short loose audio is filtered out")
}

func TestScanMissingRootFails(t *testing.T) {
	s := NewScanner(testDetector(), nil, logging.New(logging.ERROR, false))

	var last Progress
	result := s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), "", ScanOptions{},
		func(p Progress) { last = p })

	assert.NotEmpty(t, result.Errors)
	assert.False(t, result.CompletedAt.IsZero())
	assert.Equal(t, "failed", last.Status)
}

func TestScanSkipsHiddenAndExcludedFolders(t *testing.T) {
	root := t.TempDir()
	kept := touch(t, filepath.Join(root, "Books", "Kept.epub"))
	touch(t, filepath.Join(root, ".hidden", "Secret.epub"))
	touch(t, filepath.Join(root, "node_modules", "Dep.epub"))
	touch(t, filepath.Join(root, "Drafts", "Skip Me.epub"))

	s := NewScanner(testDetector(), nil, logging.New(logging.ERROR, false))
	result := s.Scan(context.Background(), root, "", ScanOptions{
		ExclusionPatterns: []string{"drafts"},
	}, nil)

	require.Len(t, result.Files, 1)
	assert.Equal(t, kept, result.Files[0].FilePath)
}

func TestScanIsDeterministic(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b", "Beta.epub"))
	touch(t, filepath.Join(root, "A", "Alpha.epub"))
	touch(t, filepath.Join(root, "c.epub"))

	s := NewScanner(testDetector(), nil, logging.New(logging.ERROR, false))

	first := s.Scan(context.Background(), root, "", ScanOptions{}, nil)
	second := s.Scan(context.Background(), root, "", ScanOptions{}, nil)

	pathsOf := func(r *Result) []string {
		out := make([]string, len(r.Files))
		for i, f := range r.Files {
			out[i] = f.FilePath
		}
		return out
	}
	assert.Equal(t, pathsOf(first), pathsOf(second))
}
