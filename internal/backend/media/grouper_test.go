package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))
	return path
}

func TestBuildGroupExtractsTrackNumbers(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "My Book")
	fileOne := touch(t, filepath.Join(folder, "01 - Chapter One.mp3"))
	fileTwo := touch(t, filepath.Join(folder, "Track 02 - Chapter Two.mp3"))

	group := BuildGroup(folder, []string{fileTwo, fileOne}, nil, false)
	require.NotNil(t, group)

	sorted := group.SortedFiles()
	require.Len(t, sorted, 2)
	assert.Equal(t, fileOne, sorted[0].Path)
	assert.Equal(t, fileTwo, sorted[1].Path)
	assert.Equal(t, 1, sorted[0].TrackNumber)
	assert.Equal(t, 2, sorted[1].TrackNumber)
}

func TestBuildGroupRejectsSingleFile(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "My Book")
	file := touch(t, filepath.Join(folder, "book.m4b"))

	assert.Nil(t, BuildGroup(folder, []string{file}, nil, false))
}

func TestConsolidateFallsBackToFolderName(t *testing.T) {
	group := &Group{
		FolderPath: "/library/zzqx",
		Files: []GroupFile{
			{Path: "/library/zzqx/a.mp3"},
			{Path: "/library/zzqx/b.mp3"},
		},
	}
	group.Consolidate()

	assert.Equal(t, "zzqx", group.Title)
	assert.InDelta(t, 0.1, group.Confidence, 1e-9)
}

func TestConsolidatePrimaryTagsWin(t *testing.T) {
	group := &Group{
		FolderPath: filepath.Join("/library", "Author Name", "Some Book"),
		Files: []GroupFile{
			{Path: "/x/02.mp3", TrackNumber: 2, Meta: AudioMetadata{Title: "Wrong"}},
			{Path: "/x/01.mp3", TrackNumber: 1, Meta: AudioMetadata{
				Title:    "Right Title",
				Author:   "Tag Author",
				Narrator: "Tag Narrator",
				Year:     2015,
			}},
		},
	}
	group.Consolidate()

	assert.Equal(t, "Right Title", group.Title)
	assert.Equal(t, "Tag Author", group.Author)
	assert.Equal(t, "Tag Narrator", group.Narrator)
	assert.Equal(t, 2015, group.Year)
}

func TestTrackFromFilename(t *testing.T) {
	cases := map[string]int{
		"01 - Chapter.mp3":  1,
		"Part 7.mp3":        7,
		"Chapter 12.mp3":    12,
		"Finale - 03.mp3":   3,
		"No Track Here.mp3": 0,
	}
	for name, want := range cases {
		assert.Equal(t, want, trackFromFilename(name), name)
	}
}
