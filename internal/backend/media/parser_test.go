package media

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilenameAuthorTitleYearNarratorQuality(t *testing.T) {
	parsed := ParseFilename("Brandon Sanderson - The Way of Kings (2010) [Michael Kramer] Unabridged")

	assert.Equal(t, "Brandon Sanderson", parsed.Author)
	assert.Equal(t, "The Way of Kings", parsed.Title)
	assert.Equal(t, 2010, parsed.Year)
	assert.Equal(t, "Michael Kramer", parsed.Narrator)
	assert.Equal(t, "Unabridged", parsed.Quality)
}

func TestParseFilenameSeriesWithTitle(t *testing.T) {
	parsed := ParseFilename("The Expanse 01 - Leviathan Wakes")

	assert.Equal(t, "The Expanse", parsed.Series)
	assert.Equal(t, 1.0, parsed.SeriesIndex)
	assert.Equal(t, "Leviathan Wakes", parsed.Title)
}

func TestParseFilenameSeriesBookMarker(t *testing.T) {
	parsed := ParseFilename("Mistborn, Book 1")

	assert.Equal(t, "Mistborn", parsed.Series)
	assert.Equal(t, 1.0, parsed.SeriesIndex)
}

func TestParseFilenameTitleOnlyHasLowConfidence(t *testing.T) {
	parsed := ParseFilename("Leviathan Wakes")

	assert.Equal(t, "Leviathan Wakes", parsed.Title)
	assert.Empty(t, parsed.Author)
	assert.InDelta(t, 0.1, parsed.Confidence, 1e-9)
}

func TestParseFilenameStripsExtensionAndUnderscores(t *testing.T) {
	parsed := ParseFilename("Frank_Herbert_-_Dune.m4b")

	assert.Equal(t, "Frank Herbert", parsed.Author)
	assert.Equal(t, "Dune", parsed.Title)
}

func TestParseFolderPathUsesParentForAuthor(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "Brandon Sanderson", "The Way of Kings")
	parsed := ParseFolderPath(folder)

	assert.Equal(t, "The Way of Kings", parsed.Title)
	assert.Equal(t, "Brandon Sanderson", parsed.Author)
}

func TestMergeMetadataPrefersAudioTags(t *testing.T) {
	parsed := Parsed{Title: "Parsed Title", Author: "Parsed Author", Confidence: 0.2}

	merged := MergeMetadata(parsed, "Audio Title", "Audio Author", "Audio Album")

	assert.Equal(t, "Audio Title", merged.Title)
	assert.Equal(t, "Audio Author", merged.Author)
	assert.InDelta(t, 0.4, merged.Confidence, 1e-9)
}

func TestMergeMetadataAlbumFillsMissingTitle(t *testing.T) {
	merged := MergeMetadata(Parsed{Confidence: 0.1}, "", "", "Audio Album")

	assert.Equal(t, "Audio Album", merged.Title)
	assert.InDelta(t, 0.15, merged.Confidence, 1e-9)
}

func TestLooksLikePersonName(t *testing.T) {
	assert.True(t, looksLikePersonName("Brandon Sanderson"))
	assert.True(t, looksLikePersonName("Ursula K. Le Guin"))
	assert.False(t, looksLikePersonName("Dune"))
	assert.False(t, looksLikePersonName("The Expanse 01"))
	assert.False(t, looksLikePersonName("A B"))
}
