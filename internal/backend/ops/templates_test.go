package ops

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorSort(t *testing.T) {
	cases := map[string]string{
		"Brandon Sanderson":  "Sanderson, Brandon",
		"Ursula K. Le Guin":  "Guin, Ursula K. Le",
		"Homer":              "Homer",
		"":                   "Unknown Author",
	}
	for author, want := range cases {
		m := PathMetadata{Author: author}
		assert.Equal(t, want, m.AuthorSort(), author)
	}
}

func TestSeriesIndexFormatted(t *testing.T) {
	assert.Equal(t, "01", PathMetadata{SeriesIndex: 1}.SeriesIndexFormatted())
	assert.Equal(t, "12", PathMetadata{SeriesIndex: 12}.SeriesIndexFormatted())
	assert.Equal(t, "01.50", PathMetadata{SeriesIndex: 1.5}.SeriesIndexFormatted())
	assert.Equal(t, "", PathMetadata{}.SeriesIndexFormatted())
}

func TestNormalizeFilename(t *testing.T) {
	assert.Equal(t, "What If It Works", NormalizeFilename(`What|If<It>Works?`, 200))
	assert.Equal(t, "Ends Here", NormalizeFilename("Ends Here...", 200))
	assert.Equal(t, "Unknown", NormalizeFilename("", 200))
	assert.Equal(t, "Unknown", NormalizeFilename(" ...", 200))
	assert.Equal(t, "It's a 'Test' - yes", NormalizeFilename("It’s a “Test” – yes…", 200))
}

func TestNormalizeFilenameTruncatesAtWordBoundary(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got := NormalizeFilename(long, 50)

	assert.LessOrEqual(t, len(got), 50)
	assert.False(t, strings.HasSuffix(got, " "))
	assert.NotContains(t, got, "wor ")
}

func TestNormalizeFilenameTruncatesOnRuneBoundary(t *testing.T) {
	name := strings.Repeat("a", 199) + "€bcd"
	got := NormalizeFilename(name, 200)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 200)
	assert.True(t, strings.HasSuffix(got, "€"))

	allMultibyte := strings.Repeat("ü", 300)
	got = NormalizeFilename(allMultibyte, 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 200, utf8.RuneCountInString(got))
}

func TestApplyTemplateDropsEmptySeriesSegment(t *testing.T) {
	m := PathMetadata{
		Title:  "The Way of Kings",
		Author: "Brandon Sanderson",
		Year:   2010,
	}
	got := ApplyTemplate(DefaultAudiobookFolderTemplate, m)

	assert.Equal(t, "Sanderson, Brandon/The Way of Kings (2010)", got)
}

func TestApplyTemplateWithSeries(t *testing.T) {
	m := PathMetadata{
		Title:       "Leviathan Wakes",
		Author:      "James Corey",
		Series:      "The Expanse",
		SeriesIndex: 1,
		Year:        2011,
	}
	folder := ApplyTemplate(DefaultAudiobookFolderTemplate, m)
	file := ApplyTemplate(DefaultAudiobookFileTemplate, PathMetadata{
		Title: m.Title, SeriesIndex: m.SeriesIndex, Extension: ".m4b",
	})

	assert.Equal(t, "Corey, James/The Expanse/01 - Leviathan Wakes (2011)", folder)
	assert.Equal(t, "01 - Leviathan Wakes.m4b", file)
}

func TestGenerateUniquePathAddsSuffix(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "Book.m4b")
	planned := map[string]bool{target: true}

	got, err := GenerateUniquePath(target, planned)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Book_1.m4b"), got)

	planned[got] = true
	got, err = GenerateUniquePath(target, planned)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Book_2.m4b"), got)
}

func TestGenerateAudiobookPathsNoSeriesDefaults(t *testing.T) {
	root := t.TempDir()
	m := PathMetadata{
		Title:     "Dune",
		Author:    "Frank Herbert",
		Year:      1965,
		Extension: ".m4b",
	}
	got, err := GenerateAudiobookPaths(m, root, "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "Herbert, Frank", "Dune (1965)", "Dune.m4b"), got)
}
