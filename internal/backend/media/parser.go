package media

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Parsed holds metadata recovered from a file or folder name, with a
// confidence score in [0, 1] reflecting how many patterns matched.
type Parsed struct {
	Title       string
	Author      string
	Series      string
	SeriesIndex float64
	Year        int
	Narrator    string
	Quality     string
	Confidence  float64
}

var (
	yearPattern = regexp.MustCompile(`\((\d{4})\)`)

	seriesPatterns = []*regexp.Regexp{
		// "Series Name, Book 1" or "Series Name Book 1"
		regexp.MustCompile(`(?i)^(.+?)[,\s]+Book\s*(\d+(?:\.\d+)?)`),
		// "Series Name #1" or "Series Name - #1"
		regexp.MustCompile(`(?i)^(.+?)\s*[-–—]?\s*#(\d+(?:\.\d+)?)`),
		// "Series 01 - Title" or "Series Book 01 - Title"
		regexp.MustCompile(`(?i)^(.+?)\s+(?:Book\s*)?(\d+)\s*[-–—]\s*(.+)`),
	}

	authorTitlePattern = regexp.MustCompile(`^(.+?)\s*[-–—]\s*(.+)$`)

	narratorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:narrated by|read by|narrator)[:\s]+(.+?)(?:\s*[-–—(]|$)`),
		// [Narrator Name] at end
		regexp.MustCompile(`\[(.+?)\]$`),
	}

	qualityPatterns = []struct {
		re    *regexp.Regexp
		label string
	}{
		{regexp.MustCompile(`(?i)\bunabridged\b`), "Unabridged"},
		{regexp.MustCompile(`(?i)\babridged\b`), "Abridged"},
	}

	underscoreRun = regexp.MustCompile(`_+`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// cleanString normalizes underscores and whitespace in a name fragment.
func cleanString(s string) string {
	s = strings.TrimSpace(s)
	s = underscoreRun.ReplaceAllString(s, " ")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// looksLikePersonName is a conservative heuristic for author-like names:
// two to four words, no digits, every word longer than one rune.
func looksLikePersonName(text string) bool {
	parts := strings.Fields(cleanString(text))
	if len(parts) < 2 || len(parts) > 4 {
		return false
	}
	for _, part := range parts {
		if strings.ContainsAny(part, "0123456789") {
			return false
		}
		if len([]rune(part)) <= 1 {
			return false
		}
	}
	return true
}

func extractYear(text string) (int, string) {
	loc := yearPattern.FindStringSubmatchIndex(text)
	if loc != nil {
		year, _ := strconv.Atoi(text[loc[2]:loc[3]])
		if year >= 1900 && year <= 2100 {
			remaining := text[:loc[0]] + text[loc[1]:]
			return year, cleanString(remaining)
		}
	}
	return 0, text
}

func extractQuality(text string) (string, string) {
	for _, qp := range qualityPatterns {
		if qp.re.MatchString(text) {
			return qp.label, cleanString(qp.re.ReplaceAllString(text, ""))
		}
	}
	return "", text
}

func extractNarrator(text string) (string, string) {
	for _, pattern := range narratorPatterns {
		loc := pattern.FindStringSubmatchIndex(text)
		if loc != nil {
			narrator := cleanString(text[loc[2]:loc[3]])
			remaining := text[:loc[0]] + text[loc[1]:]
			return narrator, cleanString(remaining)
		}
	}
	return "", text
}

// extractSeries returns series name, series index, and, for patterns that
// capture it, the title that follows the series marker.
func extractSeries(text string) (string, float64, string, bool) {
	for _, pattern := range seriesPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		series := cleanString(m[1])
		index, _ := strconv.ParseFloat(m[2], 64)
		if len(m) == 4 {
			return series, index, cleanString(m[3]), true
		}
		return series, index, "", true
	}
	return "", 0, "", false
}

func extractAuthorTitle(text string) (string, string) {
	m := authorTitlePattern.FindStringSubmatch(text)
	if m != nil {
		return cleanString(m[1]), cleanString(m[2])
	}
	return "", text
}

// ParseFilename recovers audiobook metadata from a file or folder name
// using layered heuristics. Each matched pattern raises confidence.
func ParseFilename(filename string) Parsed {
	var result Parsed

	name := filename
	if strings.Contains(filename, ".") {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	name = cleanString(name)
	if name == "" {
		return result
	}

	confidence := 0.0
	remaining := name

	if year, rest := extractYear(remaining); year != 0 {
		result.Year = year
		confidence += 0.1
		remaining = rest
	}

	if quality, rest := extractQuality(remaining); quality != "" {
		result.Quality = quality
		confidence += 0.05
		remaining = rest
	}

	if narrator, rest := extractNarrator(remaining); narrator != "" {
		result.Narrator = narrator
		confidence += 0.1
		remaining = rest
	}

	if series, index, titleFromSeries, ok := extractSeries(remaining); ok {
		result.Series = series
		result.SeriesIndex = index
		confidence += 0.2
		if titleFromSeries != "" {
			remaining = titleFromSeries
		}
	}

	author, title := extractAuthorTitle(remaining)
	switch {
	case author != "" && title != "":
		// Accept author-title even when the author side is longer,
		// at lower confidence.
		result.Author = author
		result.Title = title
		if len(author) < len(title) {
			confidence += 0.3
		} else {
			confidence += 0.2
		}
	case title != "":
		result.Title = cleanString(remaining)
		confidence += 0.1
	default:
		result.Title = cleanString(remaining)
	}

	// A title with no author is weak evidence on its own
	if result.Title != "" && result.Author == "" {
		confidence = confidence - 0.1
		if confidence < 0.1 {
			confidence = 0.1
		}
	}

	result.Confidence = min(confidence, 1.0)
	return result
}

// ParseFolderPath parses a folder name, falling back to the parent folder
// for author and series information when the name alone parses poorly.
func ParseFolderPath(folderPath string) Parsed {
	result := ParseFilename(filepath.Base(folderPath))

	parentName := filepath.Base(filepath.Dir(folderPath))
	if result.Confidence < 0.3 && parentName != "" && parentName != "." && parentName != string(filepath.Separator) {
		parent := ParseFilename(parentName)

		if parent.Author != "" && result.Author == "" {
			result.Author = parent.Author
			result.Confidence += 0.1
		} else if parent.Title != "" && result.Author == "" && looksLikePersonName(parent.Title) {
			// A parent folder that reads like a person is the author
			result.Author = parent.Title
			result.Confidence += 0.1
		}
		if parent.Series != "" && result.Series == "" {
			result.Series = parent.Series
			result.SeriesIndex = parent.SeriesIndex
			result.Confidence += 0.1
		}
	}

	return result
}

// MergeMetadata layers embedded audio tag values over parsed filename
// metadata. Tag values win when they carry real content.
func MergeMetadata(parsed Parsed, audioTitle, audioAuthor, audioAlbum string) Parsed {
	result := parsed

	if len(audioTitle) > 2 {
		result.Title = audioTitle
		result.Confidence += 0.1
	}
	if len(audioAuthor) > 2 {
		result.Author = audioAuthor
		result.Confidence += 0.1
	}
	if result.Title == "" && len(audioAlbum) > 2 {
		result.Title = audioAlbum
		result.Confidence += 0.05
	}

	result.Confidence = min(result.Confidence, 1.0)
	return result
}
