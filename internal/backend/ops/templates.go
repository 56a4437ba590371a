package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Default naming templates.
const (
	DefaultAudiobookFolderTemplate    = "{author_sort}/{series}/{series_index} - {title} ({year})"
	DefaultAudiobookFileTemplate      = "{series_index} - {title}.{ext}"
	DefaultAudiobookMultifileTemplate = "{title} - Part {part_num}.{ext}"
	DefaultAudiobookFolderNoSeries    = "{author_sort}/{title} ({year})"
	DefaultAudiobookFileNoSeries      = "{title}.{ext}"
)

const windowsForbidden = `<>:"/\|?*`

// PathMetadata feeds template placeholders when generating target paths.
type PathMetadata struct {
	Title       string
	Author      string
	Narrator    string
	Series      string
	SeriesIndex float64
	Year        int
	Extension   string

	// For multi-file audiobooks
	PartNumber int
	TotalParts int
}

// AuthorSort returns the author as "Last, First" for shelf ordering.
func (m PathMetadata) AuthorSort() string {
	if m.Author == "" {
		return "Unknown Author"
	}
	parts := strings.Fields(m.Author)
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[1] + ", " + parts[0]
	default:
		return parts[len(parts)-1] + ", " + strings.Join(parts[:len(parts)-1], " ")
	}
}

// SeriesIndexFormatted zero-pads the series index: "01" for whole numbers,
// "01.50" for fractional entries.
func (m PathMetadata) SeriesIndexFormatted() string {
	if m.SeriesIndex == 0 {
		return ""
	}
	if m.SeriesIndex == float64(int(m.SeriesIndex)) {
		return fmt.Sprintf("%02d", int(m.SeriesIndex))
	}
	return fmt.Sprintf("%05.2f", m.SeriesIndex)
}

var (
	smartCharReplacer = strings.NewReplacer(
		"…", "...",
		"“", "'",
		"”", "'",
		"‘", "'",
		"’", "'",
		"–", "-",
		"—", "-",
		"\t", " ",
		"\n", " ",
		"\r", " ",
	)
	multiSpace     = regexp.MustCompile(`\s+`)
	multiSlash     = regexp.MustCompile(`/+`)
	emptySegment   = regexp.MustCompile(`/[\s\-]+/`)
	leadingSegDash = regexp.MustCompile(`/[\s\-]+`)
)

// NormalizeFilename makes a string safe as a Windows file or folder name:
// forbidden and control characters go, smart punctuation is flattened, and
// overlong names are cut at a word boundary.
func NormalizeFilename(name string, maxLength int) string {
	if name == "" {
		return "Unknown"
	}

	var b strings.Builder
	for _, r := range name {
		if r < 32 {
			continue
		}
		if strings.ContainsRune(windowsForbidden, r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	name = smartCharReplacer.Replace(b.String())
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")

	// Truncation counts runes, not bytes, so a multibyte character is
	// never split into an invalid name.
	if runes := []rune(name); len(runes) > maxLength {
		cut := string(runes[:maxLength])
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
		name = cut
	}

	if name == "" {
		return "Unknown"
	}
	return name
}

// ApplyTemplate substitutes metadata placeholders into a template and
// cleans up segments left empty by missing values.
func ApplyTemplate(template string, m PathMetadata) string {
	series := ""
	if m.Series != "" {
		series = NormalizeFilename(m.Series, 200)
	}
	year := "Unknown"
	if m.Year != 0 {
		year = fmt.Sprintf("%d", m.Year)
	}
	partNum := ""
	if m.PartNumber != 0 {
		partNum = fmt.Sprintf("%02d", m.PartNumber)
	}
	totalParts := ""
	if m.TotalParts != 0 {
		totalParts = fmt.Sprintf("%d", m.TotalParts)
	}

	replacer := strings.NewReplacer(
		"{title}", NormalizeFilename(valueOr(m.Title, "Unknown Title"), 200),
		"{author}", NormalizeFilename(valueOr(m.Author, "Unknown Author"), 200),
		"{author_sort}", NormalizeFilename(m.AuthorSort(), 200),
		"{narrator}", NormalizeFilename(valueOr(m.Narrator, "Unknown Narrator"), 200),
		"{series}", series,
		"{series_index}", m.SeriesIndexFormatted(),
		"{year}", year,
		"{ext}", strings.TrimPrefix(m.Extension, "."),
		"{part_num}", partNum,
		"{total_parts}", totalParts,
	)
	result := replacer.Replace(template)

	result = multiSlash.ReplaceAllString(result, "/")
	result = emptySegment.ReplaceAllString(result, "/")
	result = strings.TrimRight(result, "/ -")
	result = leadingSegDash.ReplaceAllString(result, "/")

	return result
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// GenerateAudiobookPath builds the full target path from templates.
func GenerateAudiobookPath(m PathMetadata, outputRoot, folderTemplate, fileTemplate string) string {
	folderPath := ApplyTemplate(folderTemplate, m)
	filename := ApplyTemplate(fileTemplate, m)

	target := outputRoot
	for _, segment := range strings.Split(folderPath, "/") {
		if segment == "" {
			continue
		}
		target = filepath.Join(target, NormalizeFilename(segment, 200))
	}
	return filepath.Join(target, NormalizeFilename(filename, 200))
}

// GenerateUniquePath suffixes the filename with _1, _2, ... until the path
// collides with neither planned targets nor files on disk.
func GenerateUniquePath(target string, planned map[string]bool) (string, error) {
	if !planned[target] && !pathExists(target) {
		return target, nil
	}

	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(filepath.Base(target), ext)
	dir := filepath.Dir(target)

	for counter := 1; counter <= 1000; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if !planned[candidate] && !pathExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find unique path for %s", target)
}

// GenerateAudiobookPaths picks series or no-series templates, applies them,
// and returns a collision-free target path.
func GenerateAudiobookPaths(m PathMetadata, outputRoot, folderTemplate, fileTemplate string, planned map[string]bool) (string, error) {
	if m.Series != "" {
		if folderTemplate == "" {
			folderTemplate = DefaultAudiobookFolderTemplate
		}
		if fileTemplate == "" {
			if m.PartNumber != 0 {
				fileTemplate = DefaultAudiobookMultifileTemplate
			} else {
				fileTemplate = DefaultAudiobookFileTemplate
			}
		}
	} else {
		if folderTemplate == "" {
			folderTemplate = DefaultAudiobookFolderNoSeries
		}
		if fileTemplate == "" {
			if m.PartNumber != 0 {
				fileTemplate = DefaultAudiobookMultifileTemplate
			} else {
				fileTemplate = DefaultAudiobookFileNoSeries
			}
		}
	}

	target := GenerateAudiobookPath(m, outputRoot, folderTemplate, fileTemplate)
	return GenerateUniquePath(target, planned)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
