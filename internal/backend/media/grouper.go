package media

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GroupFile is a single audio file inside a multi-file audiobook.
type GroupFile struct {
	Path        string
	Size        int64
	Meta        AudioMetadata
	TrackNumber int
}

// Group is a folder of audio files consolidated into one audiobook.
type Group struct {
	ID         string
	FolderPath string
	Files      []GroupFile

	Title       string
	Author      string
	Narrator    string
	Series      string
	SeriesIndex float64
	Year        int
	Confidence  float64
}

var trackPatterns = []*regexp.Regexp{
	// "01 - Chapter" or "01."
	regexp.MustCompile(`^(\d+)\s*[-–—.]`),
	// "Track 01", "Part 1", "Chapter 12"
	regexp.MustCompile(`(?i)(?:track|part|chapter)\s*(\d+)`),
	// "- 01" at end
	regexp.MustCompile(`[-–—]\s*(\d+)$`),
}

// trackFromFilename pulls a track number out of common naming patterns,
// returning 0 when none is found.
func trackFromFilename(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, pattern := range trackPatterns {
		if m := pattern.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}

// ShouldGroup reports whether a folder's audio files form one audiobook.
// Single files are never grouped; a lone .m4b is a standalone audiobook.
func ShouldGroup(files []string) bool {
	return len(files) > 1
}

// TotalDurationSeconds sums the duration of all files in the group.
func (g *Group) TotalDurationSeconds() int {
	total := 0
	for _, f := range g.Files {
		total += f.Meta.DurationSeconds
	}
	return total
}

// TotalSizeBytes sums the size of all files in the group.
func (g *Group) TotalSizeBytes() int64 {
	var total int64
	for _, f := range g.Files {
		total += f.Size
	}
	return total
}

// PrimaryFile returns the file used as the metadata source: lowest track
// number first, longest duration as tiebreak.
func (g *Group) PrimaryFile() *GroupFile {
	if len(g.Files) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(g.Files); i++ {
		if groupFileLess(g.Files[i], g.Files[best]) {
			best = i
		}
	}
	return &g.Files[best]
}

func groupFileLess(a, b GroupFile) bool {
	at, bt := a.TrackNumber, b.TrackNumber
	if at == 0 {
		at = 999
	}
	if bt == 0 {
		bt = 999
	}
	if at != bt {
		return at < bt
	}
	return a.Meta.DurationSeconds > b.Meta.DurationSeconds
}

// SortedFiles returns the group's files ordered by track number, then name.
func (g *Group) SortedFiles() []GroupFile {
	files := make([]GroupFile, len(g.Files))
	copy(files, g.Files)
	sort.Slice(files, func(i, j int) bool {
		at, bt := files[i].TrackNumber, files[j].TrackNumber
		if at == 0 {
			at = 999
		}
		if bt == 0 {
			bt = 999
		}
		if at != bt {
			return at < bt
		}
		return strings.ToLower(filepath.Base(files[i].Path)) < strings.ToLower(filepath.Base(files[j].Path))
	})
	return files
}

// Consolidate fills the group's metadata from the primary file's tags,
// gap-fills from folder name parsing, and scores confidence.
func (g *Group) Consolidate() {
	primary := g.PrimaryFile()
	if primary == nil {
		return
	}

	meta := primary.Meta
	g.Title = meta.Title
	if g.Title == "" {
		g.Title = meta.Album
	}
	g.Author = meta.Author
	g.Narrator = meta.Narrator
	g.Year = meta.Year

	if g.FolderPath != "" {
		parsed := ParseFolderPath(g.FolderPath)

		if g.Title == "" && parsed.Title != "" {
			g.Title = parsed.Title
		}
		if g.Author == "" && parsed.Author != "" {
			g.Author = parsed.Author
		}
		if g.Narrator == "" && parsed.Narrator != "" {
			g.Narrator = parsed.Narrator
		}
		if g.Year == 0 && parsed.Year != 0 {
			g.Year = parsed.Year
		}
		if parsed.Series != "" {
			g.Series = parsed.Series
			g.SeriesIndex = parsed.SeriesIndex
		}

		g.Confidence = parsed.Confidence
	}

	// Bare folder name as last resort
	if g.Title == "" && g.FolderPath != "" {
		g.Title = filepath.Base(g.FolderPath)
		g.Confidence = 0.2
	}

	if g.Author != "" {
		g.Confidence += 0.1
	}
	if g.Narrator != "" {
		g.Confidence += 0.1
	}
	if g.Year != 0 {
		g.Confidence += 0.05
	}
	g.Confidence = min(g.Confidence, 1.0)
}

// BuildGroup assembles a Group from a folder's audio files, reading tags
// through reader unless readTags is false. Returns nil when the files
// should not be grouped or none are readable.
func BuildGroup(folderPath string, filePaths []string, reader TagReader, readTags bool) *Group {
	if len(filePaths) == 0 || !ShouldGroup(filePaths) {
		return nil
	}

	group := &Group{
		ID:         uuid.NewString(),
		FolderPath: folderPath,
	}

	sorted := make([]string, len(filePaths))
	copy(sorted, filePaths)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(filepath.Base(sorted[i])) < strings.ToLower(filepath.Base(sorted[j]))
	})

	for _, path := range sorted {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		var meta AudioMetadata
		if readTags && reader != nil {
			meta, _ = reader.ReadTags(path)
		}

		track := meta.TrackNumber
		if track == 0 {
			track = trackFromFilename(path)
		}

		group.Files = append(group.Files, GroupFile{
			Path:        path,
			Size:        info.Size(),
			Meta:        meta,
			TrackNumber: track,
		})
	}

	if len(group.Files) == 0 {
		return nil
	}

	group.Consolidate()
	return group
}
