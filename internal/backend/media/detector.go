package media

import (
	"path/filepath"
	"strings"

	"media-organizer/internal/backend/models"
)

// Detector classifies files by extension and folder context.
type Detector struct {
	audiobookExts map[string]bool
	ebookExts     map[string]bool
	comicExts     map[string]bool
	folderPattern string
}

// NewDetector builds a detector from the configured extension lists.
// folderPattern is a lowercase substring that marks audiobook folders.
func NewDetector(audiobookExts, ebookExts, comicExts []string, folderPattern string) *Detector {
	return &Detector{
		audiobookExts: extSet(audiobookExts),
		ebookExts:     extSet(ebookExts),
		comicExts:     extSet(comicExts),
		folderPattern: strings.ToLower(folderPattern),
	}
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = true
	}
	return set
}

// Detect returns the media type for a file path, or MediaTypeUnknown when
// the extension is not recognized. Ebook and comic extensions are
// unambiguous. Audio extensions classify as audiobook; .m4b and files under
// a folder matching the audiobook pattern are definitive, plain audio files
// rely on duration verification downstream.
func (d *Detector) Detect(path string) models.MediaType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case d.ebookExts[ext]:
		return models.MediaTypeEbook
	case d.comicExts[ext]:
		return models.MediaTypeComic
	case d.audiobookExts[ext]:
		return models.MediaTypeAudiobook
	default:
		return models.MediaTypeUnknown
	}
}

// IsDefinitiveAudiobook reports whether the file needs no duration check:
// .m4b is an audiobook container, and anything under an audiobook folder
// is taken at face value.
func (d *Detector) IsDefinitiveAudiobook(path string) bool {
	if strings.ToLower(filepath.Ext(path)) == ".m4b" {
		return true
	}
	if d.folderPattern == "" {
		return false
	}
	return strings.Contains(strings.ToLower(filepath.Dir(path)), d.folderPattern)
}

// Supported reports whether the extension belongs to any media type.
func (d *Detector) Supported(path string) bool {
	return d.Detect(path) != models.MediaTypeUnknown
}

var skippedFolderNames = map[string]bool{
	"node_modules": true,
	".git":         true,
	".svn":         true,
}

var skippedFileNames = map[string]bool{
	"thumbs.db":   true,
	"desktop.ini": true,
}

// SkipFolder reports whether a directory should be pruned from the walk.
func SkipFolder(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "__") || strings.HasPrefix(name, "$") {
		return true
	}
	return skippedFolderNames[strings.ToLower(name)]
}

// SkipFile reports whether a file is OS litter that should be ignored.
func SkipFile(name string) bool {
	return skippedFileNames[strings.ToLower(name)]
}
