package media

// AudioMetadata holds tag values embedded in an audio file.
type AudioMetadata struct {
	Title           string
	Author          string
	Album           string
	Narrator        string
	Genre           string
	Year            int
	TrackNumber     int
	TotalTracks     int
	DurationSeconds int
}

// TagReader extracts embedded metadata from audio files. Scanning degrades
// gracefully without one: filename heuristics carry the load and duration
// verification treats unreadable files as keepers.
type TagReader interface {
	ReadTags(path string) (AudioMetadata, error)
	Duration(path string) int
}

// NoopTagReader reads no tags. It is the default reader; metadata then
// comes entirely from file and folder names.
type NoopTagReader struct{}

func (NoopTagReader) ReadTags(path string) (AudioMetadata, error) { return AudioMetadata{}, nil }
func (NoopTagReader) Duration(path string) int                    { return 0 }
