package record

const (
	// DefaultArtist is used when an image's artist is unknown.
	DefaultArtist = "Unknown Artist"
	// DefaultYear is used when an image's year is unknown.
	DefaultYear = "N/A"
)

// Record describes one ingested image.
type Record struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Tag      string `json:"tag"`
	Artist   string `json:"artist"`
	Year     string `json:"year"`
}

// New returns a record with placeholder provenance.
func New(id int, filename, path, tag string) Record {
	return Record{
		ID:       id,
		Filename: filename,
		Path:     path,
		Tag:      tag,
		Artist:   DefaultArtist,
		Year:     DefaultYear,
	}
}
