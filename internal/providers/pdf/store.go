package pdf

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
)

// ErrArtifactMissing is returned when a recorded pdf_path no longer
// resolves to a file on disk.
var ErrArtifactMissing = errors.New("pdf artifact missing")

// Store persists rendered PDF artifacts on the local filesystem.
// Filenames are ulids so paths never leak document numbers.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the artifact and returns its path relative to nothing in
// particular; the returned value is what goes into pdf_path.
func (s *Store) Save(data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, ulid.Make().String()+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Open streams a stored artifact. Missing files report
// ErrArtifactMissing so callers can map them to not-found.
func (s *Store) Open(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrArtifactMissing
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
