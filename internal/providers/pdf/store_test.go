package pdf

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreSaveAndOpen(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pdfs"))

	payload := []byte("%PDF-1.7 test artifact")
	path, err := store.Save(payload)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(path, ".pdf") {
		t.Fatalf("path = %q, want .pdf suffix", path)
	}

	reader, size, err := store.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	if size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", size, len(payload))
	}
	read, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(read) != string(payload) {
		t.Fatalf("read back %q", read)
	}
}

func TestStorePathsAreUnique(t *testing.T) {
	store := NewStore(t.TempDir())

	first, err := store.Save([]byte("a"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := store.Save([]byte("b"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first == second {
		t.Fatalf("both artifacts saved to %q", first)
	}
}

func TestStoreOpenMissingArtifact(t *testing.T) {
	store := NewStore(t.TempDir())

	_, _, err := store.Open(filepath.Join(t.TempDir(), "gone.pdf"))
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("err = %v, want ErrArtifactMissing", err)
	}
}
