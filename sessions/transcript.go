package sessions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/tidwall/sjson"
)

// TranscriptStore persists finished transcripts. Saves replace the previous
// snapshot for the same user/key pair; nothing in the service reads them back.
type TranscriptStore interface {
	Save(ctx context.Context, user, key string, turns []Turn) error
}

// BlobStore writes transcripts to the local filesystem as
// <root>/<user>/<key>.json, one JSON array of role/content records per file.
type BlobStore struct {
	Root string
}

// NewBlobStore roots a filesystem transcript store at dir.
func NewBlobStore(dir string) *BlobStore {
	return &BlobStore{Root: dir}
}

func (b *BlobStore) Save(_ context.Context, user, key string, turns []Turn) error {
	doc, err := encodeTranscript(turns)
	if err != nil {
		return err
	}

	dir := filepath.Join(b.Root, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("transcript dir: %w", err)
	}
	path := filepath.Join(dir, key+".json")

	// Write-then-rename so a crashed save never leaves a torn file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0o644); err != nil {
		return fmt.Errorf("transcript write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("transcript rename: %w", err)
	}
	return nil
}

// encodeTranscript builds the JSON array one element at a time so a single
// odd turn surfaces as an error for that save instead of a panic.
func encodeTranscript(turns []Turn) ([]byte, error) {
	doc := []byte("[]")
	for i, turn := range turns {
		raw, err := json.Marshal(turn)
		if err != nil {
			return nil, fmt.Errorf("transcript turn %d: %w", i, err)
		}
		doc, err = sjson.SetRawBytes(doc, "-1", raw)
		if err != nil {
			return nil, fmt.Errorf("transcript turn %d: %w", i, err)
		}
	}
	return doc, nil
}
