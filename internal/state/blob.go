// internal/state/blob.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/crewdesk/internal/types"
)

// BlobScheme prefixes every locator handed out by BlobStore.
const BlobScheme = "blob:"

// blobMeta is the sidecar written next to each payload.
type blobMeta struct {
	ID        types.MediaID `json:"id"`
	MimeType  string        `json:"mime_type"`
	File      string        `json:"file"`
	Size      int           `json:"size"`
	CreatedAt time.Time     `json:"created_at"`
}

// BlobStore stores generated media payloads as files under media/,
// one payload plus one <id>.json sidecar per blob.
type BlobStore struct {
	root string
}

// NewBlobStore creates a file-backed BlobStore rooted at the given directory.
func NewBlobStore(root string) *BlobStore {
	return &BlobStore{root: root}
}

func (b *BlobStore) mediaDir() string {
	return filepath.Join(b.root, "media")
}

func (b *BlobStore) metaPath(id types.MediaID) string {
	return filepath.Join(b.mediaDir(), string(id)+".json")
}

// Put stores data and returns a "blob:<id>" locator.
func (b *BlobStore) Put(_ context.Context, data []byte, mimeType string) (string, error) {
	id := types.NewMediaID()
	file := string(id) + extensionFor(mimeType)

	if err := os.MkdirAll(b.mediaDir(), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(b.mediaDir(), file), data); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	meta, err := json.MarshalIndent(&blobMeta{
		ID:        id,
		MimeType:  mimeType,
		File:      file,
		Size:      len(data),
		CreatedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal blob meta: %w", err)
	}
	if err := writeAtomic(b.metaPath(id), meta); err != nil {
		return "", fmt.Errorf("write blob meta: %w", err)
	}

	return BlobScheme + string(id), nil
}

// Get returns the payload and MIME type behind a locator.
func (b *BlobStore) Get(_ context.Context, locator string) ([]byte, string, error) {
	meta, err := b.readMeta(locator)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filepath.Join(b.mediaDir(), meta.File))
	if err != nil {
		return nil, "", fmt.Errorf("read blob: %w", err)
	}
	return data, meta.MimeType, nil
}

// FilePath resolves a locator to the payload file on disk.
func (b *BlobStore) FilePath(locator string) (string, error) {
	meta, err := b.readMeta(locator)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.mediaDir(), meta.File), nil
}

func (b *BlobStore) readMeta(locator string) (*blobMeta, error) {
	id, ok := strings.CutPrefix(locator, BlobScheme)
	if !ok || id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid blob locator: %s", locator)
	}

	data, err := os.ReadFile(b.metaPath(types.MediaID(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", id)
		}
		return nil, fmt.Errorf("read blob meta: %w", err)
	}

	var meta blobMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &types.PersistenceCorruptionError{Path: b.metaPath(types.MediaID(id)), Err: err}
	}
	return &meta, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return ".mp4"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
