package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var mediaIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// MediaStore persists raw image bytes and thumbnails on disk, keyed by media
// ID. Originals are kept verbatim so later verification runs re-normalize
// deterministically from the same bytes.
type MediaStore struct {
	root string
}

// NewMediaStore creates the root directory if needed.
func NewMediaStore(root string) (*MediaStore, error) {
	if root == "" {
		return nil, fmt.Errorf("media root path is empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &MediaStore{root: root}, nil
}

// SaveRaw stores the original uploaded bytes for mediaID.
func (m *MediaStore) SaveRaw(mediaID string, data []byte) error {
	path, err := m.path(mediaID, "bin")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveThumbnail stores the JPEG thumbnail for mediaID.
func (m *MediaStore) SaveThumbnail(mediaID string, jpegData []byte) error {
	path, err := m.path(mediaID, "thumb.jpg")
	if err != nil {
		return err
	}
	return os.WriteFile(path, jpegData, 0644)
}

// Raw returns the original bytes for mediaID.
func (m *MediaStore) Raw(mediaID string) ([]byte, error) {
	path, err := m.path(mediaID, "bin")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("media %s: %w", mediaID, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Thumbnail returns the JPEG thumbnail for mediaID.
func (m *MediaStore) Thumbnail(mediaID string) ([]byte, error) {
	path, err := m.path(mediaID, "thumb.jpg")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("media %s thumbnail: %w", mediaID, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// UsageBytes returns the total size of all stored media.
func (m *MediaStore) UsageBytes() (int64, error) {
	return DiskUsageBytes(m.root)
}

// Media IDs come from uploads indirectly; constrain them so they can never
// escape the root directory.
func (m *MediaStore) path(mediaID, ext string) (string, error) {
	if !mediaIDPattern.MatchString(mediaID) {
		return "", fmt.Errorf("invalid media id %q", mediaID)
	}
	return filepath.Join(m.root, mediaID+"."+ext), nil
}
