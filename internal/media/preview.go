package media

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// placeholderID identifies the built-in preview shown when there is no image.
const placeholderID = "placeholder"

// PreviewRef is an opaque handle a UI can render as an image. Temporary refs
// point at a file owned by a PreviewStore and must be revoked when superseded.
type PreviewRef struct {
	ID   string
	Path string
}

// Placeholder is the static default preview. It is never revoked.
var Placeholder = PreviewRef{ID: placeholderID}

// IsPlaceholder reports whether r is the static default preview.
func (r PreviewRef) IsPlaceholder() bool {
	return r.ID == placeholderID
}

// IsZero reports whether r is unset.
func (r PreviewRef) IsZero() bool {
	return r.ID == ""
}

// PreviewStore issues and revokes temporary preview refs.
type PreviewStore interface {
	Create(blob Blob) (PreviewRef, error)
	Revoke(ref PreviewRef) error
}

// TempPreviewStore writes previews as files under a directory and removes
// them on revoke.
type TempPreviewStore struct {
	dir  string
	mu   sync.Mutex
	live map[string]string
}

// NewTempPreviewStore creates a store under dir. An empty dir uses a fresh
// directory under the OS temp dir.
func NewTempPreviewStore(dir string) (*TempPreviewStore, error) {
	if dir == "" {
		d, err := os.MkdirTemp("", "fittingap-preview-")
		if err != nil {
			return nil, fmt.Errorf("failed to create preview dir: %w", err)
		}
		dir = d
	} else if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create preview dir: %w", err)
	}
	return &TempPreviewStore{dir: dir, live: make(map[string]string)}, nil
}

// Dir returns the directory previews are written to.
func (s *TempPreviewStore) Dir() string {
	return s.dir
}

// Create writes blob to a new preview file.
func (s *TempPreviewStore) Create(blob Blob) (PreviewRef, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dir, id+previewExt(blob))
	if err := os.WriteFile(path, blob.Data, 0600); err != nil {
		return PreviewRef{}, fmt.Errorf("failed to write preview: %w", err)
	}

	s.mu.Lock()
	s.live[id] = path
	s.mu.Unlock()

	return PreviewRef{ID: id, Path: path}, nil
}

// Revoke removes the preview file behind ref. Revoking the placeholder or an
// unknown ref is a no-op.
func (s *TempPreviewStore) Revoke(ref PreviewRef) error {
	if ref.IsPlaceholder() || ref.IsZero() {
		return nil
	}

	s.mu.Lock()
	path, ok := s.live[ref.ID]
	delete(s.live, ref.ID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove preview: %w", err)
	}
	return nil
}

// Live returns the number of previews not yet revoked.
func (s *TempPreviewStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Close revokes every live preview.
func (s *TempPreviewStore) Close() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.live))
	for id, path := range s.live {
		paths = append(paths, path)
		delete(s.live, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		log.Warn().Int("count", len(errs)).Msg("failed to remove some previews")
	}
	return errors.Join(errs...)
}

func previewExt(blob Blob) string {
	if ext := filepath.Ext(blob.Name); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(blob.MimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
