package media

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// DefaultMaxImageSize is the default maximum image size (10MB)
const DefaultMaxImageSize = 10 * 1024 * 1024

// ImageExtensions are the file extensions offered by file pickers.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

// RequireImage returns ErrNotImage unless blob has an image MIME type. Input
// surfaces call this the way a file picker restricts itself to image/*.
func RequireImage(blob Blob) error {
	if !blob.IsImage() {
		return fmt.Errorf("%w: %s (%s)", ErrNotImage, blob.Name, blob.MimeType)
	}
	return nil
}

// ReadFile loads an image file from disk, enforcing maxSize (<= 0 means
// DefaultMaxImageSize). The MIME type comes from the extension, falling back
// to content sniffing.
func ReadFile(path string, maxSize int64) (Blob, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}

	f, err := os.Open(path)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	// Read one byte past the limit to detect oversized files
	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return Blob{}, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxSize {
		return Blob{}, fmt.Errorf("image too large: exceeds limit of %d bytes", maxSize)
	}

	name := filepath.Base(path)
	blob := NewBlob(name, mime.TypeByExtension(filepath.Ext(name)), data)
	if err := RequireImage(blob); err != nil {
		return Blob{}, err
	}
	return blob, nil
}
