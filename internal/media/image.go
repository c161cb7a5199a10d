package media

import (
	"fmt"
	"net/http"
	"strings"
)

// SourceKind tells how the current image was obtained.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceUploadedFile
	SourceDroppedFile
	SourceCameraCapture
)

// String returns a human-readable name for the SourceKind.
func (k SourceKind) String() string {
	switch k {
	case SourceNone:
		return "None"
	case SourceUploadedFile:
		return "UploadedFile"
	case SourceDroppedFile:
		return "DroppedFile"
	case SourceCameraCapture:
		return "CameraCapture"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Blob is a binary file handed to the client.
type Blob struct {
	Name     string
	MimeType string
	Data     []byte
}

// NewBlob builds a blob, sniffing the MIME type from data when mimeType is
// empty.
func NewBlob(name, mimeType string, data []byte) Blob {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return Blob{Name: name, MimeType: mimeType, Data: data}
}

// IsImage reports whether the blob's MIME type is an image type.
func (b Blob) IsImage() bool {
	return strings.HasPrefix(b.MimeType, "image/")
}

func (b Blob) clone() Blob {
	b.Data = append([]byte(nil), b.Data...)
	return b
}

// CurrentImage is the single image the user intends to submit. A payload is
// present exactly when the kind is not SourceNone, and the preview is always
// defined (the placeholder when there is no payload).
type CurrentImage struct {
	payload *Blob
	preview PreviewRef
	kind    SourceKind
}

// EmptyImage returns the empty current image showing the placeholder.
func EmptyImage() CurrentImage {
	return CurrentImage{preview: Placeholder}
}

func newCurrentImage(kind SourceKind, blob Blob, preview PreviewRef) CurrentImage {
	b := blob.clone()
	return CurrentImage{payload: &b, preview: preview, kind: kind}
}

// Payload returns the image data, or false when there is no image.
func (c CurrentImage) Payload() (Blob, bool) {
	if c.payload == nil {
		return Blob{}, false
	}
	return *c.payload, true
}

// HasPayload reports whether an image is present.
func (c CurrentImage) HasPayload() bool {
	return c.payload != nil
}

// Preview returns the preview reference. It is never empty.
func (c CurrentImage) Preview() PreviewRef {
	if c.preview.IsZero() {
		return Placeholder
	}
	return c.preview
}

// Kind returns how the image was obtained.
func (c CurrentImage) Kind() SourceKind {
	return c.kind
}

// Label is the text shown on the drop surface: the file name, or a hint when
// there is no image.
func (c CurrentImage) Label() string {
	if c.payload == nil {
		return "Drag and drop an image here, or click to browse."
	}
	return c.payload.Name
}
