// Package media owns the current image and the camera session that can
// produce it.
//
// Threading model: a Controller is not safe for concurrent use. It is driven
// by a single goroutine (the session worker); blocking work such as opening a
// camera happens elsewhere and is handed over with BindCamera.
package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/raine/fittingap/internal/camera"
	"github.com/rs/zerolog/log"
)

// ErrNotImage is returned when a selected file is not an image.
var ErrNotImage = errors.New("selected file is not an image")

// Controller owns the current image and the camera session.
type Controller struct {
	store   PreviewStore
	camera  camera.Session
	current CurrentImage
}

// NewController creates a controller with an empty current image.
func NewController(store PreviewStore) *Controller {
	return &Controller{
		store:   store,
		current: EmptyImage(),
	}
}

// Current returns the current image.
func (c *Controller) Current() CurrentImage {
	return c.current
}

// CameraActive reports whether a live camera stream is bound.
func (c *Controller) CameraActive() bool {
	return c.camera.Active()
}

// SelectFromDialog makes blob the current image as an uploaded file. Callers
// restrict the picker to image types; the type is not checked again here.
func (c *Controller) SelectFromDialog(blob Blob) error {
	return c.replace(SourceUploadedFile, blob)
}

// SelectFromDrop makes blob the current image as a dropped file.
func (c *Controller) SelectFromDrop(blob Blob) error {
	return c.replace(SourceDroppedFile, blob)
}

// StartCamera opens device and binds the stream. It blocks until the device
// is open or ctx is done. On failure the camera stays inactive and the
// returned error wraps camera.ErrAccess.
//
// This is the synchronous form for single-goroutine callers such as the
// capture-still tool. The session worker must not block, so it runs
// camera.Acquire on a helper goroutine and hands the stream to BindCamera.
func (c *Controller) StartCamera(ctx context.Context, device camera.Device) error {
	if c.camera.Active() {
		return nil
	}
	stream, err := camera.Acquire(ctx, device)
	if err != nil {
		log.Warn().Err(err).Msg("camera access failed")
		return err
	}
	return c.BindCamera(stream)
}

// BindCamera binds an already opened stream. If a stream is already bound the
// new one is closed, so a late grant never leaks a device handle.
func (c *Controller) BindCamera(stream camera.Stream) error {
	if err := c.camera.Bind(stream); err != nil {
		if cerr := stream.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close surplus camera stream")
		}
		return err
	}
	log.Info().Msg("camera started")
	return nil
}

// StopCamera stops every track of the live stream. It is a no-op when the
// camera is not active.
func (c *Controller) StopCamera() {
	if !c.camera.Active() {
		return
	}
	c.camera.Release()
	log.Info().Msg("camera stopped")
}

// CaptureStill replaces the current image with a JPEG of the current camera
// frame and then stops the camera. When no frame is available yet nothing
// changes and camera.ErrNoFrame is returned.
func (c *Controller) CaptureStill() error {
	still, err := c.camera.Capture()
	if err != nil {
		if errors.Is(err, camera.ErrNoFrame) {
			log.Warn().Msg("capture requested before a camera frame was available")
		}
		return err
	}

	blob := Blob{Name: camera.StillFileName, MimeType: camera.StillMimeType, Data: still.JPEG}
	if err := c.replace(SourceCameraCapture, blob); err != nil {
		return err
	}
	log.Info().Int("width", still.Width).Int("height", still.Height).Msg("captured still")

	c.StopCamera()
	return nil
}

// Clear resets the current image to the placeholder. The camera is left as
// it is.
func (c *Controller) Clear() {
	c.revoke(c.current.Preview())
	c.current = EmptyImage()
	log.Debug().Msg("current image cleared")
}

// Close stops the camera and releases the current preview. The controller
// must not be used afterwards.
func (c *Controller) Close() {
	c.StopCamera()
	c.Clear()
}

func (c *Controller) replace(kind SourceKind, blob Blob) error {
	if len(blob.Data) == 0 {
		return fmt.Errorf("empty %s", kind)
	}
	preview, err := c.store.Create(blob)
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}

	c.revoke(c.current.Preview())
	c.current = newCurrentImage(kind, blob, preview)
	log.Info().
		Str("source", kind.String()).
		Str("name", blob.Name).
		Int("bytes", len(blob.Data)).
		Msg("current image replaced")
	return nil
}

func (c *Controller) revoke(ref PreviewRef) {
	if ref.IsPlaceholder() {
		return
	}
	if err := c.store.Revoke(ref); err != nil {
		log.Warn().Err(err).Str("preview", ref.ID).Msg("failed to revoke preview")
	}
}
