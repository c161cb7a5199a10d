// Package opencv provides a camera.Device backed by an OpenCV video capture.
package opencv

import (
	"context"
	"fmt"
	"sync"

	"github.com/raine/fittingap/internal/camera"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Device is a local capture device identified by its OpenCV index (0 is the
// default webcam) or by a URL/file path understood by OpenCV.
type Device struct {
	ID string
}

// Name implements camera.Device.
func (d Device) Name() string {
	return "opencv:" + d.ID
}

type openResult struct {
	capture *gocv.VideoCapture
	err     error
}

// Open implements camera.Device. OpenCV has no cancellable open, so the open
// runs on its own goroutine; when ctx ends first the late capture is closed
// as soon as it arrives.
func (d Device) Open(ctx context.Context) (camera.Stream, error) {
	done := make(chan openResult, 1)
	go func() {
		capture, err := gocv.OpenVideoCapture(d.ID)
		done <- openResult{capture: capture, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-done; res.capture != nil {
				res.capture.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to open capture device: %w", res.err)
		}
		if !res.capture.IsOpened() {
			res.capture.Close()
			return nil, fmt.Errorf("capture device %s is not opened", d.ID)
		}
		log.Info().Str("device", d.ID).Msg("camera opened")
		return &stream{capture: res.capture}, nil
	}
}

type stream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// Capture reads the current frame and encodes it as JPEG at the capture's
// native resolution.
func (s *stream) Capture() (camera.Still, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return camera.Still{}, camera.ErrNotActive
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		return camera.Still{}, camera.ErrNoFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return camera.Still{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, so copy the bytes out.
	data := append([]byte(nil), buf.GetBytes()...)
	return camera.Still{Width: mat.Cols(), Height: mat.Rows(), JPEG: data}, nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}
