// Package camera models a camera device and the live session that holds it
// open. A Session owns at most one Stream and guarantees the stream is closed
// on every path that ends the session.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrAccess is returned when the camera could not be opened, either
	// because permission was denied or because no device is present.
	ErrAccess = errors.New("could not access camera")
	// ErrNotActive is returned by Capture when no stream is bound.
	ErrNotActive = errors.New("camera is not active")
	// ErrNoFrame is returned when the stream has no frame ready yet.
	ErrNoFrame = errors.New("no camera frame available")
)

// StillFileName and StillMimeType describe captured stills.
const (
	StillFileName = "camera-photo.jpg"
	StillMimeType = "image/jpeg"
)

// Still is a single JPEG-encoded frame at the device's native resolution.
type Still struct {
	Width  int
	Height int
	JPEG   []byte
}

// Stream is a live handle on a camera device.
type Stream interface {
	// Capture grabs the current frame. It returns ErrNoFrame when the device
	// has not produced a frame yet.
	Capture() (Still, error)
	// Close stops every underlying track. It must be safe to call once.
	Close() error
}

// Device opens camera streams. Open may block for as long as the platform
// needs (permission prompts, slow devices); it returns when ctx is done.
type Device interface {
	Open(ctx context.Context) (Stream, error)
	Name() string
}

// Acquire opens a stream on device. Any failure is reported as ErrAccess with
// the underlying cause attached.
func Acquire(ctx context.Context, device Device) (Stream, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: no camera device configured", ErrAccess)
	}
	stream, err := device.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrAccess) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrAccess, device.Name(), err)
	}
	if stream == nil {
		return nil, fmt.Errorf("%w: %s returned no stream", ErrAccess, device.Name())
	}
	return stream, nil
}

// Session is the live camera session. The zero value is an inactive session.
type Session struct {
	mu     sync.Mutex
	stream Stream
}

// Active reports whether a stream is bound.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Bind makes stream the live stream. It fails if a stream is already bound;
// the caller keeps ownership of stream in that case.
func (s *Session) Bind(stream Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return errors.New("camera already active")
	}
	s.stream = stream
	return nil
}

// Release stops the bound stream, if any. It is a no-op on an inactive
// session.
func (s *Session) Release() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close camera stream")
	} else {
		log.Debug().Msg("camera stream released")
	}
}

// Capture grabs a still from the live stream. The session stays active; the
// caller decides whether to release it.
func (s *Session) Capture() (Still, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return Still{}, ErrNotActive
	}
	still, err := stream.Capture()
	if err != nil {
		return Still{}, err
	}
	if len(still.JPEG) == 0 {
		return Still{}, ErrNoFrame
	}
	return still, nil
}
