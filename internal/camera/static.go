package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"
)

// StaticDevice is a camera that always shows the same picture. It is used
// for headless runs and demos where no hardware camera is present.
type StaticDevice struct {
	Path string
}

// Name implements Device.
func (d StaticDevice) Name() string {
	return "static:" + d.Path
}

// Open implements Device. The picture is decoded once per stream.
func (d StaticDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read picture: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode picture: %w", err)
	}
	return &staticStream{img: img}, nil
}

type staticStream struct {
	img    image.Image
	closed atomic.Bool
}

func (s *staticStream) Capture() (Still, error) {
	if s.closed.Load() {
		return Still{}, ErrNotActive
	}
	return EncodeStill(s.img)
}

func (s *staticStream) Close() error {
	s.closed.Store(true)
	return nil
}

// EncodeStill rasterizes img to JPEG at its own resolution.
func EncodeStill(img image.Image) (Still, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return Still{}, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	b := img.Bounds()
	return Still{Width: b.Dx(), Height: b.Dy(), JPEG: buf.Bytes()}, nil
}
