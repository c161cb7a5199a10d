package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raine/fittingap/config"
	"github.com/raine/fittingap/internal/camera"
	"github.com/raine/fittingap/internal/camera/opencv"
	"github.com/raine/fittingap/internal/media"
)

func main() {
	var deviceID, out string
	var timeout time.Duration

	flag.StringVar(&deviceID, "device", "", "camera index or URL (default CAMERA_DEVICE)")
	flag.StringVar(&out, "out", camera.StillFileName, "file to write the JPEG to")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the camera")
	flag.Parse()

	config.LoadEnvFile()
	if deviceID == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		deviceID = cfg.CameraDevice
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := run(ctx, opencv.Device{ID: deviceID}, out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, device camera.Device, out string) error {
	previews, err := media.NewTempPreviewStore("")
	if err != nil {
		return err
	}
	defer previews.Close()

	controller := media.NewController(previews)
	defer controller.Close()

	if err := controller.StartCamera(ctx, device); err != nil {
		return err
	}
	fmt.Println("Camera opened, waiting for a frame...")

	if err := captureStill(ctx, controller); err != nil {
		return fmt.Errorf("error capturing still: %w", err)
	}

	still, _ := controller.Current().Payload()
	if err := os.WriteFile(out, still.Data, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", out, err)
	}
	fmt.Printf("Wrote still to %s (%d bytes)\n", out, len(still.Data))
	return nil
}

// captureStill retries until the camera has produced its first frame.
// Webcams often need a moment after opening.
func captureStill(ctx context.Context, controller *media.Controller) error {
	for {
		err := controller.CaptureStill()
		if !errors.Is(err, camera.ErrNoFrame) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no frame before timeout: %w", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}
