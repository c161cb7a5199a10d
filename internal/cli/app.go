package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/fittingap/config"
	"github.com/raine/fittingap/internal/camera"
	"github.com/raine/fittingap/internal/media"
	"github.com/raine/fittingap/internal/recommend"
	"github.com/raine/fittingap/internal/session"
	"github.com/raine/fittingap/internal/submission"
)

const (
	captureAttempts = 20
	captureRetry    = 100 * time.Millisecond
)

// app is one terminal client: a recommendation session plus the resources
// it owns.
type app struct {
	cfg      config.Config
	client   *recommend.Client
	previews *media.TempPreviewStore
	session  *session.Session
	waiter   *eventWaiter
}

func newApp(cfg config.Config, device camera.Device) (*app, error) {
	previews, err := media.NewTempPreviewStore(cfg.PreviewDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		client: recommend.NewClient(recommend.ClientOpts{
			BaseURL:    cfg.BackendURL,
			UploadPath: cfg.UploadPath,
		}),
		previews: previews,
		waiter:   newEventWaiter(),
	}
	a.session = session.New(session.Opts{
		Store:    previews,
		Uploader: a.client,
		Device:   device,
		Listener: a.waiter.listen,
	})

	log.Info().
		Str("backend", a.client.BaseURL()+a.client.UploadPath()).
		Str("previewDir", previews.Dir()).
		Msg("client session started")
	return a, nil
}

// Close ends the session and removes preview files.
func (a *app) Close() {
	a.session.Close()
	if err := a.previews.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to clean up previews")
	}
}

// selectFile loads path as a file dialog selection.
func (a *app) selectFile(path string) error {
	blob, err := media.ReadFile(cleanPath(path), a.cfg.MaxImageBytes)
	if err != nil {
		return err
	}
	return a.session.SelectFile(blob)
}

// dropFile loads path as a dropped file. Terminals paste the path of a file
// dropped onto them, often quoted.
func (a *app) dropFile(path string) error {
	blob, err := media.ReadFile(cleanPath(path), a.cfg.MaxImageBytes)
	if err != nil {
		return err
	}
	return a.session.DropFile(blob)
}

// openCamera starts the camera and waits until it is granted or denied.
func (a *app) openCamera(ctx context.Context) error {
	if err := a.session.StartCamera(); err != nil {
		return err
	}
	// Events left over from an earlier attempt do not end the wait
	for a.session.Snapshot().CameraPending {
		if _, err := a.waiter.wait(ctx, session.EventCameraGranted, session.EventCameraDenied); err != nil {
			return err
		}
	}
	snap := a.session.Snapshot()
	if snap.CameraError != "" {
		return errors.New(snap.CameraError)
	}
	if !snap.CameraActive {
		return camera.ErrNotActive
	}
	return nil
}

// capture takes a still, retrying while the camera has not produced its
// first frame.
func (a *app) capture(ctx context.Context) error {
	var err error
	for i := 0; i < captureAttempts; i++ {
		err = a.session.Capture()
		if !errors.Is(err, camera.ErrNoFrame) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(captureRetry):
		}
	}
	return err
}

// submit sends the current image and description and waits for the
// outcome. A failed request is returned as an error carrying the message
// shown to the user.
func (a *app) submit(ctx context.Context) (session.Snapshot, error) {
	if err := a.session.Submit(); err != nil {
		return a.session.Snapshot(), err
	}
	for {
		if _, err := a.waiter.wait(ctx, session.EventSubmitComplete); err != nil {
			return a.session.Snapshot(), err
		}
		snap := a.session.Snapshot()
		switch snap.Submission.Phase {
		case submission.PhaseSucceeded:
			return snap, nil
		case submission.PhaseFailed:
			return snap, errors.New(snap.Submission.ErrorMessage)
		}
	}
}

// resolveCameraDevice maps a CAMERA_DEVICE value to a device. A path to an
// image file is served by a static camera; anything else is handed to open.
func resolveCameraDevice(id string, open func(id string) camera.Device) camera.Device {
	if info, err := os.Stat(id); err == nil && !info.IsDir() {
		return camera.StaticDevice{Path: id}
	}
	if open == nil {
		return nil
	}
	return open(id)
}

func cleanPath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, `"'`)
	return strings.ReplaceAll(path, `\ `, " ")
}

// eventWaiter turns the session's asynchronous completions into blocking
// waits. Only completion events are recorded.
type eventWaiter struct {
	events chan string
}

func newEventWaiter() *eventWaiter {
	return &eventWaiter{events: make(chan string, 16)}
}

func (w *eventWaiter) listen(eventType string, _ session.Snapshot) {
	switch eventType {
	case session.EventCameraGranted, session.EventCameraDenied, session.EventSubmitComplete:
	default:
		return
	}
	select {
	case w.events <- eventType:
	default:
		log.Warn().Str("event", eventType).Msg("event waiter full, dropping event")
	}
}

// wait blocks until one of types arrives or ctx is done.
func (w *eventWaiter) wait(ctx context.Context, types ...string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("interrupted: %w", ctx.Err())
		case ev := <-w.events:
			for _, t := range types {
				if ev == t {
					return ev, nil
				}
			}
		}
	}
}
