package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/raine/fittingap/internal/camera"
)

func (s *Session) handle(ev Event) error {
	switch ev.Type {
	case EventSelectFile:
		return s.handleSelection(s.media.SelectFromDialog(ev.Blob))
	case EventDropFile:
		return s.handleSelection(s.media.SelectFromDrop(ev.Blob))
	case EventStartCamera:
		return s.handleStartCamera()
	case EventCameraGranted:
		s.handleCameraGranted(ev)
	case EventCameraDenied:
		s.handleCameraDenied(ev)
	case EventStopCamera:
		s.abandonCamera()
		s.media.StopCamera()
	case EventCapture:
		return s.handleSelection(s.media.CaptureStill())
	case EventClear:
		s.media.Clear()
	case EventSetDescription:
		s.submit.SetDescription(ev.Text)
	case EventSubmit:
		return s.handleSubmit()
	case EventSubmitComplete:
		if items, ok := s.submit.Complete(ev.Outcome); ok {
			s.view = s.view.Replace(items)
		}
	case EventToggle:
		s.view = s.view.Toggle(ev.Index)
	case EventClose:
		s.handleClose()
	default:
		return fmt.Errorf("unknown session event: %s", ev.Type)
	}
	return nil
}

// handleSelection collapses the results view after the current image was
// replaced, whichever way it was obtained.
func (s *Session) handleSelection(err error) error {
	if err != nil {
		return err
	}
	s.view = s.view.Collapse()
	return nil
}

func (s *Session) handleStartCamera() error {
	if s.shuttingDown {
		return ErrClosed
	}
	if s.media.CameraActive() || s.cameraPending {
		return nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cameraAttempt++
	s.cameraPending = true
	s.cameraCancel = cancel
	s.cameraError = ""

	attempt := s.cameraAttempt
	device := s.device
	go func() {
		stream, err := camera.Acquire(ctx, device)
		if err != nil {
			s.post(Event{Type: EventCameraDenied, CameraErr: err, attempt: attempt})
			return
		}
		s.post(Event{Type: EventCameraGranted, Stream: stream, attempt: attempt})
	}()

	log.Info().Uint64("attempt", attempt).Msg("camera acquisition started")
	return nil
}

// handleCameraGranted binds a granted stream, or closes it when the attempt
// was abandoned in the meantime.
func (s *Session) handleCameraGranted(ev Event) {
	if s.shuttingDown || !s.cameraPending || ev.attempt != s.cameraAttempt {
		log.Info().Uint64("attempt", ev.attempt).Msg("closing camera stream granted after it was abandoned")
		if err := ev.Stream.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close abandoned camera stream")
		}
		return
	}
	s.finishCameraAttempt()

	if err := s.media.BindCamera(ev.Stream); err != nil {
		log.Warn().Err(err).Msg("failed to bind camera stream")
	}
}

func (s *Session) handleCameraDenied(ev Event) {
	if !s.cameraPending || ev.attempt != s.cameraAttempt {
		return
	}
	s.finishCameraAttempt()
	s.cameraError = CameraErrorMessage
	log.Warn().Err(ev.CameraErr).Msg("camera access denied")
}

// abandonCamera cancels a pending acquisition. A stream granted later is
// closed on arrival.
func (s *Session) abandonCamera() {
	if !s.cameraPending {
		return
	}
	s.finishCameraAttempt()
	s.cameraAttempt++
	log.Info().Msg("pending camera acquisition abandoned")
}

func (s *Session) finishCameraAttempt() {
	s.cameraPending = false
	if s.cameraCancel != nil {
		s.cameraCancel()
		s.cameraCancel = nil
	}
}

func (s *Session) handleSubmit() error {
	if s.shuttingDown {
		return ErrClosed
	}
	req, err := s.submit.Begin(s.media.Current())
	if err != nil {
		return err
	}
	s.view = s.view.Clear()

	go func() {
		out := s.submit.Execute(s.ctx, req)
		s.post(Event{Type: EventSubmitComplete, Outcome: out})
	}()
	return nil
}

func (s *Session) handleClose() {
	s.shuttingDown = true
	s.abandonCamera()
	s.media.Close()
	log.Info().Msg("session closed")
}
