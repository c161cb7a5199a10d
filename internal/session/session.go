// Package session serializes every state transition of one client session on
// a dedicated worker goroutine.
//
// Threading model:
//   - Each session has a worker goroutine that processes events sequentially.
//     Event handlers own the media controller, the submission controller and
//     the results view and touch them without locks.
//   - Blocking work (opening a camera, the upload round trip) runs on helper
//     goroutines that post their completion back to the inbox as events.
//   - Snapshot is safe to call from any goroutine.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/raine/fittingap/internal/camera"
	"github.com/raine/fittingap/internal/media"
	"github.com/raine/fittingap/internal/results"
	"github.com/raine/fittingap/internal/submission"
)

// Event types processed by the worker.
const (
	EventSelectFile     = "select_file"
	EventDropFile       = "drop_file"
	EventStartCamera    = "start_camera"
	EventCameraGranted  = "camera_granted"
	EventCameraDenied   = "camera_denied"
	EventStopCamera     = "stop_camera"
	EventCapture        = "capture"
	EventClear          = "clear"
	EventSetDescription = "set_description"
	EventSubmit         = "submit"
	EventSubmitComplete = "submit_complete"
	EventToggle         = "toggle"
	EventClose          = "close"
)

// CameraErrorMessage is shown after a failed camera acquisition.
const CameraErrorMessage = "Could not access camera"

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Event is a message processed by the session worker.
type Event struct {
	Type  string
	Done  chan struct{} // Closed when processing is complete (for synchronous dispatch)
	Error chan error    // Optional: receives the handler's error

	// Event data (only what Type needs is set)
	Blob      media.Blob
	Text      string
	Index     int
	Stream    camera.Stream
	CameraErr error
	Outcome   submission.Outcome

	attempt uint64
}

// release frees resources carried by an event that will never be handled.
func (e Event) release() {
	if e.Stream != nil {
		if err := e.Stream.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close undelivered camera stream")
		}
	}
	if e.Error != nil {
		e.Error <- ErrClosed
	}
	if e.Done != nil {
		close(e.Done)
	}
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Image         media.CurrentImage
	CameraActive  bool
	CameraPending bool
	CameraError   string
	Submission    submission.State
	Results       results.View
}

// Listener is called on the worker goroutine after every processed event. It
// must not wait for the session, since the worker is blocked until it
// returns.
type Listener func(eventType string, snap Snapshot)

type Opts struct {
	Store    media.PreviewStore
	Uploader submission.Uploader
	// Device is opened by StartCamera. It may be nil, in which case camera
	// acquisition always fails.
	Device   camera.Device
	Listener Listener
	// InboxSize defaults to 16.
	InboxSize int
}

// Session is one user's image, description, submission and results.
type Session struct {
	media    *media.Controller
	submit   *submission.Controller
	device   camera.Device
	listener Listener

	// Worker-owned state
	view          results.View
	cameraPending bool
	cameraAttempt uint64
	cameraCancel  context.CancelFunc
	cameraError   string
	shuttingDown  bool

	mu   sync.Mutex
	snap Snapshot

	// closed is set under postMu so that no event enters the inbox once the
	// worker has started draining it.
	postMu    sync.RWMutex
	closed    bool
	closeOnce sync.Once

	inbox  chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a session and starts its worker.
func New(opts Opts) *Session {
	size := opts.InboxSize
	if size <= 0 {
		size = 16
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		media:    media.NewController(opts.Store),
		submit:   submission.NewController(opts.Uploader),
		device:   opts.Device,
		listener: opts.Listener,
		view:     results.NewView(nil),
		inbox:    make(chan Event, size),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.snap = s.snapshot()

	s.wg.Add(1)
	go s.runWorker()
	return s
}

// Snapshot returns the state as of the last processed event.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// SelectFile makes blob the current image as if chosen in a file dialog.
func (s *Session) SelectFile(blob media.Blob) error {
	return s.call(Event{Type: EventSelectFile, Blob: blob})
}

// DropFile makes blob the current image as a dropped file.
func (s *Session) DropFile(blob media.Blob) error {
	return s.call(Event{Type: EventDropFile, Blob: blob})
}

// StartCamera begins acquiring the camera. It returns once acquisition has
// started; the outcome arrives as a camera_granted or camera_denied event.
func (s *Session) StartCamera() error {
	return s.call(Event{Type: EventStartCamera})
}

// StopCamera stops the camera or abandons a pending acquisition.
func (s *Session) StopCamera() error {
	return s.call(Event{Type: EventStopCamera})
}

// Capture replaces the current image with a still from the live camera.
func (s *Session) Capture() error {
	return s.call(Event{Type: EventCapture})
}

// Clear resets the current image to the placeholder.
func (s *Session) Clear() error {
	return s.call(Event{Type: EventClear})
}

// SetDescription sets the description sent with the next submission.
func (s *Session) SetDescription(description string) error {
	return s.call(Event{Type: EventSetDescription, Text: description})
}

// Submit validates and starts a submission. Validation and busy errors are
// returned directly; the request outcome arrives as a submit_complete event.
func (s *Session) Submit() error {
	return s.call(Event{Type: EventSubmit})
}

// Toggle expands result i, or collapses it when it is already expanded.
func (s *Session) Toggle(i int) error {
	return s.call(Event{Type: EventToggle, Index: i})
}

// Close stops the camera, cancels pending work, releases the current preview
// and stops the worker. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.call(Event{Type: EventClose})

		s.postMu.Lock()
		s.closed = true
		s.postMu.Unlock()

		s.cancel()
		s.wg.Wait()
	})
}

// call dispatches ev and waits for its handler to finish.
func (s *Session) call(ev Event) error {
	ev.Done = make(chan struct{})
	ev.Error = make(chan error, 1)
	if !s.post(ev) {
		return ErrClosed
	}
	<-ev.Done
	select {
	case err := <-ev.Error:
		return err
	default:
		return nil
	}
}

// post queues ev for the worker. It returns false, after releasing the
// event, when the session is closed.
func (s *Session) post(ev Event) bool {
	s.postMu.RLock()
	defer s.postMu.RUnlock()

	if s.closed {
		ev.release()
		return false
	}
	select {
	case s.inbox <- ev:
		return true
	case <-s.ctx.Done():
		ev.release()
		return false
	}
}

// runWorker is the main worker loop that processes events sequentially.
func (s *Session) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Drain any remaining events so no stream or waiter leaks
			for {
				select {
				case ev := <-s.inbox:
					ev.release()
				default:
					return
				}
			}
		case ev := <-s.inbox:
			s.processEvent(ev)
		}
	}
}

// processEvent handles a single event from the inbox.
func (s *Session) processEvent(ev Event) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Str("event", ev.Type).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		s.publish(ev.Type)
		if ev.Done != nil {
			close(ev.Done)
		}
	}()

	if err := s.handle(ev); err != nil {
		if ev.Error != nil {
			ev.Error <- err
		}
	}
}

func (s *Session) publish(eventType string) {
	snap := s.snapshot()

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if s.listener != nil {
		s.listener(eventType, snap)
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Image:         s.media.Current(),
		CameraActive:  s.media.CameraActive(),
		CameraPending: s.cameraPending,
		CameraError:   s.cameraError,
		Submission:    s.submit.State(),
		Results:       s.view,
	}
}
