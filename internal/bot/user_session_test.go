package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/fittingap/internal/media"
	"github.com/raine/fittingap/internal/recommend"
	"github.com/raine/fittingap/internal/session"
	"github.com/raine/fittingap/internal/submission"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

// recordingHandler drives the client session the way Bot does for each
// message type and records what it saw. Messages of type block wait for
// release after signalling started.
type recordingHandler struct {
	mu      sync.Mutex
	log     []string
	block   string
	started chan struct{}
	release chan struct{}
}

func newRecordingHandler(block string) *recordingHandler {
	return &recordingHandler{
		block:   block,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (h *recordingHandler) HandleSessionMessage(ctx context.Context, s *UserSession, msg SessionMessage) {
	h.record(msg.Type)
	if msg.Type == h.block {
		close(h.started)
		<-h.release
	}

	switch msg.Type {
	case "photo":
		if err := s.client.DropFile(media.NewBlob("photo.jpg", "image/jpeg", jpegBytes)); err != nil {
			h.record("photo error: " + err.Error())
		}
	case "text":
		if err := s.client.SetDescription(msg.Message.Text); err != nil {
			h.record("text error: " + err.Error())
			return
		}
		if err := s.client.Submit(); err != nil {
			h.record("text error: " + err.Error())
		}
	case "callback":
		// Panics on a malformed update without a query
		h.record("callback " + msg.CallbackQuery.Data + " sees " + s.client.Snapshot().Image.Kind().String())
	case "submit_complete":
		h.record("submit_complete " + msg.Snapshot.Submission.Phase.String())
	}
}

func (h *recordingHandler) record(entry string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = append(h.log, entry)
}

func (h *recordingHandler) getLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.log...)
}

// newTestUserSession wires a worker to a real client session the way
// BotState does, with handler in place of the bot.
func newTestUserSession(t *testing.T, handler MessageHandler, uploader submission.Uploader) *UserSession {
	t.Helper()
	previews, err := media.NewTempPreviewStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := &UserSession{
		userId: 7,
		inbox:  make(chan SessionMessage, 10),
		ctx:    ctx,
		cancel: cancel,
	}
	s.client = session.New(session.Opts{
		Store:    previews,
		Uploader: uploader,
		Listener: s.forwardClientEvent,
	})
	s.SetHandler(handler)
	s.StartWorker()
	t.Cleanup(s.Stop)
	return s
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: 7}, From: &tgbotapi.User{ID: 7}}
}

func TestWorker_ForwardsOnlySubmitCompleteFromClient(t *testing.T) {
	handler := newRecordingHandler("")
	s := newTestUserSession(t, handler, &fakeUploader{products: []recommend.Product{{Name: "Dress"}}})

	s.SendSync(SessionMessage{Type: "photo", Ctx: context.Background()})
	s.SendSync(SessionMessage{Type: "text", Ctx: context.Background(), Message: textMessage("summer dress")})

	// drop_file, set_description and submit events stay inside the client
	assert.Eventually(t, func() bool {
		return len(handler.getLog()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"photo", "text", "submit_complete Succeeded"}, handler.getLog())

	snap := s.client.Snapshot()
	assert.Equal(t, 1, snap.Results.Len())
	assert.Equal(t, "summer dress", snap.Submission.Description)
}

func TestWorker_ForwardsFailedSubmission(t *testing.T) {
	handler := newRecordingHandler("")
	s := newTestUserSession(t, handler, &fakeUploader{err: &recommend.StatusError{StatusCode: 500, StatusText: "Internal Server Error"}})

	s.SendSync(SessionMessage{Type: "text", Ctx: context.Background(), Message: textMessage("jeans")})

	assert.Eventually(t, func() bool {
		return len(handler.getLog()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "submit_complete Failed", handler.getLog()[1])
	assert.Equal(t, "Server error: Internal Server Error", s.client.Snapshot().Submission.ErrorMessage)
}

func TestWorker_CallbackWaitsForPhoto(t *testing.T) {
	handler := newRecordingHandler("photo")
	s := newTestUserSession(t, handler, &fakeUploader{})

	s.Send(SessionMessage{Type: "photo", Ctx: context.Background()})
	waitFor(t, handler.started)

	done := make(chan struct{})
	go func() {
		s.SendSync(SessionMessage{
			Type:          "callback",
			Ctx:           context.Background(),
			CallbackQuery: &tgbotapi.CallbackQuery{ID: "q", Data: "item:0"},
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("callback handled while the photo was still being processed")
	case <-time.After(50 * time.Millisecond):
	}

	close(handler.release)
	waitFor(t, done)

	// the callback observes the image the photo handler stored
	assert.Equal(t, []string{"photo", "callback", "callback item:0 sees DroppedFile"}, handler.getLog())
}

func TestWorker_PanicRecovery(t *testing.T) {
	handler := newRecordingHandler("")
	s := newTestUserSession(t, handler, &fakeUploader{})

	s.SendSync(SessionMessage{Type: "callback", Ctx: context.Background()})
	s.SendSync(SessionMessage{Type: "photo", Ctx: context.Background()})

	assert.Equal(t, []string{"callback", "photo"}, handler.getLog())
	assert.Equal(t, media.SourceDroppedFile, s.client.Snapshot().Image.Kind())
}

func TestWorker_UsersDoNotBlockEachOther(t *testing.T) {
	slow := newRecordingHandler("photo")
	slowSession := newTestUserSession(t, slow, &fakeUploader{})
	fast := newRecordingHandler("")
	fastSession := newTestUserSession(t, fast, &fakeUploader{})

	slowSession.Send(SessionMessage{Type: "photo", Ctx: context.Background()})
	waitFor(t, slow.started)

	done := make(chan struct{})
	go func() {
		fastSession.SendSync(SessionMessage{Type: "photo", Ctx: context.Background()})
		close(done)
	}()
	waitFor(t, done)

	assert.Equal(t, media.SourceDroppedFile, fastSession.client.Snapshot().Image.Kind())
	assert.Equal(t, media.SourceNone, slowSession.client.Snapshot().Image.Kind())

	close(slow.release)
	assert.Eventually(t, func() bool {
		return slowSession.client.Snapshot().Image.Kind() == media.SourceDroppedFile
	}, time.Second, 10*time.Millisecond)
}

func TestWorker_StopReleasesQueuedSenders(t *testing.T) {
	handler := newRecordingHandler("photo")
	s := newTestUserSession(t, handler, &fakeUploader{})

	s.Send(SessionMessage{Type: "photo", Ctx: context.Background()})
	waitFor(t, handler.started)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SendSync(SessionMessage{Type: "callback", Ctx: context.Background(), CallbackQuery: &tgbotapi.CallbackQuery{Data: "item:0"}})
		}()
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	close(handler.release)

	waitFor(t, stopped)
	senders := make(chan struct{})
	go func() {
		wg.Wait()
		close(senders)
	}()
	waitFor(t, senders)

	// Stop closes the client session too
	assert.ErrorIs(t, s.client.DropFile(media.NewBlob("late.jpg", "image/jpeg", jpegBytes)), session.ErrClosed)
}

func TestForwardClientEvent_AfterStopDoesNotBlock(t *testing.T) {
	handler := newRecordingHandler("")
	s := newTestUserSession(t, handler, &fakeUploader{})
	s.Stop()

	s.forwardClientEvent(session.EventSubmitComplete, session.Snapshot{})
	s.SendSync(SessionMessage{Type: "photo", Ctx: context.Background()})

	assert.Empty(t, handler.getLog())
}
