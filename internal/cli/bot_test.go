package cli

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdateSource struct {
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeUpdateSource) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeUpdateSource) StopReceivingUpdates() {
	f.stopped = true
}

type recordingHandler struct {
	mu  sync.Mutex
	ids []int
}

func (h *recordingHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, update.UpdateID)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ids)
}

func TestRunBot_DispatchesUntilChannelCloses(t *testing.T) {
	src := &fakeUpdateSource{updates: make(chan tgbotapi.Update, 3)}
	h := &recordingHandler{}
	src.updates <- tgbotapi.Update{UpdateID: 1}
	src.updates <- tgbotapi.Update{UpdateID: 2}
	close(src.updates)

	err := runBot(context.Background(), src, h)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, h.ids)
	assert.False(t, src.stopped)
}

func TestRunBot_StopsOnCancel(t *testing.T) {
	src := &fakeUpdateSource{updates: make(chan tgbotapi.Update)}
	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runBot(ctx, src, h) }()

	src.updates <- tgbotapi.Update{UpdateID: 7}
	assert.Eventually(t, func() bool { return h.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("update loop did not stop")
	}
	assert.True(t, src.stopped)
}

func TestRunBotCmd_MissingConfigWithoutTerminal(t *testing.T) {
	isolateConfig(t, "http://localhost:8000")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ADMIN_TELEGRAM_ID", "")

	if isInteractiveTerminal() {
		t.Skip("test needs a non-interactive terminal")
	}
	err := runBotCmd(context.Background())
	assert.EqualError(t, err, "missing required config: BOT_TOKEN, ADMIN_TELEGRAM_ID")
}
