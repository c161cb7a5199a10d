package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"

	"github.com/raine/fittingap/internal/media"
)

// fileServer serves body for every Telegram file path with the given
// content type. Chunked responses carry no Content-Length.
func fileServer(t *testing.T, contentType string, body []byte, chunked bool) *httptest.Server {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		if chunked {
			w.(http.Flusher).Flush()
		}
		w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func photoUpdate(fileID, caption string) tgbotapi.Update {
	update := makeUpdateWithMessageText(adminID, "")
	update.Message.Caption = caption
	update.Message.Photo = []tgbotapi.PhotoSize{{FileID: "thumb"}, {FileID: fileID}}
	return update
}

func documentUpdate(doc tgbotapi.Document, caption string) tgbotapi.Update {
	update := makeUpdateWithMessageText(adminID, "")
	update.Message.Caption = caption
	update.Message.Document = &doc
	return update
}

func TestPhoto_OctetStreamIsAccepted(t *testing.T) {
	ts := fileServer(t, "application/octet-stream", jpegBytes, false)
	tg, bot, _ := setup(t, &fakeUploader{})
	tg.On("GetFileDirectURL", "big").Return(ts.URL+"/photos/file_1.jpg", nil).Once()
	tg.On("Send", textIs(formatReplyText(MsgImageReceived, "photo.jpg"))).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), photoUpdate("big", ""))

	tg.AssertExpectations(t)
	snap := bot.state.getUserSession(adminID).client.Snapshot()
	assert.Equal(t, media.SourceDroppedFile, snap.Image.Kind())
	payload, ok := snap.Image.Payload()
	assert.True(t, ok)
	assert.Equal(t, jpegBytes, payload.Data)
	// Telegram always re-encodes photos as JPEG
	assert.Equal(t, "image/jpeg", payload.MimeType)
}

func TestPhoto_DownloadFailures(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		chunked     bool
		wantErr     string
	}{
		{"declared size over limit", "image/jpeg", false, "image too large: 10 bytes exceeds limit of 8 bytes"},
		{"streamed size over limit", "image/jpeg", true, "image too large: exceeds limit of 8 bytes"},
		{"not an image", "text/html", false, "invalid content type: expected image/*, got text/html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := fileServer(t, tt.contentType, jpegBytes, tt.chunked)
			tg, bot, _ := setupWithDeps(t, Deps{Uploader: &fakeUploader{}, MaxImageBytes: 8})
			tg.On("GetFileDirectURL", "big").Return(ts.URL+"/photos/file_1.jpg", nil).Once()
			tg.On("Send", textIs(formatReplyText(MsgImageDownloadFailed, tt.wantErr))).Return(tgbotapi.Message{}, nil).Once()

			bot.handleUpdateSync(context.Background(), photoUpdate("big", "floral dress"))

			tg.AssertExpectations(t)
			snap := bot.state.getUserSession(adminID).client.Snapshot()
			assert.Equal(t, media.SourceNone, snap.Image.Kind())
			// The caption is only applied together with an image
			assert.Empty(t, snap.Submission.Description)
		})
	}
}

func TestPhoto_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	tg, bot, _ := setup(t, &fakeUploader{})
	tg.On("GetFileDirectURL", "big").Return(ts.URL+"/gone", nil).Once()
	tg.On("Send", textIs(formatReplyText(MsgImageDownloadFailed, "download failed: status 404"))).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), photoUpdate("big", ""))

	tg.AssertExpectations(t)
}

func TestDocument_IsSelectedFileWithCaption(t *testing.T) {
	ts := fileServer(t, "application/octet-stream", jpegBytes, false)
	tg, bot, _ := setup(t, &fakeUploader{})
	tg.On("GetFileDirectURL", "doc").Return(ts.URL+"/documents/file_2.jpg", nil).Once()
	tg.On("Send", textIs(formatReplyText(MsgImageReceived, "look.jpg"))).Return(tgbotapi.Message{}, nil).Once()

	doc := tgbotapi.Document{FileID: "doc", FileName: "look.jpg", MimeType: "image/jpeg"}
	bot.handleUpdateSync(context.Background(), documentUpdate(doc, "  linen shirt "))

	tg.AssertExpectations(t)
	snap := bot.state.getUserSession(adminID).client.Snapshot()
	assert.Equal(t, media.SourceUploadedFile, snap.Image.Kind())
	assert.Equal(t, "look.jpg", snap.Image.Label())
	assert.Equal(t, "linen shirt", snap.Submission.Description)
}

func TestDocument_WithoutFileName(t *testing.T) {
	ts := fileServer(t, "image/png", jpegBytes, false)
	tg, bot, _ := setup(t, &fakeUploader{})
	tg.On("GetFileDirectURL", "doc").Return(ts.URL+"/documents/file_3", nil).Once()
	tg.On("Send", textIs(formatReplyText(MsgImageReceived, "image"))).Return(tgbotapi.Message{}, nil).Once()

	bot.handleUpdateSync(context.Background(), documentUpdate(tgbotapi.Document{FileID: "doc", MimeType: "image/png"}, ""))

	tg.AssertExpectations(t)
}

func TestDocument_OverSizeLimit(t *testing.T) {
	ts := fileServer(t, "application/octet-stream", jpegBytes, true)
	tg, bot, _ := setupWithDeps(t, Deps{Uploader: &fakeUploader{}, MaxImageBytes: 4})
	tg.On("GetFileDirectURL", "doc").Return(ts.URL+"/documents/file_4.jpg", nil).Once()
	tg.On("Send", textIs(formatReplyText(MsgImageDownloadFailed, "image too large: exceeds limit of 4 bytes"))).Return(tgbotapi.Message{}, nil).Once()

	doc := tgbotapi.Document{FileID: "doc", FileName: "huge.jpg", MimeType: "image/jpeg"}
	bot.handleUpdateSync(context.Background(), documentUpdate(doc, ""))

	tg.AssertExpectations(t)
	assert.Equal(t, media.SourceNone, bot.state.getUserSession(adminID).client.Snapshot().Image.Kind())
}

func TestDocument_FileURLResolutionFails(t *testing.T) {
	tg, bot, _ := setup(t, &fakeUploader{})
	tg.On("GetFileDirectURL", "doc").Return("", errors.New("Bad Request: file is too big")).Once()
	tg.On("Send", textIs(formatReplyText(MsgImageDownloadFailed, "failed to get file URL: Bad Request: file is too big"))).Return(tgbotapi.Message{}, nil).Once()

	doc := tgbotapi.Document{FileID: "doc", FileName: "look.jpg", MimeType: "image/jpeg"}
	bot.handleUpdateSync(context.Background(), documentUpdate(doc, ""))

	tg.AssertExpectations(t)
}
