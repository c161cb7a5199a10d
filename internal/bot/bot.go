package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/raine/fittingap/internal/media"
	"github.com/raine/fittingap/internal/storage"
	"github.com/raine/fittingap/internal/submission"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Deps are shared by every user's client session.
type Deps struct {
	Previews media.PreviewStore
	Uploader submission.Uploader
	// BaseURL is the backend base URL product image paths are joined onto.
	BaseURL string
	// MaxImageBytes limits downloaded images. Zero uses the default.
	MaxImageBytes int64
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg         BotAPI
	state      BotState
	store      storage.AccessStore
	adminID    int64
	deps       Deps
	downloader *ImageDownloader
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, store storage.AccessStore, adminID int64, deps Deps) *Bot {
	bot := &Bot{
		tg:         tg,
		store:      store,
		adminID:    adminID,
		deps:       deps,
		downloader: NewImageDownloader(),
	}
	if deps.MaxImageBytes > 0 {
		bot.downloader.WithMaxSize(deps.MaxImageBytes)
	}
	bot.state = bot.NewBotState()
	return bot
}

// Shutdown stops every user session.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64

	// Determine user ID from the update
	if update.CallbackQuery != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil && update.Message.From != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	// Check if user is allowed (admin always allowed)
	// MUST be before getUserSession to prevent memory exhaustion from random user IDs
	if userId != b.adminID {
		allowed, err := b.store.IsUserAllowed(userId)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userId).Msg("whitelist check failed")
			return // Fail closed
		}
		if !allowed {
			return // Silent drop
		}
	}

	session := b.state.getUserSession(userId)

	// Helper to send sync or async based on flag
	send := func(msg SessionMessage) {
		if sync {
			session.SendSync(msg)
		} else {
			session.Send(msg)
		}
	}

	if update.CallbackQuery != nil {
		send(SessionMessage{
			Type:          "callback",
			Ctx:           ctx,
			CallbackQuery: update.CallbackQuery,
		})
		return
	}

	message := update.Message
	log.Info().Str("text", message.Text).Str("caption", message.Caption).Msg("got message")

	switch {
	case len(message.Photo) > 0:
		send(SessionMessage{Type: "photo", Ctx: ctx, Message: message})
	case message.Document != nil:
		send(SessionMessage{Type: "document", Ctx: ctx, Message: message})
	default:
		send(SessionMessage{Type: "text", Ctx: ctx, Message: message})
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
// No mutex locking is needed here since only one goroutine accesses session state.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "callback":
		b.handleCallbackQuery(session, msg.CallbackQuery)
	case "photo":
		b.handlePhotoMessage(ctx, session, msg.Message)
	case "document":
		b.handleDocumentMessage(ctx, session, msg.Message)
	case "text":
		b.handleTextMessage(session, msg.Message)
	case "submit_complete":
		b.handleSubmitComplete(session, msg)
	}
}

// handlePhotoMessage treats a chat photo as a dropped image. Telegram
// re-encodes photos as JPEG; the largest size is used.
// Called from session worker - no locking needed.
func (b *Bot) handlePhotoMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	photo := message.Photo[len(message.Photo)-1]
	data, err := b.downloader.DownloadFromTelegramFileID(ctx, b.tg.GetFileDirectURL, photo.FileID)
	if err != nil {
		log.Warn().Err(err).Str("fileID", photo.FileID).Msg("photo download failed")
		session.reply(MsgImageDownloadFailed, escapeHTML(err.Error()))
		return
	}

	blob := media.NewBlob("photo.jpg", "image/jpeg", data)
	if err := session.client.DropFile(blob); err != nil {
		session.replyWithError(err)
		return
	}
	b.afterImageSelected(session, message.Caption)
}

// handleDocumentMessage treats an image file as a file picker selection.
// Non-image files are rejected before downloading, like a picker limited to
// images.
// Called from session worker - no locking needed.
func (b *Bot) handleDocumentMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	doc := message.Document
	if !strings.HasPrefix(doc.MimeType, "image/") {
		session.reply(MsgNotAnImage)
		return
	}

	data, err := b.downloader.DownloadFromTelegramFileID(ctx, b.tg.GetFileDirectURL, doc.FileID)
	if err != nil {
		log.Warn().Err(err).Str("fileID", doc.FileID).Msg("document download failed")
		session.reply(MsgImageDownloadFailed, escapeHTML(err.Error()))
		return
	}

	name := doc.FileName
	if name == "" {
		name = "image"
	}
	blob := media.NewBlob(name, doc.MimeType, data)
	if err := media.RequireImage(blob); err != nil {
		session.reply(MsgNotAnImage)
		return
	}
	if err := session.client.SelectFile(blob); err != nil {
		session.replyWithError(err)
		return
	}
	b.afterImageSelected(session, message.Caption)
}

// afterImageSelected applies a caption as the description and confirms the
// new image.
func (b *Bot) afterImageSelected(session *UserSession, caption string) {
	if caption = strings.TrimSpace(caption); caption != "" {
		if err := session.client.SetDescription(caption); err != nil {
			session.replyWithError(err)
			return
		}
	}
	// The expansion was collapsed by the new image
	b.refreshResultsMessage(session)
	snap := session.client.Snapshot()
	session.reply(MsgImageReceived, escapeHTML(snap.Image.Label()))
}

// handleTextMessage processes text messages.
// Called from session worker - no locking needed.
func (b *Bot) handleTextMessage(session *UserSession, message *tgbotapi.Message) {
	if strings.HasPrefix(message.Text, "/") {
		b.handleCommand(session, message)
		return
	}

	if err := session.client.SetDescription(message.Text); err != nil {
		session.replyWithError(err)
		return
	}
	session.reply(MsgDescriptionSet)
}

// handleCommand processes bot commands.
// Called from session worker - no locking needed.
func (b *Bot) handleCommand(session *UserSession, message *tgbotapi.Message) {
	command, args := parseCommand(message.Text)
	argsStr := strings.Join(args, " ")
	switch command {
	case "/start":
		session.reply(MsgStartPrompt)
	case "/recommend":
		b.handleRecommendCommand(session, argsStr)
	case "/clear":
		if err := session.client.Clear(); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgImageCleared)
	case "/admin":
		b.handleAdminCommand(session, argsStr)
	case "/version":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgStartPrompt)
	}
}

// handleRecommendCommand submits the current image and description. Text
// after the command replaces the description.
func (b *Bot) handleRecommendCommand(session *UserSession, args string) {
	if args != "" {
		if err := session.client.SetDescription(args); err != nil {
			session.replyWithError(err)
			return
		}
	}

	err := session.client.Submit()
	switch {
	case errors.Is(err, submission.ErrNothingToSubmit):
		session.reply(err.Error())
		return
	case errors.Is(err, submission.ErrBusy):
		session.reply(MsgBusy)
		return
	case err != nil:
		session.replyWithError(err)
		return
	}

	// Results were cleared when the submission began
	b.clearResultsKeyboard(session)
	session.reply(MsgUploading)
	session.beginTyping()
}

// handleSubmitComplete reports the outcome of a submission.
// Called from session worker - no locking needed.
func (b *Bot) handleSubmitComplete(session *UserSession, msg SessionMessage) {
	snap := msg.Snapshot
	// The completion is forwarded asynchronously, so a newer /recommend may
	// already have been handled. Its typing indicator and results own the chat.
	if current := session.client.Snapshot().Submission; current.ID != snap.Submission.ID {
		log.Debug().
			Uint64("submission", snap.Submission.ID).
			Uint64("current", current.ID).
			Msg("ignoring superseded submission event")
		return
	}
	switch snap.Submission.Phase {
	case submission.PhaseFailed:
		session.endTyping()
		session.reply(MsgSubmissionError, escapeHTML(snap.Submission.ErrorMessage))
	case submission.PhaseSucceeded:
		session.endTyping()
		if snap.Results.Len() == 0 {
			session.reply(MsgNoProducts)
			return
		}
		reply := tgbotapi.NewMessage(session.userId, renderResultsText(snap.Results, b.deps.BaseURL))
		reply.ParseMode = tgbotapi.ModeHTML
		reply.DisableWebPagePreview = true
		reply.ReplyMarkup = makeResultsKeyboard(snap.Results)
		sent := session.replyWithMessage(reply)
		session.resultsMsgID = sent.MessageID
	default:
		// A stale completion while another submission is in flight
		log.Debug().Str("phase", snap.Submission.Phase.String()).Msg("ignoring submission event")
	}
}

// handleCallbackQuery handles inline keyboard button presses.
// Called from session worker - no locking needed.
func (b *Bot) handleCallbackQuery(session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	callback := tgbotapi.NewCallback(query.ID, "")
	b.tg.Request(callback)

	if strings.HasPrefix(query.Data, itemCallbackPrefix) {
		b.handleItemCallback(session, query)
	}
}

// handleItemCallback toggles the expansion of one result item.
func (b *Bot) handleItemCallback(session *UserSession, query *tgbotapi.CallbackQuery) {
	index, err := strconv.Atoi(strings.TrimPrefix(query.Data, itemCallbackPrefix))
	if err != nil {
		log.Warn().Str("data", query.Data).Msg("invalid item callback")
		return
	}

	if query.Message == nil || query.Message.MessageID != session.resultsMsgID {
		if query.Message != nil {
			edit := tgbotapi.NewEditMessageReplyMarkup(
				query.Message.Chat.ID,
				query.Message.MessageID,
				tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
			)
			b.tg.Request(edit)
		}
		session.reply(MsgResultsExpired)
		return
	}

	if err := session.client.Toggle(index); err != nil {
		session.replyWithError(err)
		return
	}
	b.refreshResultsMessage(session)
}

// refreshResultsMessage re-renders the results message from the current
// state.
func (b *Bot) refreshResultsMessage(session *UserSession) {
	if session.resultsMsgID == 0 {
		return
	}
	view := session.client.Snapshot().Results
	if view.Len() == 0 {
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(
		session.userId,
		session.resultsMsgID,
		renderResultsText(view, b.deps.BaseURL),
		makeResultsKeyboard(view),
	)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if _, err := b.tg.Request(edit); err != nil {
		// Telegram rejects edits that change nothing
		if strings.Contains(err.Error(), "message is not modified") {
			log.Debug().Err(err).Msg("results message not edited")
			return
		}
		log.Error().Err(err).Int("messageId", session.resultsMsgID).Msg("failed to edit results message")
	}
}

// clearResultsKeyboard detaches the previous results message so its buttons
// can no longer toggle items.
func (b *Bot) clearResultsKeyboard(session *UserSession) {
	if session.resultsMsgID == 0 {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(
		session.userId,
		session.resultsMsgID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	if _, err := b.tg.Request(edit); err != nil {
		log.Debug().Err(err).Msg("failed to remove results keyboard")
	}
	session.resultsMsgID = 0
}

// handleAdminCommand handles /admin command with subcommands.
// Only the admin user can use this command (defense in depth check).
func (b *Bot) handleAdminCommand(session *UserSession, args string) {
	// Defense in depth: verify caller is admin even though whitelist check passed
	if session.userId != b.adminID {
		return // Silent drop for non-admin users
	}

	parts := strings.Fields(args)
	if len(parts) == 0 {
		session.reply(MsgAdminUsage)
		return
	}

	switch parts[0] {
	case "users":
		if len(parts) < 2 {
			session.reply(MsgAdminUsage)
			return
		}
		b.handleAdminUsersCommand(session, parts[1], parts[2:])
	default:
		session.reply(MsgAdminUsage)
	}
}

// handleAdminUsersCommand handles /admin users subcommands.
func (b *Bot) handleAdminUsersCommand(session *UserSession, action string, args []string) {
	switch action {
	case "add":
		if len(args) < 1 {
			session.reply(MsgAdminUserAddUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.AddAllowedUser(userID, session.userId); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserAdded, userID)

	case "remove":
		if len(args) < 1 {
			session.reply(MsgAdminUserRemoveUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.RemoveAllowedUser(userID); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserRemoved, userID)

	case "list":
		users, err := b.store.GetAllowedUsers()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if len(users) == 0 {
			session.reply(MsgAdminNoUsers)
			return
		}
		var sb strings.Builder
		sb.WriteString(MsgAdminAllowedUsers)
		for _, u := range users {
			sb.WriteString(fmt.Sprintf("• <code>%d</code> (added %s)\n", u.TelegramID, u.AddedAt.Format("2006-01-02")))
		}
		session.reply(sb.String())

	default:
		session.reply(MsgAdminUsage)
	}
}
