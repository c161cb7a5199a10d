package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raine/fittingap/config"
	"github.com/raine/fittingap/internal/bot"
	"github.com/raine/fittingap/internal/media"
	"github.com/raine/fittingap/internal/recommend"
	"github.com/raine/fittingap/internal/storage"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve recommendations over a Telegram bot",
		Long: `Run the Telegram front-end. Send the bot a photo or an image file,
describe what you are looking for, and use /recommend.

Needs BOT_TOKEN and ADMIN_TELEGRAM_ID. In a terminal the setup wizard asks
for missing values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBotCmd(cmd.Context())
		},
	}
}

func runBotCmd(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if missing := cfg.CheckBotConfig(); len(missing) > 0 {
		if !isInteractiveTerminal() {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
		}
		if err := runSetupWizard(true); err != nil {
			return err
		}
		if cfg, err = config.Load(); err != nil {
			return err
		}
	}

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("user store initialized")

	previews, err := media.NewTempPreviewStore(cfg.PreviewDir)
	if err != nil {
		return err
	}
	defer previews.Close()

	client := recommend.NewClient(recommend.ClientOpts{
		BaseURL:    cfg.BackendURL,
		UploadPath: cfg.UploadPath,
	})
	log.Info().Str("backend", client.BaseURL()+client.UploadPath()).Msg("recommendation client initialized")

	b := bot.NewBot(tg, store, cfg.AdminID, bot.Deps{
		Previews:      previews,
		Uploader:      client,
		BaseURL:       client.BaseURL(),
		MaxImageBytes: cfg.MaxImageBytes,
	})

	g, ctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(ctx)

	// Run bot update loop
	g.Go(func() error {
		defer stopLoop()
		return runBot(loopCtx, tg, b)
	})

	// Stop user sessions once the update loop is gone so pending uploads are
	// cancelled before previews are removed
	g.Go(func() error {
		<-loopCtx.Done()
		b.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type updateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

func runBot(ctx context.Context, tg updateSource, b updateHandler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
