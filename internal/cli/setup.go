package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raine/fittingap/config"
)

var errSetupCancelled = errors.New("setup cancelled")

// envFileOrder is the order keys are written to config.env.
var envFileOrder = []string{"BACKEND_URL", "UPLOAD_PATH", "CAMERA_DEVICE", "BOT_TOKEN", "ADMIN_TELEGRAM_ID"}

// telegramAPIURL is replaced in tests.
var telegramAPIURL = "https://api.telegram.org"

func newSetupCmd() *cobra.Command {
	var withBot bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write config.env with the backend address and bot credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isInteractiveTerminal() {
				return errors.New("setup needs a terminal, set the environment variables instead")
			}
			return runSetupWizard(withBot)
		},
	}
	cmd.Flags().BoolVar(&withBot, "bot", false, "also ask for the Telegram bot token and admin ID")
	return cmd
}

// isInteractiveTerminal returns true if both stdin and stdout are TTYs.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runSetupWizard collects configuration interactively and saves it to
// config.env. Values already in the environment are offered as defaults.
func runSetupWizard(withBot bool) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("👗 Fittingap - Setup"))
	fmt.Println()

	backendURL := envOr("BACKEND_URL", config.DefaultBackendURL)
	uploadPath := envOr("UPLOAD_PATH", config.DefaultUploadPath)
	cameraDevice := envOr("CAMERA_DEVICE", config.DefaultCameraDevice)
	botToken := os.Getenv("BOT_TOKEN")
	adminID := os.Getenv("ADMIN_TELEGRAM_ID")

	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Address of the recommendation service").
				Value(&backendURL).
				Validate(validateBackendURL),
			huh.NewInput().
				Title("Upload path").
				Description("Endpoint that accepts the image upload").
				Value(&uploadPath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("upload path is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Camera").
				Description("Camera index, stream URL, or a picture file to use as a fake camera").
				Value(&cameraDevice),
		),
	}
	if withBot {
		groups = append(groups,
			huh.NewGroup(
				huh.NewInput().
					Title("Telegram Bot Token").
					Description("Message @BotFather on Telegram → /newbot → copy token").
					Value(&botToken).
					Validate(func(s string) error {
						if s == "" {
							return errors.New("token is required")
						}
						return validateTelegramToken(s)
					}),
			),
			huh.NewGroup(
				huh.NewInput().
					Title("Your Telegram User ID").
					Description("Message @userinfobot to get your ID: https://t.me/userinfobot").
					Value(&adminID).
					Validate(validateAdminID),
			),
		)
	}

	form := huh.NewForm(groups...).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return errSetupCancelled
		}
		return err
	}

	values := map[string]string{
		"BACKEND_URL":   strings.TrimSpace(backendURL),
		"UPLOAD_PATH":   strings.TrimSpace(uploadPath),
		"CAMERA_DEVICE": strings.TrimSpace(cameraDevice),
	}
	if withBot {
		values["BOT_TOKEN"] = botToken
		values["ADMIN_TELEGRAM_ID"] = adminID
	}

	configPath, err := config.EnvFilePath()
	if err != nil {
		return err
	}
	if err := writeEnvFile(configPath, values); err != nil {
		waitOnWindows()
		return fmt.Errorf("error saving configuration: %w", err)
	}

	// Set values in current process
	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func validateBackendURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

func validateAdminID(s string) error {
	if s == "" {
		return errors.New("user ID is required")
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return errors.New("must be a number")
	}
	return nil
}

// validateTelegramToken validates a Telegram bot token by calling the getMe API.
func validateTelegramToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}

	_, err := resty.New().R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("%s/bot%s/getMe", telegramAPIURL, token))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}

	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return errors.New("token rejected by Telegram")
	}

	return nil
}

// writeEnvFile merges values into the env file at path, keeping keys it does
// not set. Uses restrictive permissions (0600) since the file contains
// secrets.
func writeEnvFile(path string, values map[string]string) error {
	merged := map[string]string{}
	if existing, err := godotenv.Read(path); err == nil {
		merged = existing
	}
	for k, v := range values {
		merged[k] = v
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// Known keys first in a fixed order, then anything else already present
	written := map[string]bool{}
	for _, key := range envFileOrder {
		if val, ok := merged[key]; ok {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
			written[key] = true
		}
	}
	for _, key := range slices.Sorted(maps.Keys(merged)) {
		if written[key] {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s=%q\n", key, merged[key]); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	log.Info().Str("path", path).Msg("configuration written")
	return nil
}

// waitOnWindows pauses execution on Windows so users can see error messages
// before the console window closes.
func waitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}
