package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	AppName     = "fittingap"
	EnvFileName = "config.env"
)

const (
	DefaultBackendURL    = "http://localhost:8000"
	DefaultUploadPath    = "/api/upload-image/"
	DefaultCameraDevice  = "0"
	DefaultMaxImageBytes = 10 * 1024 * 1024
	DefaultDBPath        = "fittingap.db"
)

// Config is the runtime configuration read from the environment.
type Config struct {
	BackendURL    string
	UploadPath    string
	CameraDevice  string
	PreviewDir    string
	MaxImageBytes int64

	// Telegram front-end only
	BotToken string
	AdminID  int64
	DBPath   string
}

// EnvFilePath returns the path of config.env in the user's config directory.
func EnvFilePath() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configBase, AppName, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configPath, err := EnvFilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// Load reads the configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		BackendURL:   getEnv("BACKEND_URL", DefaultBackendURL),
		UploadPath:   getEnv("UPLOAD_PATH", DefaultUploadPath),
		CameraDevice: getEnv("CAMERA_DEVICE", DefaultCameraDevice),
		PreviewDir:   os.Getenv("PREVIEW_DIR"),
		BotToken:     os.Getenv("BOT_TOKEN"),
		DBPath:       getEnv("FITTINGAP_DB_PATH", DefaultDBPath),
	}

	maxBytes, err := getEnvInt64("MAX_IMAGE_BYTES", DefaultMaxImageBytes)
	if err != nil {
		return Config{}, err
	}
	if maxBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", maxBytes)
	}
	cfg.MaxImageBytes = maxBytes

	adminID, err := getEnvInt64("ADMIN_TELEGRAM_ID", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.AdminID = adminID

	return cfg, nil
}

// CheckBotConfig returns the names of settings the Telegram front-end needs
// but that are not set.
func (c Config) CheckBotConfig() []string {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.AdminID == 0 {
		missing = append(missing, "ADMIN_TELEGRAM_ID")
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}
