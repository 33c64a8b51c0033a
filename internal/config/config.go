package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/generator"
)

// CredentialMode は漫画アプリのキー選択の仕組みです。
type CredentialMode string

const (
	// CredentialPermissive はキー選択の仕組みがない環境です。常に選択済みとして扱います。
	CredentialPermissive CredentialMode = "permissive"
	// CredentialHost はサーバー側の KeyStore でキーを選択させます。
	CredentialHost CredentialMode = "host"
)

// Config は環境変数から読み込んだアプリケーション設定です。
type Config struct {
	App            domain.App
	Port           string
	GeminiAPIKey   string
	CredentialMode CredentialMode

	SuitModel        string
	ComicModel       string
	ComicAspectRatio string
	ComicImageSize   string
	StylesFile       string

	MaxUploadBytes    int64
	UploadJPEGQuality int

	RateLimitRPS   float64
	RateLimitBurst int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	SessionIdleTTL   time.Duration

	LogLevel  string
	LogFormat string
}

// LoadDotEnv はカレントディレクトリの .env を読み込みます。ファイルがなくてもエラーにしません。
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn(".env の読み込みに失敗しました", "error", err)
	}
}

// Load は環境変数から設定を読み込み、既定値を補って検証します。
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv は環境変数から設定を読み込みます。Validate は呼びません。
// CLI フラグで上書きしてから検証する場合に使います。
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		SuitModel:         getEnv("SUIT_MODEL", generator.DefaultSuitModel),
		ComicModel:        getEnv("COMIC_MODEL", generator.DefaultComicModel),
		ComicAspectRatio:  getEnv("COMIC_ASPECT_RATIO", generator.DefaultComicAspectRatio),
		ComicImageSize:    getEnv("COMIC_IMAGE_SIZE", generator.DefaultComicImageSize),
		StylesFile:        os.Getenv("STYLES_FILE"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		UploadJPEGQuality: getEnvInt("UPLOAD_JPEG_QUALITY", 0),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 0.5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 3),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		SessionIdleTTL:    time.Minute * time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 60)),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	app, err := domain.ParseApp(getEnv("APP", string(domain.AppSuit)))
	if err != nil {
		return nil, err
	}
	cfg.App = app

	switch mode := CredentialMode(strings.ToLower(getEnv("CREDENTIAL_MODE", string(CredentialPermissive)))); mode {
	case CredentialPermissive, CredentialHost:
		cfg.CredentialMode = mode
	default:
		return nil, fmt.Errorf("CREDENTIAL_MODE must be %q or %q: got %q", CredentialPermissive, CredentialHost, mode)
	}
	return cfg, nil
}

// Validate は値の範囲を検証します。
func (c *Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.UploadJPEGQuality < 0 || c.UploadJPEGQuality > 100 {
		return fmt.Errorf("UPLOAD_JPEG_QUALITY must be between 0 and 100: got %d", c.UploadJPEGQuality)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	// スーツアプリとキー選択の仕組みがない環境では、起動時にキーが必要です
	if c.GeminiAPIKey == "" && (c.App == domain.AppSuit || c.CredentialMode == CredentialPermissive) {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// SlogLevel は LOG_LEVEL を slog.Level に変換します。不明な値は Info です。
func (c *Config) SlogLevel() slog.Level {
	return ParseLogLevel(c.LogLevel)
}

// ParseLogLevel はログレベル名を slog.Level に変換します。不明な値は Info です。
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
