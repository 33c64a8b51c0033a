package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-photo-studio/internal/config"
	"github.com/shouni/gemini-photo-studio/pkg/domain"
)

var (
	appName   string
	apiKey    string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "photostudio",
	Short: "Gemini で写真を加工する画像生成ツール",
	Long: `Gemini の画像モデルで写真を加工します。

  suit   人物の服装をビジネススーツに着せ替えます
  comic  写真の被写体を主人公にした4コマ漫画を作ります

Examples:
  photostudio serve --app comic
  photostudio generate --input me.jpg
  photostudio generate --app comic --input cat.png --style noir --prompt "cat plans world domination"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()

		level := os.Getenv("LOG_LEVEL")
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		format := os.Getenv("LOG_FORMAT")
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}
		slog.SetDefault(config.NewLogger(os.Stderr, level, format))
		return nil
	},
}

// Execute はルートコマンドを実行します。
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appName, "app", "", "App: suit, comic (default: $APP or suit)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (default: $GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")
}

// loadConfig は環境変数の設定にフラグを反映してから検証します。
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	if appName != "" {
		app, err := domain.ParseApp(appName)
		if err != nil {
			return nil, err
		}
		cfg.App = app
	}
	if apiKey != "" {
		cfg.GeminiAPIKey = apiKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
