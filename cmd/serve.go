package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-photo-studio/internal/metrics"
	"github.com/shouni/gemini-photo-studio/internal/server"
	"github.com/shouni/gemini-photo-studio/pkg/credential"
	"github.com/shouni/gemini-photo-studio/pkg/session"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API サーバーを起動します",
	Long: `ブラウザ向けの HTTP API を起動します。

Examples:
  photostudio serve
  photostudio serve --app comic --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (default: $PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStudio(ctx, cfg, credential.ContextSelector{})
	if err != nil {
		return err
	}

	collector := metrics.NewCollector("photostudio")
	sessions, err := session.NewManager(func(id string) (*session.Session, error) {
		return st.newSession(id, collector)
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHandler(server.Options{
		App:            cfg.App,
		Sessions:       sessions,
		Styles:         st.styles,
		Gate:           st.gate,
		MaxUploadBytes: cfg.MaxUploadBytes,
		JPEGQuality:    cfg.UploadJPEGQuality,
	})
	if err != nil {
		return err
	}
	router := server.NewRouter(ctx, handler, server.RouterOptions{
		Metrics:        collector.Handler(),
		Observer:       collector,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	srv := server.NewHTTPServer(cfg, router)

	go pruneSessions(ctx, sessions, cfg.SessionIdleTTL)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("サーバーを起動します", "addr", srv.Addr(), "app", cfg.App)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("サーバーが停止しました: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// 生成中のリクエストは数十秒かかることがある
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗しました: %w", err)
	}
	slog.Info("サーバーを停止しました")
	return nil
}

// pruneSessions は放置されたセッションを定期的に破棄します。
func pruneSessions(ctx context.Context, sessions *session.Manager, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Prune(now, maxIdle); n > 0 {
				slog.Debug("放置されたセッションを破棄しました", "count", n, "remaining", sessions.Len())
			}
		}
	}
}
