package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shouni/gemini-photo-studio/internal/config"
)

// HTTPServer は http.Server の起動と停止をまとめます。
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer は設定に従って HTTPServer を作成します。
func NewHTTPServer(cfg *config.Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
	return &HTTPServer{server: srv}
}

// Addr は待ち受けアドレスです。
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Start は現在の goroutine でサーバーを起動します。Shutdown による停止ではエラーを返しません。
func (s *HTTPServer) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってからサーバーを停止します。
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
