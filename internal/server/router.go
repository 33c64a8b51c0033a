package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions はルーターの設定です。
type RouterOptions struct {
	Metrics        http.Handler // nil なら /metrics を公開しない
	Observer       HTTPObserver
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter は API のルーティングを組み立てます。
// ctx はレート制限のバックグラウンド処理の寿命です。
func NewRouter(ctx context.Context, h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(opts.Observer), middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/styles", h.ListStyles)

		r.Post("/image", h.UploadImage)
		r.Delete("/image", h.ClearImage)

		r.With(RateLimiter(ctx, opts.RateLimitRPS, opts.RateLimitBurst)).Post("/generate", h.Generate)

		r.Get("/result", h.Result)
		r.Get("/result/download", h.Download)

		if h.gate != nil {
			r.Get("/credential", h.CredentialStatus)
			r.Post("/credential/select", h.SelectCredential)
		}
	})

	return r
}
