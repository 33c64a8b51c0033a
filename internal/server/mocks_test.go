package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-photo-studio/internal/metrics"
	"github.com/shouni/gemini-photo-studio/pkg/credential"
	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
	"github.com/shouni/gemini-photo-studio/pkg/session"
)

var errEntityNotFound = errors.New("Error 404, Message: Requested entity was not found., Status: NOT_FOUND")

// --- Mocks ---

// stubGenerator は generator.ImageGenerator の代わりに固定の結果を返します。
type stubGenerator struct {
	mu       sync.Mutex
	result   []byte
	err      error
	requests []domain.GenerationRequest
}

func (g *stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &domain.GenerationResult{
		DataURI:  imgutil.ToPNGDataURI(g.result),
		Data:     g.result,
		MimeType: "image/png",
	}, nil
}

func (g *stubGenerator) last() domain.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return domain.GenerationRequest{}
	}
	return g.requests[len(g.requests)-1]
}

type harness struct {
	server *httptest.Server
	client *http.Client
	gen    *stubGenerator
}

type harnessOptions struct {
	app     domain.App
	gate    *credential.Gate
	router  RouterOptions
	quality int
}

func newHarness(t *testing.T, gen *stubGenerator, opts harnessOptions) *harness {
	t.Helper()
	if opts.app == "" {
		opts.app = domain.AppSuit
	}

	mgr, err := session.NewManager(func(id string) (*session.Session, error) {
		return session.New(id, session.Config{App: opts.app, Generator: gen, Gate: opts.gate})
	})
	require.NoError(t, err)

	h, err := NewHandler(Options{
		App:            opts.app,
		Sessions:       mgr,
		Gate:           opts.gate,
		MaxUploadBytes: 1 << 20,
		JPEGQuality:    opts.quality,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(NewRouter(ctx, h, opts.router))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{server: srv, client: &http.Client{Jar: jar}, gen: gen}
}

func newMetricsRouter(c *metrics.Collector) RouterOptions {
	return RouterOptions{Metrics: c.Handler(), Observer: c}
}

// pngBytes はテスト用の PNG 画像を作ります。
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{200, 20, 20, 255})
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

// noisyPNG は JPEG にすると小さくなるノイズ画像を作ります。
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}
