package session

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/generator"
	"google.golang.org/genai"
)

// --- Mocks ---

// mockEndpoint は Gemini の GenerateContent を置き換えるモックなのだ。
type mockEndpoint struct {
	mu       sync.Mutex
	calls    int
	contents []*genai.Content
	model    string

	resp    *genai.GenerateContentResponse
	err     error
	release chan struct{} // nil でなければ close されるまで応答を保留する
	started chan struct{}
}

func (m *mockEndpoint) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.calls++
	m.contents = contents
	m.model = model
	m.mu.Unlock()

	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}
	return m.resp, m.err
}

func (m *mockEndpoint) promptText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.contents) == 0 || len(m.contents[0].Parts) == 0 {
		return ""
	}
	return m.contents[0].Parts[0].Text
}

func newGenerator(t *testing.T, ep *mockEndpoint, variant generator.Variant) *generator.GeminiGenerator {
	t.Helper()
	gen, err := generator.NewGeminiGenerator(func(ctx context.Context) (generator.ContentGenerator, error) {
		return ep, nil
	}, variant)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	return gen
}

func oneImage(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}}}},
		}},
	}
}

// jpegSource はテスト用の JPEG 画像を作るのだ
func jpegSource(t *testing.T, w, h int) *domain.SourceImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 8 {
		for y := 0; y < h; y += 8 {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return domain.NewSourceImage(buf.Bytes(), "image/jpeg", "portrait.jpg")
}

type recordingObserver struct {
	mu    sync.Mutex
	kinds []domain.FailureKind
}

func (o *recordingObserver) ObserveGeneration(app domain.App, kind domain.FailureKind, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, kind)
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}
