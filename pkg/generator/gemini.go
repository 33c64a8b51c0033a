package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
)

// ErrEmptyImage はリクエストに画像データが含まれていないことを示します。
var ErrEmptyImage = errors.New("encoded image is empty")

// GeminiGenerator は元画像と指示を Gemini に送り、生成画像を取り出すアダプターです。
// 呼び出し間で状態を持たず、1回の Generate につき1回だけ通信します。
type GeminiGenerator struct {
	clients ClientFactory
	variant Variant
}

// NewGeminiGenerator は依存関係を注入して GeminiGenerator を初期化します。
func NewGeminiGenerator(clients ClientFactory, variant Variant) (*GeminiGenerator, error) {
	if clients == nil {
		return nil, fmt.Errorf("clients (ClientFactory) is required")
	}
	if variant.Model == "" {
		return nil, fmt.Errorf("variant model is required")
	}

	return &GeminiGenerator{
		clients: clients,
		variant: variant,
	}, nil
}

// Variant は使用中のモデル設定を返します。
func (g *GeminiGenerator) Variant() Variant {
	return g.variant
}

// Generate は画像生成を1回実行します。
// 通信・認証・プロトコルのエラーはラップせずにそのまま返します（分類は呼び出し元で行います）。
func (g *GeminiGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if req.Image.IsEmpty() {
		return nil, &domain.ReadError{Err: ErrEmptyImage}
	}

	data, err := imgutil.Decode(req.Image)
	if err != nil {
		return nil, err
	}
	contents := buildContents(req.Prompt, data, req.Image.MimeType)

	client, err := g.clients(ctx)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Geminiに画像生成をリクエストします",
		"variant", g.variant.Name,
		"model", g.variant.Model,
		"style", req.StyleLabel,
		"mime_type", req.Image.MimeType,
		"image_bytes", len(data))

	resp, err := client.GenerateContent(ctx, g.variant.Model, contents, g.variant.generateConfig())
	if err != nil {
		return nil, err
	}

	return parseToResult(ctx, resp)
}
