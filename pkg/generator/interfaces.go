package generator

import (
	"context"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"google.golang.org/genai"
)

// ImageGenerator はセッション層が利用する画像生成の窓口です。
type ImageGenerator interface {
	// Generate は1回のリクエストで画像を生成します。画像が得られなかった場合は domain.ErrNoImageProduced を返します。
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// ContentGenerator は Gemini の GenerateContent 呼び出しを抽象化するインターフェースです。
// *genai.Models がこれを満たします。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientFactory は呼び出しごとに ContentGenerator を作成します。
// 現在選択されている API キーで毎回クライアントを作り直すために使います。
type ClientFactory func(ctx context.Context) (ContentGenerator, error)

// KeySource は現在使用する API キーを返します。
type KeySource interface {
	APIKey() string
}
