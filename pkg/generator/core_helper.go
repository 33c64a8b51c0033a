package generator

import (
	"context"
	"log/slog"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
	"google.golang.org/genai"
)

// buildContents はテキスト指示、画像の順に2つのパーツを持つ単一の Content を作成します。
func buildContents(prompt string, data []byte, mimeType string) []*genai.Content {
	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// parseToResult は最初の候補 (Candidate) のパーツを順に調べ、最初の画像データを返します。
// 画像が見つからない場合は domain.ErrNoImageProduced を返します。
func parseToResult(ctx context.Context, resp *genai.GenerateContentResponse) (*domain.GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		slog.WarnContext(ctx, "Geminiからの応答に候補がありませんでした")
		return nil, domain.ErrNoImageProduced
	}

	// 現在の仕様では、最初の候補のみを利用する。
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return &domain.GenerationResult{
				DataURI:  imgutil.ToPNGDataURI(part.InlineData.Data),
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
			}, nil
		}
	}

	// 安全フィルター等によるブロックの確認
	if r := candidate.FinishReason; r != "" && r != genai.FinishReasonUnspecified && r != genai.FinishReasonStop {
		slog.WarnContext(ctx, "画像生成が異常終了しました", "finish_reason", r)
	} else {
		slog.WarnContext(ctx, "応答に画像データが見つかりませんでした")
	}
	return nil, domain.ErrNoImageProduced
}
