package generator

import (
	"context"

	"google.golang.org/genai"
)

// --- Mocks ---

type mockClient struct {
	calls     int
	lastModel string
	contents  []*genai.Content
	config    *genai.GenerateContentConfig

	resp *genai.GenerateContentResponse
	err  error
}

func (m *mockClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	m.lastModel = model
	m.contents = contents
	m.config = config
	return m.resp, m.err
}

// factoryFor は常に同じモッククライアントを返す ClientFactory を作成します。
func factoryFor(c *mockClient) ClientFactory {
	return func(ctx context.Context) (ContentGenerator, error) {
		return c, nil
	}
}

func imageResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: parts},
		}},
	}
}
