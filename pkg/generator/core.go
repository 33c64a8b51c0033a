package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// NewGenAIClientFactory は呼び出しごとに genai.Client を作成する ClientFactory を返します。
// キーは作成時点で keys から取得するため、途中でキーが差し替わっても次の呼び出しから反映されます。
// httpClient は nil を許容します（SDK の既定クライアント）。
func NewGenAIClientFactory(keys KeySource, httpClient *http.Client) (ClientFactory, error) {
	if keys == nil {
		return nil, fmt.Errorf("keys (KeySource) is required")
	}

	return func(ctx context.Context) (ContentGenerator, error) {
		apiKey := strings.TrimSpace(keys.APIKey())
		if apiKey == "" {
			return nil, fmt.Errorf("gemini api key is not configured")
		}

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return client.Models, nil
	}, nil
}
