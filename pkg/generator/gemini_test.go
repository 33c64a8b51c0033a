package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func validRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		Image:  imgutil.EncodeBytes([]byte("source-jpeg"), "image/jpeg"),
		Prompt: "put a suit on",
	}
}

func TestNewGeminiGenerator(t *testing.T) {
	t.Run("nilチェック: 依存関係が足りない場合はエラーを返すのだ", func(t *testing.T) {
		_, err := NewGeminiGenerator(nil, SuitVariant(""))
		assert.Error(t, err)
	})

	t.Run("モデル名が空の Variant はエラーなのだ", func(t *testing.T) {
		_, err := NewGeminiGenerator(factoryFor(&mockClient{}), Variant{Name: "broken"})
		assert.Error(t, err)
	})
}

func TestGeminiGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("成功: 指示、画像の順に2パーツを送るのだ", func(t *testing.T) {
		client := &mockClient{resp: imageResponse(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("D")}})}
		gen, err := NewGeminiGenerator(factoryFor(client), SuitVariant(""))
		require.NoError(t, err)

		_, err = gen.Generate(ctx, validRequest())
		require.NoError(t, err)

		require.Len(t, client.contents, 1)
		parts := client.contents[0].Parts
		require.Len(t, parts, 2)
		assert.Equal(t, "put a suit on", parts[0].Text)
		assert.Nil(t, parts[0].InlineData)
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
		assert.Equal(t, []byte("source-jpeg"), parts[1].InlineData.Data)
		assert.Equal(t, 1, client.calls, "通信は1回だけなのだ")
	})

	t.Run("成功: 最初の画像パーツを data URI で返すのだ", func(t *testing.T) {
		payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
		client := &mockClient{resp: imageResponse(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: payload}})}
		gen, _ := NewGeminiGenerator(factoryFor(client), SuitVariant(""))

		res, err := gen.Generate(ctx, validRequest())
		require.NoError(t, err)

		want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
		assert.Equal(t, want, res.DataURI)
		assert.Equal(t, payload, res.Data)
	})

	t.Run("スーツ用は生成設定なし、漫画用はアスペクト比と解像度を指定するのだ", func(t *testing.T) {
		client := &mockClient{resp: imageResponse(&genai.Part{InlineData: &genai.Blob{Data: []byte("x")}})}

		suit, _ := NewGeminiGenerator(factoryFor(client), SuitVariant(""))
		_, err := suit.Generate(ctx, validRequest())
		require.NoError(t, err)
		assert.Equal(t, DefaultSuitModel, client.lastModel)
		assert.Nil(t, client.config)

		comic, _ := NewGeminiGenerator(factoryFor(client), ComicVariant("", "", ""))
		req := validRequest()
		req.StyleLabel = "Manga / Anime"
		_, err = comic.Generate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, DefaultComicModel, client.lastModel)
		require.NotNil(t, client.config)
		require.NotNil(t, client.config.ImageConfig)
		assert.Equal(t, "1:1", client.config.ImageConfig.AspectRatio)
		assert.Equal(t, "1K", client.config.ImageConfig.ImageSize)
	})

	t.Run("画像なし: 候補がゼロなら ErrNoImageProduced なのだ", func(t *testing.T) {
		client := &mockClient{resp: &genai.GenerateContentResponse{}}
		gen, _ := NewGeminiGenerator(factoryFor(client), SuitVariant(""))

		res, err := gen.Generate(ctx, validRequest())
		assert.Nil(t, res)
		assert.ErrorIs(t, err, domain.ErrNoImageProduced)
	})

	t.Run("失敗: 通信エラーはそのまま返るのだ", func(t *testing.T) {
		remoteErr := errors.New("Error 404, Message: Requested entity was not found., Status: NOT_FOUND")
		client := &mockClient{err: remoteErr}
		gen, _ := NewGeminiGenerator(factoryFor(client), ComicVariant("", "", ""))

		_, err := gen.Generate(ctx, validRequest())
		require.Error(t, err)
		assert.Same(t, remoteErr, err, "ラップせずに返すのだ")
		assert.Equal(t, domain.FailureAuth, domain.Classify(err))
	})

	t.Run("失敗: クライアント作成のエラーもそのまま返るのだ", func(t *testing.T) {
		factoryErr := errors.New("gemini api key is not configured")
		gen, _ := NewGeminiGenerator(func(ctx context.Context) (ContentGenerator, error) {
			return nil, factoryErr
		}, SuitVariant(""))

		_, err := gen.Generate(ctx, validRequest())
		assert.Same(t, factoryErr, err)
	})

	t.Run("失敗: 画像が空なら通信せずに ReadError なのだ", func(t *testing.T) {
		client := &mockClient{}
		gen, _ := NewGeminiGenerator(factoryFor(client), SuitVariant(""))

		_, err := gen.Generate(ctx, domain.GenerationRequest{Prompt: "p"})
		assert.ErrorIs(t, err, ErrEmptyImage)
		assert.Equal(t, domain.FailureRead, domain.Classify(err))
		assert.Zero(t, client.calls)
	})

	t.Run("失敗: base64 が壊れていれば通信せずに ReadError なのだ", func(t *testing.T) {
		client := &mockClient{}
		gen, _ := NewGeminiGenerator(factoryFor(client), SuitVariant(""))

		_, err := gen.Generate(ctx, domain.GenerationRequest{Image: domain.EncodedImage{Data: "!!!", MimeType: "image/png"}})
		assert.Equal(t, domain.FailureRead, domain.Classify(err))
		assert.Zero(t, client.calls)
	})
}
