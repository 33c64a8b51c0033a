package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shouni/gemini-photo-studio/pkg/credential"
	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/generator"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
	"github.com/shouni/gemini-photo-studio/pkg/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var errEntityNotFound = errors.New("Error 404, Message: Requested entity was not found., Status: NOT_FOUND")

func TestNew(t *testing.T) {
	_, err := New("id", Config{})
	assert.Error(t, err, "generator がなければエラーなのだ")
}

func TestSession_SuitEndToEnd(t *testing.T) {
	ctx := context.Background()
	generated := []byte("suit-png")
	ep := &mockEndpoint{resp: oneImage(generated)}
	s, err := New("s1", Config{
		App:       domain.AppSuit,
		Generator: newGenerator(t, ep, generator.SuitVariant("")),
		Now:       fixedClock(1760000000123),
	})
	require.NoError(t, err)

	src := jpegSource(t, 1024, 768)
	require.NoError(t, s.Select(src))

	res, err := s.Generate(ctx, GenerateOptions{Mode: domain.EditModeAuto})
	require.NoError(t, err)

	assert.Equal(t, imgutil.ToPNGDataURI(generated), res.DataURI)
	got, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, res, got)
	assert.Nil(t, s.Failure())
	assert.Equal(t, "suitup-ai-1760000000123.png", s.DownloadName())

	assert.Equal(t, prompt.SuitTemplate, ep.promptText())
	require.Len(t, ep.contents[0].Parts, 2)
	assert.Equal(t, src.Bytes(), ep.contents[0].Parts[1].InlineData.Data, "元画像がそのまま送られるのだ")
	assert.Equal(t, "image/jpeg", ep.contents[0].Parts[1].InlineData.MIMEType)
}

func TestSession_ComicEndToEnd(t *testing.T) {
	ctx := context.Background()
	ep := &mockEndpoint{resp: oneImage([]byte("comic"))}
	gate := credential.NewGate(credential.Permissive{})
	gate.Init(ctx)

	s, err := New("c1", Config{
		App:       domain.AppComic,
		Generator: newGenerator(t, ep, generator.ComicVariant("", "", "")),
		Gate:      gate,
	})
	require.NoError(t, err)
	require.NoError(t, s.Select(jpegSource(t, 64, 64)))

	_, err = s.Generate(ctx, GenerateOptions{Style: "manga", Prompt: "cat plans world domination"})
	require.NoError(t, err)

	text := ep.promptText()
	assert.Contains(t, text, "Manga / Anime")
	assert.Contains(t, text, "cat plans world domination")
	assert.Equal(t, generator.DefaultComicModel, ep.model)
	assert.True(t, strings.HasPrefix(s.DownloadName(), "comic-strip-"))
}

func TestSession_Generate_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("元画像がなければ ErrNoSource で通信しないのだ", func(t *testing.T) {
		ep := &mockEndpoint{resp: oneImage([]byte("x"))}
		s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant(""))})

		_, err := s.Generate(ctx, GenerateOptions{})
		assert.ErrorIs(t, err, ErrNoSource)
		assert.Zero(t, ep.calls)
	})

	t.Run("画像以外は選択できないのだ", func(t *testing.T) {
		s, _ := New("s", Config{Generator: newGenerator(t, &mockEndpoint{}, generator.SuitVariant(""))})

		assert.ErrorIs(t, s.Select(domain.NewSourceImage([]byte("%PDF"), "application/pdf", "a.pdf")), ErrNotImage)
		assert.ErrorIs(t, s.Select(domain.NewSourceImage(nil, "image/png", "empty.png")), ErrNotImage)
		assert.ErrorIs(t, s.Select(nil), ErrNotImage)
		assert.Nil(t, s.Source())
	})

	t.Run("キー未選択の漫画アプリは ErrCredentialRequired なのだ", func(t *testing.T) {
		ep := &mockEndpoint{resp: oneImage([]byte("x"))}
		store := credential.NewKeyStore("")
		provider, _ := credential.NewHostProvider(store, credential.ContextSelector{})
		gate := credential.NewGate(provider)
		gate.Init(ctx)

		s, _ := New("c", Config{App: domain.AppComic, Generator: newGenerator(t, ep, generator.ComicVariant("", "", "")), Gate: gate})
		require.NoError(t, s.Select(jpegSource(t, 8, 8)))

		_, err := s.Generate(ctx, GenerateOptions{Style: "noir"})
		assert.ErrorIs(t, err, ErrCredentialRequired)
		assert.Zero(t, ep.calls)
		assert.True(t, s.CredentialRequired())
	})
}

func TestSession_Generate_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("画像なしは FailureNoImage で結果は残らないのだ", func(t *testing.T) {
		obs := &recordingObserver{}
		ep := &mockEndpoint{resp: &genai.GenerateContentResponse{}}
		s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant("")), Observer: obs})
		require.NoError(t, s.Select(jpegSource(t, 8, 8)))

		_, err := s.Generate(ctx, GenerateOptions{})

		var f *Failure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, domain.FailureNoImage, f.Kind)
		assert.Equal(t, "Failed to generate image. Please try again.", f.Message)
		_, ok := s.Result()
		assert.False(t, ok)
		assert.Equal(t, f, s.Failure())
		assert.Equal(t, []domain.FailureKind{domain.FailureNoImage}, obs.kinds)
	})

	t.Run("通信エラーは汎用メッセージなのだ", func(t *testing.T) {
		ep := &mockEndpoint{err: errors.New("dial tcp: connection refused")}
		s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant(""))})
		require.NoError(t, s.Select(jpegSource(t, 8, 8)))

		_, err := s.Generate(ctx, GenerateOptions{})

		var f *Failure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, domain.FailureTransport, f.Kind)
		assert.Contains(t, f.Message, "check your connection")
		assert.ErrorIs(t, err, ep.err)
	})

	t.Run("スーツアプリではキーのエラーも汎用メッセージなのだ", func(t *testing.T) {
		ep := &mockEndpoint{err: errEntityNotFound}
		s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant(""))})
		require.NoError(t, s.Select(jpegSource(t, 8, 8)))

		_, err := s.Generate(ctx, GenerateOptions{})

		var f *Failure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, domain.FailureAuth, f.Kind)
		assert.Contains(t, f.Message, "check your connection")
	})

	t.Run("漫画アプリでキーが見つからなければ再選択を求めるのだ", func(t *testing.T) {
		ep := &mockEndpoint{err: errEntityNotFound}
		gate := credential.NewGate(credential.Permissive{})
		gate.Init(ctx)
		s, _ := New("c", Config{App: domain.AppComic, Generator: newGenerator(t, ep, generator.ComicVariant("", "", "")), Gate: gate})
		require.NoError(t, s.Select(jpegSource(t, 8, 8)))

		_, err := s.Generate(ctx, GenerateOptions{Style: "manga"})

		var f *Failure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, domain.FailureAuth, f.Kind)
		assert.Contains(t, f.Message, "select your API key again")
		assert.False(t, gate.HasCredential())

		_, err = s.Generate(ctx, GenerateOptions{Style: "manga"})
		assert.ErrorIs(t, err, ErrCredentialRequired)
		assert.Equal(t, 1, ep.calls)
	})

	t.Run("漫画アプリでもその他のエラーではキーの状態は変わらないのだ", func(t *testing.T) {
		ep := &mockEndpoint{err: errors.New("Error 503, Message: overloaded")}
		gate := credential.NewGate(credential.Permissive{})
		gate.Init(ctx)
		s, _ := New("c", Config{App: domain.AppComic, Generator: newGenerator(t, ep, generator.ComicVariant("", "", "")), Gate: gate})
		require.NoError(t, s.Select(jpegSource(t, 8, 8)))

		_, err := s.Generate(ctx, GenerateOptions{})
		assert.Error(t, err)
		assert.True(t, gate.HasCredential())
	})
}

func TestSession_SingleFlight(t *testing.T) {
	ctx := context.Background()
	ep := &mockEndpoint{
		resp:    oneImage([]byte("slow")),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant(""))})
	require.NoError(t, s.Select(jpegSource(t, 8, 8)))

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(ctx, GenerateOptions{})
		done <- err
	}()

	select {
	case <-ep.started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not start")
	}
	assert.True(t, s.Busy())

	_, err := s.Generate(ctx, GenerateOptions{})
	assert.ErrorIs(t, err, ErrBusy, "生成中は2回目を受け付けないのだ")

	close(ep.release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Equal(t, 1, ep.calls)
}

func TestSession_ReplaceDuringGeneration(t *testing.T) {
	ctx := context.Background()
	ep := &mockEndpoint{
		resp:    oneImage([]byte("old-result")),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant(""))})
	require.NoError(t, s.Select(jpegSource(t, 8, 8)))

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(ctx, GenerateOptions{})
		done <- err
	}()
	<-ep.started

	require.NoError(t, s.Select(jpegSource(t, 16, 16)))
	close(ep.release)
	require.NoError(t, <-done)

	_, ok := s.Result()
	assert.False(t, ok, "差し替え前の画像の結果は残らないのだ")
}

func TestSession_Clear(t *testing.T) {
	ep := &mockEndpoint{resp: oneImage([]byte("x"))}
	s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant(""))})
	require.NoError(t, s.Select(jpegSource(t, 8, 8)))
	_, err := s.Generate(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	s.Clear()

	assert.Nil(t, s.Source())
	_, ok := s.Result()
	assert.False(t, ok)
}

func TestSession_CustomMode(t *testing.T) {
	ep := &mockEndpoint{resp: oneImage([]byte("x"))}
	s, _ := New("s", Config{Generator: newGenerator(t, ep, generator.SuitVariant(""))})
	require.NoError(t, s.Select(jpegSource(t, 8, 8)))

	_, err := s.Generate(context.Background(), GenerateOptions{Mode: domain.EditModeCustom, Prompt: "  Add a retro filter "})
	require.NoError(t, err)
	assert.Equal(t, "Add a retro filter", ep.promptText())

	_, err = s.Generate(context.Background(), GenerateOptions{Mode: domain.EditModeCustom})
	require.NoError(t, err)
	assert.Equal(t, prompt.EnhanceFallback, ep.promptText())
}
