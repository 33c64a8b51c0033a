package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-photo-studio/internal/config"
	"github.com/shouni/gemini-photo-studio/pkg/credential"
	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/generator"
	"github.com/shouni/gemini-photo-studio/pkg/prompt"
	"github.com/shouni/gemini-photo-studio/pkg/session"
)

// studio はアプリ1つ分の依存関係です。
type studio struct {
	cfg       *config.Config
	styles    *prompt.Catalog
	keys      *credential.KeyStore
	gate      *credential.Gate // 漫画アプリのみ
	generator *generator.GeminiGenerator
}

// newStudio は設定からアプリを組み立てます。selector は host モードのキー選択に使います。
func newStudio(ctx context.Context, cfg *config.Config, selector credential.Selector) (*studio, error) {
	styles, err := prompt.LoadCatalog(cfg.StylesFile)
	if err != nil {
		return nil, err
	}

	st := &studio{
		cfg:    cfg,
		styles: styles,
		keys:   credential.NewKeyStore(cfg.GeminiAPIKey),
	}

	var variant generator.Variant
	switch cfg.App {
	case domain.AppComic:
		variant = generator.ComicVariant(cfg.ComicModel, cfg.ComicAspectRatio, cfg.ComicImageSize)

		var provider credential.Provider = credential.Permissive{}
		if cfg.CredentialMode == config.CredentialHost {
			provider, err = credential.NewHostProvider(st.keys, selector)
			if err != nil {
				return nil, err
			}
		}
		st.gate = credential.NewGate(provider)
		st.gate.Init(ctx)
	default:
		variant = generator.SuitVariant(cfg.SuitModel)
	}

	factory, err := generator.NewGenAIClientFactory(st.keys, nil)
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの準備に失敗しました: %w", err)
	}
	st.generator, err = generator.NewGeminiGenerator(factory, variant)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "アプリを構成しました",
		"app", cfg.App,
		"model", variant.Model,
		"credential_mode", cfg.CredentialMode,
		"styles", len(styles.Styles()),
	)
	return st, nil
}

// newSession は id のセッションを作成します。
func (st *studio) newSession(id string, observer session.Observer) (*session.Session, error) {
	return session.New(id, session.Config{
		App:       st.cfg.App,
		Generator: st.generator,
		Styles:    st.styles,
		Gate:      st.gate,
		Observer:  observer,
	})
}
