package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shouni/gemini-photo-studio/pkg/credential"
	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/generator"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
	"github.com/shouni/gemini-photo-studio/pkg/prompt"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNoSource           = errors.New("no source image selected")
	ErrNotImage           = errors.New("please upload an image file")
	ErrBusy               = errors.New("a generation is already in progress")
	ErrCredentialRequired = errors.New("api key selection required")
)

// Observer は生成結果の通知先です（メトリクス収集など）。
type Observer interface {
	ObserveGeneration(app domain.App, kind domain.FailureKind, elapsed time.Duration)
}

// Config はセッションの依存関係です。
type Config struct {
	App       domain.App
	Generator generator.ImageGenerator
	Styles    *prompt.Catalog  // 漫画アプリのみ。nil なら既定のカタログ
	Gate      *credential.Gate // 漫画アプリのみ。nil ならキーの確認をしない
	Observer  Observer
	Now       func() time.Time
}

// GenerateOptions は生成ボタン押下時の入力です。
type GenerateOptions struct {
	Mode   domain.EditMode // スーツアプリ
	Style  string          // 漫画アプリ
	Prompt string
}

// Failure は分類済みの生成失敗です。
type Failure struct {
	Kind    domain.FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Session は1人のユーザーの画面状態（元画像、生成中フラグ、最新の結果）を保持します。
type Session struct {
	id   string
	cfg  Config
	gen  *semaphore.Weighted
	busy atomic.Bool

	mu       sync.Mutex
	epoch    uint64 // 元画像の差し替えごとに増える
	source   *domain.SourceImage
	result   *domain.GenerationResult
	failure  *Failure
	lastSeen time.Time
}

// New は Session を作成します。
func New(id string, cfg Config) (*Session, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.App == "" {
		cfg.App = domain.AppSuit
	}
	if cfg.App == domain.AppComic && cfg.Styles == nil {
		cfg.Styles = prompt.DefaultCatalog()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Session{
		id:       id,
		cfg:      cfg,
		gen:      semaphore.NewWeighted(1),
		lastSeen: cfg.Now(),
	}, nil
}

// ID はセッション ID です。
func (s *Session) ID() string { return s.id }

// App はセッションのアプリ種別です。
func (s *Session) App() domain.App { return s.cfg.App }

// Select は元画像を設定します。前回の結果とエラーは破棄されます。
func (s *Session) Select(src *domain.SourceImage) error {
	if src == nil || src.Size() == 0 || !imgutil.IsImageMIME(src.MimeType) {
		return ErrNotImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
	s.epoch++
	s.result = nil
	s.failure = nil
	s.touch()
	return nil
}

// Clear は元画像と結果を破棄します。
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = nil
	s.epoch++
	s.result = nil
	s.failure = nil
	s.touch()
}

// Source は現在の元画像を返します。
func (s *Session) Source() *domain.SourceImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Result は最新の生成結果を返します。
func (s *Session) Result() (*domain.GenerationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Failure は直近の生成失敗を返します。
func (s *Session) Failure() *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Busy は生成中なら true を返します。
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// CredentialRequired はキーの再選択が必要なら true を返します。
func (s *Session) CredentialRequired() bool {
	return s.cfg.Gate != nil && !s.cfg.Gate.HasCredential()
}

// DownloadName は保存用のファイル名 (<接頭辞>-<ミリ秒>.png) を返します。
func (s *Session) DownloadName() string {
	return fmt.Sprintf("%s-%d.png", s.cfg.App.DownloadPrefix(), s.cfg.Now().UnixMilli())
}

// LastSeen は最後に操作された時刻です。
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Generate は元画像と指示から画像を1枚生成します。
// 同じセッションで生成中の場合は ErrBusy を即座に返します。
// 生成に失敗した場合は *Failure を返し、結果は一切残しません。
func (s *Session) Generate(ctx context.Context, opts GenerateOptions) (*domain.GenerationResult, error) {
	if !s.gen.TryAcquire(1) {
		return nil, ErrBusy
	}
	s.busy.Store(true)
	defer func() {
		s.busy.Store(false)
		s.gen.Release(1)
	}()

	s.mu.Lock()
	src, epoch := s.source, s.epoch
	if src == nil {
		s.mu.Unlock()
		return nil, ErrNoSource
	}
	s.result = nil
	s.failure = nil
	s.touch()
	s.mu.Unlock()

	if s.CredentialRequired() {
		return nil, ErrCredentialRequired
	}

	start := s.cfg.Now()
	res, err := s.run(ctx, src, opts)
	kind := domain.Classify(err)
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveGeneration(s.cfg.App, kind, s.cfg.Now().Sub(start))
	}

	var failure *Failure
	if err != nil {
		if s.cfg.Gate != nil {
			s.cfg.Gate.ObserveFailure(ctx, err)
		}
		failure = &Failure{Kind: kind, Message: domain.UserMessage(kind, s.cfg.Gate != nil), Err: err}
		slog.WarnContext(ctx, "画像生成に失敗しました", "session", s.id, "app", s.cfg.App, "kind", kind, "error", err)
	}

	s.mu.Lock()
	// 生成中に元画像が差し替えられた場合、古い画像の結果は残さない
	if s.epoch == epoch {
		s.result = res
		s.failure = failure
	}
	s.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	return res, nil
}

func (s *Session) run(ctx context.Context, src *domain.SourceImage, opts GenerateOptions) (*domain.GenerationResult, error) {
	req, err := s.buildRequest(src, opts)
	if err != nil {
		return nil, err
	}
	return s.cfg.Generator.Generate(ctx, req)
}

func (s *Session) buildRequest(src *domain.SourceImage, opts GenerateOptions) (domain.GenerationRequest, error) {
	var req domain.GenerationRequest
	switch s.cfg.App {
	case domain.AppComic:
		style := s.cfg.Styles.Resolve(opts.Style)
		req.Prompt = prompt.ComicPrompt(style, opts.Prompt)
		req.StyleLabel = style.Label
	default:
		req.Prompt = prompt.SuitPrompt(opts.Mode, opts.Prompt)
	}

	enc, err := imgutil.Encode(bytes.NewReader(src.Bytes()), src.MimeType)
	if err != nil {
		return req, err
	}
	req.Image = enc
	return req, nil
}

// touch は mu を保持した状態で呼び出します。
func (s *Session) touch() {
	s.lastSeen = s.cfg.Now()
}
