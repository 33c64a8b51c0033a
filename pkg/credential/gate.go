package credential

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
)

// State は API キーの利用可否です。
type State int

const (
	NoCredential State = iota
	HasCredential
)

func (s State) String() string {
	if s == HasCredential {
		return "has_credential"
	}
	return "no_credential"
}

// Gate は現在使用可能な API キーが選択されているかを管理します。
// NoCredential → HasCredential は選択操作で、逆方向はキーが見つからないエラーでのみ遷移します。
type Gate struct {
	provider Provider

	mu    sync.Mutex
	state State
}

// NewGate は Provider を注入して Gate を作成します。Init を呼ぶまでは NoCredential です。
func NewGate(provider Provider) *Gate {
	if provider == nil {
		provider = Permissive{}
	}
	return &Gate{provider: provider}
}

// Init は起動時に Provider へ問い合わせて状態を決めます。
// 問い合わせに失敗した場合は「選択済み」とみなします。
func (g *Gate) Init(ctx context.Context) State {
	ok, err := g.provider.HasSelectedCredential(ctx)
	if err != nil {
		slog.WarnContext(ctx, "APIキーの状態を確認できませんでした。選択済みとして扱います", "error", err)
		ok = true
	}
	return g.set(ctx, stateOf(ok))
}

// Select はキー選択を開き、完了後に Provider の状態を再確認して遷移します。
// 選択がキャンセルされた場合は状態を変えずにエラーを返します。
func (g *Gate) Select(ctx context.Context) (State, error) {
	if err := g.provider.OpenSelectCredential(ctx); err != nil {
		return g.State(), err
	}

	ok, err := g.provider.HasSelectedCredential(ctx)
	if err != nil {
		slog.WarnContext(ctx, "選択後のAPIキー状態を確認できませんでした。選択済みとして扱います", "error", err)
		ok = true
	}
	return g.set(ctx, stateOf(ok)), nil
}

// ObserveFailure は生成失敗を受け取り、キーが見つからないエラーなら NoCredential に戻します。
// 遷移した場合に true を返します。
func (g *Gate) ObserveFailure(ctx context.Context, err error) bool {
	if !domain.IsCredentialRejected(err) {
		return false
	}
	g.mu.Lock()
	demoted := g.state == HasCredential
	g.state = NoCredential
	g.mu.Unlock()

	if demoted {
		slog.WarnContext(ctx, "APIキーが見つからないため再選択を求めます")
	}
	return demoted
}

// State は現在の状態です。
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// HasCredential は HasCredential 状態なら true を返します。
func (g *Gate) HasCredential() bool {
	return g.State() == HasCredential
}

func (g *Gate) set(ctx context.Context, s State) State {
	g.mu.Lock()
	prev := g.state
	g.state = s
	g.mu.Unlock()

	if prev != s {
		slog.InfoContext(ctx, "APIキーの状態が変わりました", "from", prev.String(), "to", s.String())
	}
	return s
}

func stateOf(ok bool) State {
	if ok {
		return HasCredential
	}
	return NoCredential
}
