package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrSelectionCancelled はキー選択が完了しなかったことを示します。
var ErrSelectionCancelled = errors.New("credential selection cancelled")

// Provider は API キーの選択機能を提供する外部の仕組みを抽象化します。
type Provider interface {
	// HasSelectedCredential は使用可能なキーが選択済みかどうかを返します。
	HasSelectedCredential(ctx context.Context) (bool, error)
	// OpenSelectCredential はキー選択を開始し、完了またはキャンセルされるまで待ちます。
	OpenSelectCredential(ctx context.Context) error
}

// Permissive はキー選択の仕組みがない環境向けの Provider です。常に「選択済み」と答えます。
type Permissive struct{}

func (Permissive) HasSelectedCredential(context.Context) (bool, error) { return true, nil }

func (Permissive) OpenSelectCredential(context.Context) error { return nil }

// KeyStore は選択された API キーをメモリ上に保持します。generator.KeySource を満たします。
type KeyStore struct {
	mu  sync.RWMutex
	key string
}

// NewKeyStore は初期キーを指定して KeyStore を作成します。空文字なら未選択です。
func NewKeyStore(initial string) *KeyStore {
	return &KeyStore{key: strings.TrimSpace(initial)}
}

// APIKey は現在のキーを返します。
func (s *KeyStore) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Set はキーを差し替えます。
func (s *KeyStore) Set(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = strings.TrimSpace(key)
}

// Selector はユーザーにキーを選んでもらう手段です。
type Selector interface {
	SelectKey(ctx context.Context) (string, error)
}

// HostProvider は KeyStore と Selector で構成するホスト側の Provider です。
type HostProvider struct {
	store    *KeyStore
	selector Selector
}

// NewHostProvider は HostProvider を作成します。
func NewHostProvider(store *KeyStore, selector Selector) (*HostProvider, error) {
	if store == nil {
		return nil, fmt.Errorf("store (KeyStore) is required")
	}
	if selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	return &HostProvider{store: store, selector: selector}, nil
}

func (p *HostProvider) HasSelectedCredential(context.Context) (bool, error) {
	return p.store.APIKey() != "", nil
}

func (p *HostProvider) OpenSelectCredential(ctx context.Context) error {
	key, err := p.selector.SelectKey(ctx)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrSelectionCancelled
	}
	p.store.Set(key)
	return nil
}

type submittedKey struct{}

// WithSubmittedKey は HTTP リクエストなどで送られたキーを context に載せます。
func WithSubmittedKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, submittedKey{}, key)
}

// ContextSelector は WithSubmittedKey で載せたキーを選択結果として返します。
type ContextSelector struct{}

func (ContextSelector) SelectKey(ctx context.Context) (string, error) {
	key, _ := ctx.Value(submittedKey{}).(string)
	if strings.TrimSpace(key) == "" {
		return "", ErrSelectionCancelled
	}
	return key, nil
}

// TerminalSelector は端末からキーを入力してもらいます。端末なら入力内容は表示しません。
type TerminalSelector struct {
	In     *os.File
	Prompt io.Writer
}

func (s TerminalSelector) SelectKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in := s.In
	if in == nil {
		in = os.Stdin
	}
	out := s.Prompt
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprint(out, "Gemini API key: ")
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("キーの入力に失敗しました: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("キーの入力に失敗しました: %w", err)
	}
	return strings.TrimSpace(line), nil
}
