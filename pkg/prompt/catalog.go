package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed styles.yaml
var defaultStylesYAML []byte

// Style は4コマ漫画の画風プリセットです。
type Style struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Catalog は画風プリセットの一覧です。
type Catalog struct {
	defaultID string
	styles    []Style
	byID      map[string]Style
}

type catalogFile struct {
	Default string  `yaml:"default"`
	Styles  []Style `yaml:"styles"`
}

// DefaultCatalog は埋め込みの styles.yaml から作成したカタログを返します。
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultStylesYAML)
	if err != nil {
		// 埋め込みファイルはビルド時に固定されるため、ここに来るのは実装ミスのみ
		panic(fmt.Sprintf("embedded styles.yaml is invalid: %v", err))
	}
	return c
}

// LoadCatalog は YAML ファイルからカタログを読み込みます。path が空なら既定のカタログを返します。
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("画風カタログの読み込みに失敗しました: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog は YAML をカタログに変換します。
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("画風カタログの解析に失敗しました: %w", err)
	}
	if len(f.Styles) == 0 {
		return nil, fmt.Errorf("画風カタログにスタイルがありません")
	}

	c := &Catalog{byID: make(map[string]Style, len(f.Styles))}
	for _, s := range f.Styles {
		s.ID = strings.ToLower(strings.TrimSpace(s.ID))
		s.Label = strings.TrimSpace(s.Label)
		if s.ID == "" || s.Label == "" {
			return nil, fmt.Errorf("id と label は必須です: %+v", s)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("スタイル ID が重複しています: %s", s.ID)
		}
		c.byID[s.ID] = s
		c.styles = append(c.styles, s)
	}

	c.defaultID = strings.ToLower(strings.TrimSpace(f.Default))
	if c.defaultID == "" {
		c.defaultID = c.styles[0].ID
	}
	if _, ok := c.byID[c.defaultID]; !ok {
		return nil, fmt.Errorf("既定のスタイルが見つかりません: %s", c.defaultID)
	}
	return c, nil
}

// Lookup は ID に対応するスタイルを返します。
func (c *Catalog) Lookup(id string) (Style, bool) {
	s, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return s, ok
}

// Resolve は ID に対応するスタイルを返し、見つからなければ既定のスタイルを返します。
func (c *Catalog) Resolve(id string) Style {
	if s, ok := c.Lookup(id); ok {
		return s
	}
	return c.Default()
}

// Default は既定のスタイルです。
func (c *Catalog) Default() Style {
	return c.byID[c.defaultID]
}

// Styles は定義順のスタイル一覧のコピーを返します。
func (c *Catalog) Styles() []Style {
	return append([]Style(nil), c.styles...)
}
