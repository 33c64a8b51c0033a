package domain

import (
	"fmt"
	"strings"
)

// App は起動時に選択されるアプリの種類です。
type App string

const (
	// AppSuit はビジネススーツへの着せ替え (SuitUp AI) アプリです。
	AppSuit App = "suit"
	// AppComic は4コマ漫画生成アプリです。
	AppComic App = "comic"
)

// ParseApp は文字列を App に変換します。未知の値はエラーです。
func ParseApp(s string) (App, error) {
	switch App(strings.ToLower(strings.TrimSpace(s))) {
	case AppSuit:
		return AppSuit, nil
	case AppComic:
		return AppComic, nil
	default:
		return "", fmt.Errorf("unknown app: %q (use suit or comic)", s)
	}
}

// DownloadPrefix は保存ファイル名の接頭辞を返します。
func (a App) DownloadPrefix() string {
	if a == AppComic {
		return "comic-strip"
	}
	return "suitup-ai"
}

// EditMode はスーツアプリの編集モードです。
type EditMode string

const (
	EditModeAuto   EditMode = "auto"
	EditModeCustom EditMode = "custom"
)

// NormalizeEditMode は自由入力を既知のモードに丸めます。空や未知の値は auto 扱いです。
func NormalizeEditMode(s string) EditMode {
	if EditMode(strings.ToLower(strings.TrimSpace(s))) == EditModeCustom {
		return EditModeCustom
	}
	return EditModeAuto
}

// SourceImage はユーザーが選択した元画像です。選択後は変更されません。
type SourceImage struct {
	data     []byte
	MimeType string
	Filename string
}

// NewSourceImage はバイト列をコピーして SourceImage を作成します。
func NewSourceImage(data []byte, mimeType, filename string) *SourceImage {
	return &SourceImage{
		data:     append([]byte(nil), data...),
		MimeType: mimeType,
		Filename: filename,
	}
}

// Bytes は元画像のコピーを返します。
func (s *SourceImage) Bytes() []byte {
	return append([]byte(nil), s.data...)
}

// Size は元画像のバイト数です。
func (s *SourceImage) Size() int {
	return len(s.data)
}

// EncodedImage は base64 (StdEncoding, data: 接頭辞なし) に変換した画像です。
type EncodedImage struct {
	Data     string
	MimeType string
}

// IsEmpty は画像データを持たない場合に true を返します。
func (e EncodedImage) IsEmpty() bool {
	return e.Data == ""
}

// GenerationRequest は1回の画像生成要求です。呼び出しごとに作り直されます。
type GenerationRequest struct {
	Image      EncodedImage
	Prompt     string
	StyleLabel string
}

// GenerationResult は生成された画像です。
type GenerationResult struct {
	DataURI  string // 常に data:image/png;base64,... 形式
	Data     []byte
	MimeType string // モデルが返した実際の MIME タイプ
}
