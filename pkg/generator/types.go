package generator

import (
	"google.golang.org/genai"
)

const (
	DefaultSuitModel        = "gemini-2.5-flash-image"
	DefaultComicModel       = "gemini-3-pro-image-preview"
	DefaultComicAspectRatio = "1:1" // 2x2 のグリッドには正方形が合う
	DefaultComicImageSize   = "1K"  // 吹き出しの文字を読める解像度
)

// Variant はアプリごとのモデルと生成設定です。
type Variant struct {
	Name        string
	Model       string
	AspectRatio string
	ImageSize   string
}

// SuitVariant はスーツアプリ用の設定です。生成設定はモデルの既定値に任せます。
func SuitVariant(model string) Variant {
	if model == "" {
		model = DefaultSuitModel
	}
	return Variant{Name: "suit", Model: model}
}

// ComicVariant は4コマ漫画用の設定です。上位モデルを使い、アスペクト比と解像度を指定します。
func ComicVariant(model, aspectRatio, imageSize string) Variant {
	if model == "" {
		model = DefaultComicModel
	}
	if aspectRatio == "" {
		aspectRatio = DefaultComicAspectRatio
	}
	if imageSize == "" {
		imageSize = DefaultComicImageSize
	}
	return Variant{Name: "comic", Model: model, AspectRatio: aspectRatio, ImageSize: imageSize}
}

// generateConfig は SDK に渡す生成設定を返します。指定がなければ nil です。
func (v Variant) generateConfig() *genai.GenerateContentConfig {
	if v.AspectRatio == "" && v.ImageSize == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: v.AspectRatio,
			ImageSize:   v.ImageSize,
		},
	}
}

// StaticKey は固定の API キーです。
type StaticKey string

// APIKey は KeySource を実装します。
func (k StaticKey) APIKey() string {
	return string(k)
}
