package imgutil

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
)

// CompressToJPEG は画像データ（PNG, GIF, JPEG等）をJPEG形式に圧縮します。
// image.Decodeがサポートするフォーマットに対応しています。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RecompressSource はアップロードされた元画像を JPEG に再圧縮した SourceImage を返します。
// quality が 0 以下、または圧縮後の方が大きい場合は元の画像をそのまま返します。
// デコードできない形式（WebP など）も元の画像のまま扱います。
func RecompressSource(src *domain.SourceImage, quality int) *domain.SourceImage {
	if src == nil || quality <= 0 {
		return src
	}
	compressed, err := CompressToJPEG(src.Bytes(), quality)
	if err != nil || len(compressed) >= src.Size() {
		return src
	}
	return domain.NewSourceImage(compressed, "image/jpeg", src.Filename)
}
