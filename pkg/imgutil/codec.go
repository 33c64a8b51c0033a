package imgutil

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/shouni/gemini-photo-studio/pkg/domain"
)

const (
	dataURIScheme = "data:"
	base64Marker  = ";base64,"
	pngDataURI    = "data:image/png;base64,"
)

// Encode は r の内容をすべて読み込み、base64 に変換します。
// 読み込みに失敗した場合は *domain.ReadError を返し、再試行はしません。
func Encode(r io.Reader, mimeType string) (domain.EncodedImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.EncodedImage{}, &domain.ReadError{Err: err}
	}
	return EncodeBytes(data, mimeType), nil
}

// EncodeBytes はバイト列を base64 に変換します。MIME タイプはそのまま引き継ぎます。
func EncodeBytes(data []byte, mimeType string) domain.EncodedImage {
	return domain.EncodedImage{
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	}
}

// Decode は EncodedImage を元のバイト列に戻します。
// data: 接頭辞が残っている場合は取り除いてからデコードします。
func Decode(img domain.EncodedImage) ([]byte, error) {
	payload, _ := StripDataURIPrefix(img.Data)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &domain.ReadError{Err: fmt.Errorf("invalid base64 payload: %w", err)}
	}
	return data, nil
}

// StripDataURIPrefix は "data:<mime>;base64," ヘッダーを取り除き、ペイロードと MIME タイプを返します。
// ヘッダーがない場合は入力をそのまま返し、MIME タイプは空になります。
func StripDataURIPrefix(s string) (payload, mimeType string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, dataURIScheme) {
		return s, ""
	}
	header, body, found := strings.Cut(s, ",")
	if !found {
		return "", ""
	}
	header = strings.TrimPrefix(header, dataURIScheme)
	mimeType, _, _ = strings.Cut(header, ";")
	return body, mimeType
}

// ToPNGDataURI は画像データを表示用の data URI に変換します。
// モデルが返す MIME タイプに関わらず image/png として扱います。
func ToPNGDataURI(data []byte) string {
	return pngDataURI + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI は base64 形式の data URI をバイト列と MIME タイプに分解します。
func DecodeDataURI(uri string) ([]byte, string, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, dataURIScheme) || !strings.Contains(uri, base64Marker) {
		return nil, "", fmt.Errorf("not a base64 data URI")
	}
	payload, mimeType := StripDataURIPrefix(uri)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid data URI payload: %w", err)
	}
	return data, mimeType, nil
}

// DetectImageMIME は申告された MIME タイプを正規化します。
// 空または application/octet-stream の場合はデータから推定します。
func DetectImageMIME(data []byte, declared string) string {
	mt := normalizeMIME(declared)
	if mt == "" || mt == "application/octet-stream" {
		mt = normalizeMIME(http.DetectContentType(data))
	}
	return mt
}

// IsImageMIME は image/* 形式かどうかを返します。
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(normalizeMIME(mimeType), "image/")
}

func normalizeMIME(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return strings.ToLower(s)
}
