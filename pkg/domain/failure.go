package domain

import (
	"errors"
	"strings"
)

// ErrNoImageProduced はリモート呼び出しは成功したが画像パーツが含まれなかったことを示します。
var ErrNoImageProduced = errors.New("no image produced")

// credentialRejectedMarker は選択中の API キーが無効になったときのエラーメッセージ断片です。
const credentialRejectedMarker = "Requested entity was not found"

// ReadError は元画像の読み込みやデコードに失敗したことを示します。
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "read source image: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// FailureKind は生成失敗の分類です。
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureRead      FailureKind = "read"
	FailureNoImage   FailureKind = "no_image"
	FailureAuth      FailureKind = "auth"
	FailureTransport FailureKind = "transport"
)

// Classify はエラーを失敗分類に変換します。
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var readErr *ReadError
	switch {
	case errors.As(err, &readErr):
		return FailureRead
	case errors.Is(err, ErrNoImageProduced):
		return FailureNoImage
	case IsCredentialRejected(err):
		return FailureAuth
	default:
		return FailureTransport
	}
}

// IsCredentialRejected はリモートのエラーが「キーが見つからない」形かどうかを判定します。
// 構造化されたエラーコードが得られないため、メッセージの部分一致で判定しています。
func IsCredentialRejected(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), credentialRejectedMarker)
}

// UserMessage は失敗分類に応じて画面に表示する文言を返します。
// authAware が false のアプリでは認証エラーも通信エラーとして扱います。
func UserMessage(kind FailureKind, authAware bool) string {
	switch kind {
	case FailureNone:
		return ""
	case FailureNoImage:
		return "Failed to generate image. Please try again."
	case FailureAuth:
		if authAware {
			return "Your API key was not found. Please select your API key again."
		}
	}
	return "An error occurred during generation. Please check your connection and try again."
}
