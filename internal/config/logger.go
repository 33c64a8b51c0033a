package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger は LOG_LEVEL と LOG_FORMAT (text|json) に従って slog.Logger を作成します。
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
