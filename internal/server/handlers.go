package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/shouni/gemini-photo-studio/pkg/credential"
	"github.com/shouni/gemini-photo-studio/pkg/domain"
	"github.com/shouni/gemini-photo-studio/pkg/imgutil"
	"github.com/shouni/gemini-photo-studio/pkg/prompt"
	"github.com/shouni/gemini-photo-studio/pkg/session"
)

// SessionCookie はブラウザごとのセッション ID を保持する Cookie 名です。
const SessionCookie = "photostudio_session"

const (
	msgNotImage           = "Please upload an image file."
	msgNoSource           = "Please upload an image first."
	msgBusy               = "A generation is already in progress."
	msgCredentialRequired = "Please select your API key to continue."
	msgNoResult           = "No generated image yet."
)

// Options は Handler の依存関係です。
type Options struct {
	App            domain.App
	Sessions       *session.Manager
	Styles         *prompt.Catalog
	Gate           *credential.Gate // 漫画アプリのみ
	MaxUploadBytes int64
	JPEGQuality    int
}

// Handler は API のハンドラー群です。
type Handler struct {
	app         domain.App
	sessions    *session.Manager
	styles      *prompt.Catalog
	gate        *credential.Gate
	maxUpload   int64
	jpegQuality int
}

// NewHandler は Handler を作成します。
func NewHandler(opts Options) (*Handler, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("sessions (session.Manager) is required")
	}
	if opts.App == "" {
		opts.App = domain.AppSuit
	}
	if opts.Styles == nil {
		opts.Styles = prompt.DefaultCatalog()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	return &Handler{
		app:         opts.App,
		sessions:    opts.Sessions,
		styles:      opts.Styles,
		gate:        opts.Gate,
		maxUpload:   opts.MaxUploadBytes,
		jpegQuality: opts.JPEGQuality,
	}, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type imageResponse struct {
	Image string `json:"image"`
}

type uploadResponse struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

type dataURIUpload struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
}

type generateRequest struct {
	Mode   string `json:"mode"`
	Style  string `json:"style"`
	Prompt string `json:"prompt"`
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

type credentialResponse struct {
	HasCredential bool   `json:"has_credential"`
	State         string `json:"state"`
}

type stylesResponse struct {
	Default string         `json:"default"`
	Styles  []prompt.Style `json:"styles"`
}

// Health は稼働確認用です。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "app": string(h.app)})
}

// ListStyles は漫画の画風一覧を返します。
func (h *Handler) ListStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stylesResponse{Default: h.styles.Default().ID, Styles: h.styles.Styles()})
}

// UploadImage は元画像を受け取ってセッションに設定します。
// multipart/form-data の file フィールド、または data URI を含む JSON を受け付けます。
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		src *domain.SourceImage
		err error
	)
	switch ct {
	case "multipart/form-data":
		src, err = h.readMultipart(w, r)
	case "application/json":
		src, err = h.readDataURI(w, r)
	default:
		writeError(w, http.StatusUnsupportedMediaType, msgNotImage, "")
		return
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("The image must be %d MB or smaller.", h.maxUpload>>20), "")
			return
		}
		slog.InfoContext(r.Context(), "アップロードを読み込めませんでした", "error", err)
		writeError(w, http.StatusBadRequest, "Could not read the uploaded file.", "")
		return
	}

	if !imgutil.IsImageMIME(src.MimeType) {
		writeError(w, http.StatusUnsupportedMediaType, msgNotImage, "")
		return
	}
	src = imgutil.RecompressSource(src, h.jpegQuality)

	if err := s.Select(src); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, msgNotImage, "")
		return
	}
	slog.InfoContext(r.Context(), "元画像を設定しました", "session", s.ID(), "mime_type", src.MimeType, "size", src.Size())
	writeJSON(w, http.StatusOK, uploadResponse{Filename: src.Filename, MimeType: src.MimeType, Size: src.Size()})
}

// ClearImage は元画像と結果を破棄します。
func (h *Handler) ClearImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Generate は画像を1枚生成します。生成中にクライアントが切断しても処理は最後まで行います。
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body.", "")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	res, err := s.Generate(ctx, session.GenerateOptions{
		Mode:   domain.NormalizeEditMode(req.Mode),
		Style:  req.Style,
		Prompt: req.Prompt,
	})

	var failure *session.Failure
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, imageResponse{Image: res.DataURI})
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, msgBusy, "busy")
	case errors.Is(err, session.ErrNoSource):
		writeError(w, http.StatusBadRequest, msgNoSource, "no_source")
	case errors.Is(err, session.ErrCredentialRequired):
		writeError(w, http.StatusPreconditionRequired, msgCredentialRequired, "credential_required")
	case errors.As(err, &failure):
		writeError(w, http.StatusBadGateway, failure.Message, string(failure.Kind))
	default:
		slog.ErrorContext(ctx, "予期しないエラーが発生しました", "error", err)
		writeError(w, http.StatusInternalServerError, domain.UserMessage(domain.FailureTransport, false), "")
	}
}

// Result は最新の生成結果を返します。
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, ok := s.Result()
	if !ok {
		writeError(w, http.StatusNotFound, msgNoResult, "")
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Image: res.DataURI})
}

// Download は最新の生成結果を PNG ファイルとして返します。
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, ok := s.Result()
	if !ok {
		writeError(w, http.StatusNotFound, msgNoResult, "")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": s.DownloadName()}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// CredentialStatus はキーの選択状態を返します。
func (h *Handler) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.credentialState(h.gate.State()))
}

// SelectCredential は送られたキーでキー選択を行います。
func (h *Handler) SelectCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body.", "")
		return
	}

	state, err := h.gate.Select(credential.WithSubmittedKey(r.Context(), req.APIKey))
	if err != nil {
		if errors.Is(err, credential.ErrSelectionCancelled) {
			writeError(w, http.StatusBadRequest, "API key selection was cancelled.", "cancelled")
			return
		}
		slog.WarnContext(r.Context(), "APIキーの選択に失敗しました", "error", err)
		writeError(w, http.StatusBadGateway, "Could not open API key selection.", "")
		return
	}
	writeJSON(w, http.StatusOK, h.credentialState(state))
}

func (h *Handler) credentialState(state credential.State) credentialResponse {
	return credentialResponse{HasCredential: state == credential.HasCredential, State: state.String()}
}

func (h *Handler) readMultipart(w http.ResponseWriter, r *http.Request) (*domain.SourceImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxUpload {
		return nil, &http.MaxBytesError{Limit: h.maxUpload}
	}
	mimeType := imgutil.DetectImageMIME(data, header.Header.Get("Content-Type"))
	return domain.NewSourceImage(data, mimeType, header.Filename), nil
}

func (h *Handler) readDataURI(w http.ResponseWriter, r *http.Request) (*domain.SourceImage, error) {
	// base64 は元のサイズの 4/3 倍になる
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*4/3+(64<<10))
	var body dataURIUpload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	data, declared, err := imgutil.DecodeDataURI(body.Image)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxUpload {
		return nil, &http.MaxBytesError{Limit: h.maxUpload}
	}
	return domain.NewSourceImage(data, imgutil.DetectImageMIME(data, declared), body.Filename), nil
}

// session は Cookie のセッションを返します。なければ作成して Cookie を設定します。
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	s, created, err := h.sessions.GetOrCreate(id)
	if err != nil {
		slog.ErrorContext(r.Context(), "セッションを作成できませんでした", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not start a session.", "")
		return nil, false
	}
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    s.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("レスポンスの書き込みに失敗しました", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}
