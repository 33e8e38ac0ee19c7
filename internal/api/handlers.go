package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"vidtube/internal/auth"
	"vidtube/internal/media"
	"vidtube/internal/observability/logging"
	"vidtube/internal/storage"
)

// Handler bundles the dependencies shared by every endpoint.
type Handler struct {
	Store  storage.Repository
	Tokens *auth.Manager
	Media  media.Uploader
	Logger *slog.Logger
}

func NewHandler(store storage.Repository, tokens *auth.Manager, uploader media.Uploader, logger *slog.Logger) *Handler {
	if uploader == nil {
		uploader = media.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Tokens: tokens, Media: uploader, Logger: logger}
}

type successEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

type errorEnvelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeData emits the uniform success envelope. The HTTP status always
// mirrors the envelope's statusCode.
func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, successEnvelope{StatusCode: status, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Success: false, StatusCode: status, Message: message})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeStoreError maps storage sentinel errors onto the response taxonomy and
// hides internals behind a generic message for everything else.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrVideoNotInPlaylist):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.WithContext(r.Context(), h.Logger).Error("storage operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			if strings.EqualFold(strings.TrimSpace(p), "https") {
				return true
			}
		}
	}
	if r.URL != nil && strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	return false
}

// Health reports store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}
