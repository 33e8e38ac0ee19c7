package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"vidtube/internal/auth"
	"vidtube/internal/media"
	"vidtube/internal/models"
	"vidtube/internal/storage"
)

// stubUploader records uploads and deletes so tests can assert on asset
// lifecycle without an object store.
type stubUploader struct {
	mu       sync.Mutex
	counter  int
	uploads  []media.Kind
	deletes  []string
	failKind media.Kind
	duration float64
	// keepLocal leaves staged files in place, mimicking an uploader that
	// fails before consuming its input.
	keepLocal bool
}

func (s *stubUploader) Upload(ctx context.Context, localPath string, kind media.Kind) (*media.Asset, error) {
	if !s.keepLocal {
		os.Remove(localPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKind != "" && kind == s.failKind {
		return nil, fmt.Errorf("upload rejected")
	}
	s.counter++
	key := fmt.Sprintf("%s/asset-%d", kind, s.counter)
	s.uploads = append(s.uploads, kind)
	asset := &media.Asset{URL: "https://cdn.test/" + key, Key: key}
	if kind == media.KindVideo {
		asset.DurationSeconds = s.duration
	}
	return asset, nil
}

func (s *stubUploader) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	return nil
}

func (s *stubUploader) KeyFromURL(url string) string {
	const base = "https://cdn.test/"
	if len(url) > len(base) && url[:len(base)] == base {
		return url[len(base):]
	}
	return ""
}

func (s *stubUploader) Enabled() bool { return true }

func (s *stubUploader) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

func newTestHandler(t *testing.T) (*Handler, *stubUploader) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	tokens, err := auth.NewManager(auth.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Issuer:        "vidtube-test",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	uploader := &stubUploader{duration: 42.5}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, tokens, uploader, logger), uploader
}

const testPassword = "password123"

func createTestUser(t *testing.T, h *Handler, username string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user, err := h.Store.CreateUser(context.Background(), storage.CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: string(hash),
		AvatarURL:    "https://cdn.test/avatars/" + username,
	})
	if err != nil {
		t.Fatalf("CreateUser(%q): %v", username, err)
	}
	return user
}

func createTestVideo(t *testing.T, h *Handler, ownerID, title string, published bool) models.Video {
	t.Helper()
	video, err := h.Store.CreateVideo(context.Background(), storage.CreateVideoParams{
		OwnerID:         ownerID,
		Title:           title,
		Description:     "about " + title,
		VideoURL:        "https://cdn.test/videos/" + title,
		ThumbnailURL:    "https://cdn.test/thumbnails/" + title,
		DurationSeconds: 10,
		Published:       published,
	})
	if err != nil {
		t.Fatalf("CreateVideo(%q): %v", title, err)
	}
	return video
}

// accessCookie mints a fresh access token for the user.
func accessCookie(t *testing.T, h *Handler, userID string) *http.Cookie {
	t.Helper()
	token, _, err := h.Tokens.IssueAccessToken(userID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return &http.Cookie{Name: accessTokenCookie, Value: token}
}

func newJSONRequest(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return req
}

// newMultipartRequest builds a multipart form with string fields and dummy
// file parts.
func newMultipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string]string, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %q: %v", name, err)
		}
	}
	for field, filename := range files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create file part %q: %v", field, err)
		}
		if _, err := part.Write([]byte("file-content")); err != nil {
			t.Fatalf("write file part %q: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return req
}

// decodeSuccess unmarshals the success envelope's data into dest (which may
// be nil to ignore it) and returns the message.
func decodeSuccess(t *testing.T, rr *httptest.ResponseRecorder, dest any) string {
	t.Helper()
	var envelope struct {
		StatusCode int             `json:"statusCode"`
		Data       json.RawMessage `json:"data"`
		Message    string          `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
	}
	if envelope.StatusCode != rr.Code {
		t.Fatalf("envelope statusCode = %d, response status = %d", envelope.StatusCode, rr.Code)
	}
	if dest != nil {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			t.Fatalf("decode envelope data: %v (data %q)", err, string(envelope.Data))
		}
	}
	return envelope.Message
}

// requireErrorEnvelope asserts the failure envelope shape and status.
func requireErrorEnvelope(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int) string {
	t.Helper()
	if rr.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body %q)", rr.Code, wantStatus, rr.Body.String())
	}
	var envelope struct {
		Success    bool   `json:"success"`
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rr.Body.String())
	}
	if envelope.Success {
		t.Fatalf("error envelope reports success = true")
	}
	if envelope.StatusCode != wantStatus {
		t.Fatalf("error envelope statusCode = %d, want %d", envelope.StatusCode, wantStatus)
	}
	return envelope.Message
}

// stagedTempFiles snapshots the upload temp files currently in the OS temp
// dir so tests can assert a request leaves none behind.
func stagedTempFiles(t *testing.T) map[string]bool {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "upload-*"))
	if err != nil {
		t.Fatalf("glob temp files: %v", err)
	}
	files := make(map[string]bool, len(matches))
	for _, match := range matches {
		files[match] = true
	}
	return files
}

// leakedStagedFiles returns temp files present now that were not in before.
func leakedStagedFiles(t *testing.T, before map[string]bool) []string {
	t.Helper()
	var leaked []string
	for file := range stagedTempFiles(t) {
		if !before[file] {
			leaked = append(leaked, file)
		}
	}
	return leaked
}

func responseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
