package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func newSvc(t *testing.T, c clock.Clock, max int64) *Service {
	t.Helper()
	b, err := NewLocal(t.TempDir(), "enrollment-images")
	require.NoError(t, err)
	return NewService(b, NewSigner("sign", time.Hour, c), "http://localhost:8443/", max)
}

func TestCleanPath(t *testing.T) {
	ok := []string{"01HX/photo.jpg", "a/b/c.png", "x.jpg"}
	for _, p := range ok {
		got, err := CleanPath(p)
		require.NoError(t, err, p)
		assert.Equal(t, p, got)
	}
	bad := []string{"", "/abs.jpg", "../x.jpg", "a/../b.jpg", "a//b.jpg", "a/./b.jpg", `a\b.jpg`, "a/.hidden", "a/"}
	for _, p := range bad {
		_, err := CleanPath(p)
		assert.ErrorIs(t, err, ErrBadPath, p)
	}
}

func TestSigner_PathBound(t *testing.T) {
	c := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	s := NewSigner("k", time.Hour, c)
	tok, exp, err := s.Sign("e1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(time.Hour), exp)

	assert.NoError(t, s.Verify(tok, "e1/a.jpg"))
	assert.Error(t, s.Verify(tok, "e2/a.jpg"))
	assert.Error(t, NewSigner("other", time.Hour, c).Verify(tok, "e1/a.jpg"))

	c.Advance(2 * time.Hour)
	assert.Error(t, s.Verify(tok, "e1/a.jpg"))
}

func TestService_UploadAndLocate(t *testing.T) {
	svc := newSvc(t, nil, 0)
	signed, err := svc.SignUpload("e1/a.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed.SignedURL, "http://localhost:8443/api/v1/storage/upload/e1/a.png?token="))

	body := pngBytes(t)
	up, err := svc.Upload(context.Background(), "e1/a.png", signed.Token, bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), up.Size)

	_, err = svc.Locate("e1/a.png")
	assert.NoError(t, err)
	_, err = svc.Locate("e1/missing.png")
	assert.Equal(t, http.StatusNotFound, api.ToHTTPStatus(err))
}

func TestService_UploadRejects(t *testing.T) {
	svc := newSvc(t, nil, 64)
	ctx := context.Background()

	_, err := svc.SignUpload("../etc/passwd")
	assert.Equal(t, http.StatusBadRequest, api.ToHTTPStatus(err))

	signed, err := svc.SignUpload("e1/a.png")
	require.NoError(t, err)

	_, err = svc.Upload(ctx, "e2/a.png", signed.Token, bytes.NewReader(pngBytes(t)))
	assert.Equal(t, http.StatusUnauthorized, api.ToHTTPStatus(err))

	_, err = svc.Upload(ctx, "e1/a.png", signed.Token, strings.NewReader("plain text, not an image"))
	assert.Equal(t, http.StatusBadRequest, api.ToHTTPStatus(err))

	big := append(pngBytes(t), bytes.Repeat([]byte{0}, 128)...)
	_, err = svc.Upload(ctx, "e1/a.png", signed.Token, bytes.NewReader(big))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	_, err = svc.Locate("e1/a.png")
	assert.Equal(t, http.StatusNotFound, api.ToHTTPStatus(err))
}

func TestService_NoOverwrite(t *testing.T) {
	svc := newSvc(t, nil, 0)
	ctx := context.Background()
	first := pngBytes(t)

	signed, err := svc.SignUpload("01ENR/photo-1.png")
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "01ENR/photo-1.png", signed.Token, bytes.NewReader(first))
	require.NoError(t, err)

	_, err = svc.SignUpload("01ENR/photo-1.png")
	assert.Equal(t, http.StatusConflict, api.ToHTTPStatus(err))

	// 署名済みトークンが有効期限内でも既存ファイルは置き換わらない
	second := append(pngBytes(t), bytes.Repeat([]byte{1}, 49)...)
	_, err = svc.Upload(ctx, "01ENR/photo-1.png", signed.Token, bytes.NewReader(second))
	assert.Equal(t, http.StatusConflict, api.ToHTTPStatus(err))

	full, err := svc.Locate("01ENR/photo-1.png")
	require.NoError(t, err)
	got, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestLocal_PutRefusesExisting(t *testing.T) {
	b, err := NewLocal(t.TempDir(), "bucket")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.Put(ctx, "e1/a.png", strings.NewReader("one"), 64)
	require.NoError(t, err)
	_, err = b.Put(ctx, "e1/a.png", strings.NewReader("two"), 64)
	assert.ErrorIs(t, err, ErrExists)

	entries, err := os.ReadDir(b.full("e1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestHandler_SignedUploadFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newSvc(t, nil, 0)
	r := gin.New()
	g := r.Group("/api/v1")
	RegisterRoutes(g, g, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/storage/sign-upload", strings.NewReader(`{"path":"e9/p.png"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data SignedUpload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	u, err := url.Parse(env.Data.SignedURL)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, u.RequestURI(), bytes.NewReader(pngBytes(t))))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/storage/upload/e9/p.png?token=bad", bytes.NewReader(pngBytes(t))))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/storage/objects/e9/p.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes(t), w.Body.Bytes())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/storage/sign-upload", strings.NewReader(`{"path":"e9/p.png"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, u.RequestURI(), bytes.NewReader(pngBytes(t))))
	assert.Equal(t, http.StatusConflict, w.Code)
}
