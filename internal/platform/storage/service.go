// Package storage is the local object store behind the signed-upload flow used for enrollment photos.
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"hcsc-backend/internal/platform/api"
)

const DefaultMaxBytes = 5 << 20

type Service struct {
	bucket    *Local
	signer    *Signer
	publicURL string
	maxBytes  int64
}

func NewService(bucket *Local, signer *Signer, publicURL string, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{bucket: bucket, signer: signer, publicURL: strings.TrimRight(publicURL, "/"), maxBytes: maxBytes}
}

type SignedUpload struct {
	SignedURL string    `json:"signed_url"`
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Uploaded struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (s *Service) SignUpload(p string) (SignedUpload, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return SignedUpload{}, api.ErrInvalid("path must look like <enrollment_id>/<file name>")
	}
	if s.bucket.Exists(clean) {
		return SignedUpload{}, api.ErrConflict("object already exists: " + clean)
	}
	tok, exp, err := s.signer.Sign(clean)
	if err != nil {
		return SignedUpload{}, err
	}
	u := s.publicURL + "/api/v1/storage/upload/" + clean + "?token=" + url.QueryEscape(tok)
	return SignedUpload{SignedURL: u, Token: tok, Path: clean, ExpiresAt: exp}, nil
}

// Upload: 画像のみ受け付ける
func (s *Service) Upload(ctx context.Context, p, token string, body io.Reader) (Uploaded, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return Uploaded{}, api.ErrInvalid("invalid object path")
	}
	if err := s.signer.Verify(token, clean); err != nil {
		return Uploaded{}, api.ErrUnauthenticated(err.Error())
	}

	br := bufio.NewReaderSize(body, 512)
	head, _ := br.Peek(512)
	if ct := http.DetectContentType(head); !strings.HasPrefix(ct, "image/") {
		return Uploaded{}, api.ErrInvalid("only image uploads are accepted, got " + ct)
	}

	n, err := s.bucket.Put(ctx, clean, br, s.maxBytes)
	if errors.Is(err, ErrTooLarge) {
		if s.maxBytes >= 1<<20 {
			return Uploaded{}, api.ErrInvalid(fmt.Sprintf("file exceeds %d MB", s.maxBytes>>20))
		}
		return Uploaded{}, api.ErrInvalid(fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	if errors.Is(err, ErrExists) {
		return Uploaded{}, api.ErrConflict("object already exists: " + clean)
	}
	if err != nil {
		return Uploaded{}, err
	}
	return Uploaded{Path: clean, Size: n}, nil
}

func (s *Service) Locate(p string) (string, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return "", api.ErrInvalid("invalid object path")
	}
	full, err := s.bucket.Path(clean)
	if errors.Is(err, os.ErrNotExist) {
		return "", api.ErrNotFound("object not found")
	}
	return full, err
}
