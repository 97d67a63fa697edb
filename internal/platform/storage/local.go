package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"hcsc-backend/internal/platform/logger"
)

var (
	ErrTooLarge = errors.New("object exceeds size limit")
	ErrBadPath  = errors.New("invalid object path")
	ErrExists   = errors.New("object already exists")
)

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// CleanPath: "enrollmentID/file.jpg" 形式に正規化。".." や絶対パスは弾く
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrBadPath
	}
	clean := path.Clean(p)
	if clean != p {
		return "", ErrBadPath
	}
	for _, seg := range strings.Split(clean, "/") {
		if !segmentRe.MatchString(seg) {
			return "", ErrBadPath
		}
	}
	return clean, nil
}

// Local: base/bucket 以下にファイルとして置く
type Local struct {
	root string
}

func NewLocal(baseDir, bucket string) (*Local, error) {
	root := filepath.Join(baseDir, bucket)
	if err := os.MkdirAll(root, 0o755); err != nil {
		logger.Error().Err(err).Str("path", root).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}
	logger.Info().Str("path", root).Msg("Local storage directory ensured")
	return &Local{root: root}, nil
}

func (l *Local) full(p string) string { return filepath.Join(l.root, filepath.FromSlash(p)) }

// Exists: 同じパスに既にオブジェクトがあるか
func (l *Local) Exists(p string) bool {
	_, err := l.Path(p)
	return err == nil
}

// Put: 一時ファイルに書いてから link で確定する。上書きはしない（既存なら ErrExists）
func (l *Local) Put(ctx context.Context, p string, r io.Reader, max int64) (int64, error) {
	dst := l.full(p)
	if l.Exists(p) {
		return 0, ErrExists
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create subdirectory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, max+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save file content: %w", err)
	}
	if n > max {
		return 0, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// link は宛先があると失敗するので、同時アップロードでも片方だけが残る
	if err := os.Link(tmp.Name(), dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, ErrExists
		}
		return 0, fmt.Errorf("failed to commit file: %w", err)
	}
	logger.Info().Str("path", p).Int64("size", n).Msg("object stored")
	return n, nil
}

// Path: 実ファイルのパス。無ければ os.ErrNotExist
func (l *Local) Path(p string) (string, error) {
	full := l.full(p)
	st, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if st.IsDir() {
		return "", os.ErrNotExist
	}
	return full, nil
}
