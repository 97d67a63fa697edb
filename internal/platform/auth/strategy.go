package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"hcsc-backend/internal/platform/config"
)

const (
	ModeCredentials = "credentials"
	ModeStub        = "stub"
)

var (
	ErrBadCredentials = errors.New("authentication failed")
	ErrDisabled       = errors.New("account disabled")
)

// Strategy: auth.mode で選ぶログイン方式
type Strategy interface {
	Mode() string
	Authenticate(ctx context.Context, email, password string) (Identity, error)
}

func NewStrategy(cfg config.AuthConfig, dir Directory) (Strategy, error) {
	switch cfg.Mode {
	case ModeCredentials, "":
		return NewCredential(cfg, dir)
	case ModeStub:
		return NewStub(cfg), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// ===== credentials =====

// Credential: 設定のダッシュボード用メール/パスワード（bcrypt ハッシュ推奨）で照合する
type Credential struct {
	email    string
	hash     []byte
	plain    string
	fullName string
	dir      Directory
}

func NewCredential(cfg config.AuthConfig, dir Directory) (*Credential, error) {
	if cfg.Email == "" || (cfg.Password == "" && cfg.PasswordHash == "") {
		return nil, errors.New("credentials mode needs auth.email and auth.password or auth.password_hash")
	}
	c := &Credential{email: strings.ToLower(strings.TrimSpace(cfg.Email)), plain: cfg.Password, fullName: cfg.FullName, dir: dir}
	if cfg.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth.password_hash: %w", err)
		}
		c.hash = []byte(cfg.PasswordHash)
	}
	return c, nil
}

func (c *Credential) Mode() string { return ModeCredentials }

func (c *Credential) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(c.email)) == 1

	var passOK bool
	if c.hash != nil {
		passOK = bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.plain)) == 1
	}
	if !emailOK || !passOK {
		return Identity{}, ErrBadCredentials
	}

	id := Identity{ID: "dashboard", Email: c.email, FullName: c.fullName, Role: "manager"}
	if c.dir != nil {
		u, active, err := c.dir.ByEmail(ctx, c.email)
		if err != nil {
			return Identity{}, err
		}
		if u != nil {
			if !active {
				return Identity{}, ErrDisabled
			}
			id = *u
		}
	}
	return id, nil
}

// ===== stub =====

// Stub: 開発用。どんな入力でも固定の manager を返す
type Stub struct{ identity Identity }

func NewStub(cfg config.AuthConfig) *Stub {
	email := cfg.Email
	if email == "" {
		email = "manager@hcsc.local"
	}
	name := cfg.FullName
	if name == "" {
		name = "HCSC Manager"
	}
	return &Stub{identity: Identity{ID: "stub-manager", Email: email, FullName: name, Role: "manager"}}
}

func (s *Stub) Mode() string { return ModeStub }

func (s *Stub) Identity() Identity { return s.identity }

func (s *Stub) Authenticate(context.Context, string, string) (Identity, error) {
	return s.identity, nil
}
