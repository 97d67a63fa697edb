package storage

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hcsc-backend/internal/platform/clock"
)

// Signer: アップロード先パスを埋め込んだ短命トークン
type Signer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewSigner(secret string, ttl time.Duration, c clock.Clock) *Signer {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Signer{secret: []byte(secret), ttl: ttl, clock: c}
}

func (s *Signer) Sign(p string) (string, time.Time, error) {
	exp := s.clock.Now().Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"path": p,
		"op":   "upload",
		"exp":  exp.Unix(),
	})
	str, err := tok.SignedString(s.secret)
	return str, exp, err
}

// Verify: トークンが p 向けに発行されたものか
func (s *Signer) Verify(token, p string) error {
	t, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !t.Valid {
		return errors.New("invalid or expired upload token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid claims")
	}
	if op, _ := claims["op"].(string); op != "upload" {
		return errors.New("token is not an upload token")
	}
	if got, _ := claims["path"].(string); got != p {
		return errors.New("token was issued for a different path")
	}
	return nil
}
