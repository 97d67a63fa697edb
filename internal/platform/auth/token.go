package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hcsc-backend/internal/platform/clock"
)

const DefaultTokenTTL = 24 * time.Hour

type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokens(secret string, ttl time.Duration, c clock.Clock) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: c}
}

func (t *Tokens) Issue(id Identity) (string, time.Time, error) {
	now := t.clock.Now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   id.ID,
		"email": id.Email,
		"name":  id.FullName,
		"role":  id.Role,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	})
	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

func (t *Tokens) Parse(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(tk *jwt.Token) (any, error) {
		// alg 固定（none攻撃とか回避）
		if tk.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil || token == nil || !token.Valid {
		return Identity{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, errors.New("missing sub")
	}
	id := Identity{ID: sub}
	id.Email, _ = claims["email"].(string)
	id.FullName, _ = claims["name"].(string)
	id.Role, _ = claims["role"].(string)
	return id, nil
}
