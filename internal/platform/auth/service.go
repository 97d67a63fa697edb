package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/logger"
)

type Service struct {
	strategy Strategy
	tokens   *Tokens
}

func NewService(strategy Strategy, tokens *Tokens) *Service {
	return &Service{strategy: strategy, tokens: tokens}
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Identity  `json:"user"`
	Mode      string    `json:"mode"`
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	if s.strategy.Mode() == ModeCredentials && (strings.TrimSpace(email) == "" || password == "") {
		return LoginResponse{}, api.ErrInvalid("Email and password are required")
	}
	id, err := s.strategy.Authenticate(ctx, email, password)
	switch {
	case errors.Is(err, ErrBadCredentials):
		return LoginResponse{}, api.ErrUnauthenticated("Invalid email or password")
	case errors.Is(err, ErrDisabled):
		return LoginResponse{}, api.ErrUnauthenticated("Account is disabled")
	case err != nil:
		return LoginResponse{}, err
	}

	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		return LoginResponse{}, err
	}
	logger.Info().Str("user_id", id.ID).Str("mode", s.strategy.Mode()).Msg("login")
	return LoginResponse{Token: token, ExpiresAt: exp, User: id, Mode: s.strategy.Mode()}, nil
}

func (s *Service) Tokens() *Tokens    { return s.tokens }
func (s *Service) Strategy() Strategy { return s.strategy }
