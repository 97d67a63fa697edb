package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
	"hcsc-backend/internal/platform/ids"
)

type Service struct {
	repo  Repository
	clock clock.Clock
	id    ids.IDGen
}

func NewService(conn *sql.DB) *Service {
	return NewServiceWith(NewStore(conn), clock.Real{}, ids.NewULID())
}

func NewServiceWith(repo Repository, c clock.Clock, g ids.IDGen) *Service {
	return &Service{repo: repo, clock: c, id: g}
}

func (s *Service) List(ctx context.Context, f Filter, p api.Page) (api.ListResult[User], error) {
	if f.Role != "" && f.Role != "all" && !Role(f.Role).Valid() {
		return api.ListResult[User]{}, api.ErrInvalid("role must be one of manager, sales, admin, all")
	}
	items, total, err := s.repo.List(ctx, f, false, p)
	if err != nil {
		return api.ListResult[User]{}, err
	}
	return api.NewList(items, total, p), nil
}

// SalesStaff: 受付フォームの担当者ドロップダウン用（有効な sales のみ）
func (s *Service) SalesStaff(ctx context.Context) (SalesStaffResponse, error) {
	items, _, err := s.repo.List(ctx, Filter{Role: string(RoleSales)}, true, api.Page{Limit: api.MaxLimit})
	if err != nil {
		return SalesStaffResponse{}, err
	}
	if items == nil {
		items = []User{}
	}
	return SalesStaffResponse{Staff: items}, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, api.ErrNotFound("User not found")
		}
		return User{}, err
	}
	return *u, nil
}

func (s *Service) Create(ctx context.Context, in CreateUserRequest) (User, error) {
	name, email := strings.TrimSpace(in.FullName), strings.TrimSpace(in.Email)
	if name == "" || email == "" {
		return User{}, api.ErrInvalid("Full name and email are required")
	}
	role := in.Role
	if role == "" {
		role = RoleSales
	}
	if !role.Valid() {
		return User{}, api.ErrInvalid("role must be one of manager, sales, admin")
	}
	id, err := s.id.New()
	if err != nil {
		return User{}, err
	}
	u := &User{ID: id, FullName: name, Email: email, Role: role, IsActive: true, CreatedAt: s.clock.Now().UTC()}
	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, api.FromMySQL(err, "Email already exists")
	}
	return *u, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateUserRequest) (User, error) {
	if in.FullName != nil && strings.TrimSpace(*in.FullName) == "" {
		return User{}, api.ErrInvalid("full_name must not be empty")
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) == "" {
		return User{}, api.ErrInvalid("email must not be empty")
	}
	if in.Role != nil && !in.Role.Valid() {
		return User{}, api.ErrInvalid("role must be one of manager, sales, admin")
	}
	ok, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return User{}, api.FromMySQL(err, "Email already exists")
	}
	if !ok {
		return User{}, api.ErrNotFound("User not found")
	}
	return s.Get(ctx, id)
}
