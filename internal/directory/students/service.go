package students

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

func (s *Service) List(ctx context.Context, f Filter, p api.Page) (api.ListResult[Student], error) {
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return api.ListResult[Student]{}, err
	}
	return api.NewList(items, total, p), nil
}

// Get: 貸出履歴付き
func (s *Service) Get(ctx context.Context, id string) (StudentDetail, error) {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return StudentDetail{}, notFound(err)
	}
	recs, err := s.repo.Records(ctx, st.Phone)
	if err != nil {
		return StudentDetail{}, err
	}
	return StudentDetail{Student: *st, MaterialRecords: recs}, nil
}

func (s *Service) Create(ctx context.Context, in CreateStudentRequest) (Student, error) {
	phone := api.NormalizePhone(in.Phone)
	if !api.IsVNPhone(phone) {
		return Student{}, api.ErrInvalid("phone must be a 10-digit number starting with 0")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Student{}, api.ErrInvalid("name is required")
	}
	id, err := s.id.New()
	if err != nil {
		return Student{}, err
	}
	email, level := strings.TrimSpace(in.Email), strings.TrimSpace(in.Level)
	now := s.clock.Now().UTC()
	st := &Student{
		ID:          id,
		Name:        name,
		Email:       &email,
		Phone:       phone,
		Level:       &level,
		StudentType: strings.TrimSpace(in.StudentType),
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, st); err != nil {
		return Student{}, api.FromMySQL(err, "A student with this phone already exists")
	}
	return *st, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateStudentRequest) (StudentDetail, error) {
	p := Patch{
		Name:        in.Name,
		Email:       in.Email,
		Level:       in.Level,
		StudentType: in.StudentType,
		Notes:       in.Notes,
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return StudentDetail{}, api.ErrInvalid("name must not be empty")
	}
	if in.Phone != nil {
		phone := api.NormalizePhone(*in.Phone)
		if !api.IsVNPhone(phone) {
			return StudentDetail{}, api.ErrInvalid("phone must be a 10-digit number starting with 0")
		}
		p.Phone = &phone
	}
	if p.Empty() {
		return StudentDetail{}, api.ErrInvalid("No valid fields to update")
	}
	if err := s.repo.Update(ctx, id, p, s.clock.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentDetail{}, notFound(err)
		}
		return StudentDetail{}, api.FromMySQL(err, "A student with this phone already exists")
	}
	return s.Get(ctx, id)
}

// CheckPhone: 受付フォームの電話番号照会。未登録なら student=null。
func (s *Service) CheckPhone(ctx context.Context, raw string) (CheckPhoneResponse, error) {
	phone := api.NormalizePhone(raw)
	if phone == "" {
		return CheckPhoneResponse{}, api.ErrInvalid("Phone number is required")
	}
	if !api.IsVNPhone(phone) {
		return CheckPhoneResponse{}, api.ErrInvalid("phone must be a 10-digit number starting with 0")
	}
	out := CheckPhoneResponse{BorrowedMaterials: []BorrowedMaterial{}}
	st, err := s.repo.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return out, nil
	case err != nil:
		return CheckPhoneResponse{}, err
	}
	out.Student = st
	borrowed, err := s.repo.Borrowed(ctx, phone)
	if err != nil {
		return CheckPhoneResponse{}, err
	}
	out.BorrowedMaterials = borrowed
	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return api.ErrNotFound("Student not found")
	}
	return err
}
