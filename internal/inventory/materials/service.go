package materials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

func (s *Service) List(ctx context.Context, f Filter, p api.Page) (api.ListResult[Material], error) {
	if f.Type != "" && !Type(f.Type).Valid() {
		return api.ListResult[Material]{}, api.ErrInvalid("type must be one of book, gift, other")
	}
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return api.ListResult[Material]{}, err
	}
	return api.NewList(items, total, p), nil
}

func (s *Service) Get(ctx context.Context, id string) (Material, error) {
	m, err := s.repo.Get(ctx, id, false)
	if err != nil {
		return Material{}, notFound(err)
	}
	return *m, nil
}

func (s *Service) Create(ctx context.Context, in CreateMaterialRequest) (Material, error) {
	title, level := strings.TrimSpace(in.Title), strings.TrimSpace(in.Level)
	if title == "" || level == "" {
		return Material{}, api.ErrInvalid("Title and level are required")
	}
	typ := in.Type
	if typ == "" {
		typ = TypeBook
	}
	if !typ.Valid() {
		return Material{}, api.ErrInvalid("type must be one of book, gift, other")
	}
	total := 1
	if in.QuantityTotal != nil {
		total = *in.QuantityTotal
	}
	if total < 0 {
		return Material{}, api.ErrInvalid("quantity_total must be >= 0")
	}

	id, err := s.id.New()
	if err != nil {
		return Material{}, err
	}
	now := s.clock.Now().UTC()
	m := &Material{
		ID:                id,
		ISBN:              in.ISBN,
		Title:             title,
		Author:            in.Author,
		Level:             level,
		Type:              typ,
		Condition:         in.Condition,
		QuantityTotal:     total,
		QuantityAvailable: total,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return Material{}, api.FromMySQL(err, "material already exists")
	}
	return *m, nil
}

// Update: quantity_total だけが変わった場合は差分を quantity_available にも反映する
func (s *Service) Update(ctx context.Context, id string, in UpdateMaterialRequest) (Material, error) {
	if in.empty() {
		return Material{}, api.ErrInvalid("No valid fields to update")
	}
	var out Material
	err := s.repo.Tx(ctx, func(r Repository) error {
		cur, err := r.Get(ctx, id, true)
		if err != nil {
			return notFound(err)
		}
		next, err := applyUpdate(*cur, in)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now().UTC()
		if err := r.Update(ctx, &next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return Material{}, err
	}
	return out, nil
}

func applyUpdate(m Material, in UpdateMaterialRequest) (Material, error) {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return m, api.ErrInvalid("title must not be empty")
		}
		m.Title = t
	}
	if in.Level != nil {
		l := strings.TrimSpace(*in.Level)
		if l == "" {
			return m, api.ErrInvalid("level must not be empty")
		}
		m.Level = l
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return m, api.ErrInvalid("type must be one of book, gift, other")
		}
		m.Type = *in.Type
	}
	if in.ISBN != nil {
		m.ISBN = in.ISBN
	}
	if in.Author != nil {
		m.Author = in.Author
	}
	if in.Condition != nil {
		m.Condition = in.Condition
	}

	if in.QuantityTotal != nil {
		if *in.QuantityTotal < 0 {
			return m, api.ErrInvalid("quantity_total must be >= 0")
		}
		delta := *in.QuantityTotal - m.QuantityTotal
		m.QuantityTotal = *in.QuantityTotal
		if in.QuantityAvailable == nil {
			m.QuantityAvailable += delta
			if m.QuantityAvailable < 0 {
				lent := m.QuantityTotal - m.QuantityAvailable
				return m, api.ErrInvalid(fmt.Sprintf("quantity_total cannot be lower than the %d items currently out", lent))
			}
		}
	}
	if in.QuantityAvailable != nil {
		m.QuantityAvailable = *in.QuantityAvailable
	}
	if m.QuantityAvailable < 0 || m.QuantityAvailable > m.QuantityTotal {
		return m, api.ErrInvalid("quantity_available must be between 0 and quantity_total")
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return api.FromMySQL(err, "")
	}
	if !ok {
		return api.ErrNotFound("Material not found")
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return api.ErrNotFound("Material not found")
	}
	return err
}
