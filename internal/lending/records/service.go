package records

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
	"hcsc-backend/internal/platform/ids"
	"hcsc-backend/internal/platform/logger"
	"hcsc-backend/internal/platform/metrics"
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

func (s *Service) List(ctx context.Context, f Filter, p api.Page) (api.ListResult[Row], error) {
	if f.Status != "" && !f.Status.Valid() {
		return api.ListResult[Row]{}, api.ErrInvalid("status must be one of borrowed, returned, lost, damaged, overdue")
	}
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return api.ListResult[Row]{}, err
	}
	return api.NewList(items, total, p), nil
}

// Create: 既存 enrollment に教材を1点追加して在庫を1減らす
func (s *Service) Create(ctx context.Context, in CreateRecordRequest) (Record, error) {
	enrID, mid := strings.TrimSpace(in.EnrollmentID), strings.TrimSpace(in.MaterialID)
	if enrID == "" || mid == "" {
		return Record{}, api.ErrInvalid("enrollment_id and material_id are required")
	}
	var rec Record
	err := s.repo.Tx(ctx, func(r Repository) error {
		ok, err := r.EnrollmentExists(ctx, enrID)
		if err != nil {
			return err
		}
		if !ok {
			return api.ErrNotFound("Enrollment not found")
		}
		m, err := r.LockMaterial(ctx, mid)
		if errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound("Material not found")
		}
		if err != nil {
			return err
		}
		if m.QuantityAvailable <= 0 {
			return api.ErrUnavailable("Materials not available: " + m.Title)
		}

		id, err := s.id.New()
		if err != nil {
			return err
		}
		rec = Record{ID: id, EnrollmentID: enrID, MaterialID: mid, Status: lending.StatusBorrowed, CreatedAt: s.clock.Now().UTC()}
		if err := r.Insert(ctx, &rec); err != nil {
			return api.FromMySQL(err, "material record already exists")
		}
		ok, err = r.DecrementStock(ctx, mid)
		if err != nil {
			return err
		}
		if !ok {
			return api.ErrUnavailable("Materials not available: " + m.Title)
		}
		return nil
	})
	metrics.Op("record_add", err)
	if err != nil {
		return Record{}, err
	}
	metrics.ItemsMoved.WithLabelValues("out").Inc()
	return rec, nil
}

// Update: 状態変更。未返却 → returned なら在庫を戻す
func (s *Service) Update(ctx context.Context, id string, in UpdateRecordRequest) (Record, error) {
	if !in.Status.Settable() {
		return Record{}, api.ErrInvalid("status must be one of returned, lost, damaged, overdue")
	}
	var retDate *time.Time
	if in.ReturnDate != nil && strings.TrimSpace(*in.ReturnDate) != "" {
		d, err := time.Parse(clock.DateLayout, strings.TrimSpace(*in.ReturnDate))
		if err != nil {
			return Record{}, api.ErrInvalid("return_date must be YYYY-MM-DD")
		}
		retDate = &d
	}

	var (
		out      Record
		restored bool
	)
	err := s.repo.Tx(ctx, func(r Repository) error {
		cur, err := r.Get(ctx, id, true)
		if errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound("Material record not found")
		}
		if err != nil {
			return err
		}

		switch {
		case in.Status.Outstanding():
			retDate = nil
		case in.Status == lending.StatusReturned && retDate == nil:
			today := clock.Today(s.clock)
			retDate = &today
		}
		if retDate != nil && retDate.Before(cur.CreatedAt.Truncate(24*time.Hour)) {
			return api.ErrInvalid("return_date cannot be before the record was created")
		}

		if lending.RestoresStock(cur.Status, in.Status) {
			ok, err := r.IncrementStock(ctx, cur.MaterialID)
			if err != nil {
				return err
			}
			restored = ok
			if !ok {
				logger.Warn().Str("record_id", id).Str("material_id", cur.MaterialID).Msg("stock already at total, not incremented")
			}
		}
		if lending.TakesStock(cur.Status, in.Status) {
			ok, err := r.DecrementStock(ctx, cur.MaterialID)
			if err != nil {
				return err
			}
			if !ok {
				return api.ErrUnavailable("no stock left to move this record back to " + string(in.Status))
			}
		}

		if err := r.SetStatus(ctx, id, in.Status, retDate); err != nil {
			return err
		}
		out = *cur
		out.Status, out.ReturnDate = in.Status, retDate
		return nil
	})
	metrics.Op("record_update", err)
	if err != nil {
		return Record{}, err
	}
	if restored {
		metrics.ItemsMoved.WithLabelValues("in").Inc()
	}
	return out, nil
}

// SweepOverdue: 期限切れの borrowed を overdue に昇格。件数を返す
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, clock.Today(s.clock))
	if err != nil {
		return 0, err
	}
	metrics.OverdueMarked.Add(float64(n))
	return n, nil
}
