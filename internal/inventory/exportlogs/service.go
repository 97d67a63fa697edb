package exportlogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
	"hcsc-backend/internal/platform/events"
	"hcsc-backend/internal/platform/ids"
	"hcsc-backend/internal/platform/logger"
	"hcsc-backend/internal/platform/metrics"
)

const (
	defaultListLimit = 200
	opExport         = "export"
)

type Service struct {
	repo  Repository
	pub   events.Publisher
	clock clock.Clock
	id    ids.IDGen
}

func NewService(conn *sql.DB, pub events.Publisher) *Service {
	return NewServiceWith(NewStore(conn), pub, clock.Real{}, ids.NewULID())
}

func NewServiceWith(repo Repository, pub events.Publisher, c clock.Clock, g ids.IDGen) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{repo: repo, pub: pub, clock: c, id: g}
}

// Create: 全品目の在庫減算とログ挿入を1トランザクションで行う。1件でも足りなければ何もしない
func (s *Service) Create(ctx context.Context, in CreateRequest) ([]ExportLog, error) {
	items := in.items()
	if len(items) == 0 {
		return nil, api.ErrInvalid("items are required")
	}
	want := map[string]int{}
	var order []string
	for _, it := range items {
		it.MaterialID = strings.TrimSpace(it.MaterialID)
		if it.MaterialID == "" {
			return nil, api.ErrInvalid("material_id is required")
		}
		if it.Quantity <= 0 {
			return nil, api.ErrInvalid("quantity must be > 0")
		}
		if _, ok := want[it.MaterialID]; !ok {
			order = append(order, it.MaterialID)
		}
		want[it.MaterialID] += it.Quantity
	}

	var out []ExportLog
	err := s.repo.Tx(ctx, func(r Repository) error {
		out = out[:0]
		locked, err := r.LockMaterials(ctx, order)
		if err != nil {
			return err
		}
		titles := make(map[string]string, len(locked))
		var short []string
		for _, m := range locked {
			titles[m.ID] = m.Title
			if m.QuantityAvailable < want[m.ID] {
				short = append(short, fmt.Sprintf("%s (available %d, requested %d)", m.Title, m.QuantityAvailable, want[m.ID]))
			}
		}
		var missing []string
		for _, id := range order {
			if _, ok := titles[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return api.ErrNotFound("Materials not found: " + strings.Join(missing, ", "))
		}
		if len(short) > 0 {
			return api.ErrUnavailable("Not enough stock: " + strings.Join(short, "; "))
		}

		now := s.clock.Now().UTC()
		for _, it := range items {
			mid := strings.TrimSpace(it.MaterialID)
			ok, err := r.Decrement(ctx, mid, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return api.ErrUnavailable("Not enough stock: " + titles[mid])
			}
			id, err := s.id.New()
			if err != nil {
				return err
			}
			l := ExportLog{
				ID:            id,
				MaterialID:    mid,
				MaterialTitle: titles[mid],
				Quantity:      it.Quantity,
				Note:          in.Note,
				ExportedBy:    in.ExportedBy,
				CreatedAt:     now,
			}
			if err := r.Insert(ctx, &l); err != nil {
				return api.FromMySQL(err, "export log already exists")
			}
			out = append(out, l)
		}
		return nil
	})
	metrics.Op(opExport, err)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, l := range out {
		total += l.Quantity
	}
	metrics.ItemsMoved.WithLabelValues("export").Add(float64(total))
	if err := s.pub.Publish(ctx, events.KeyExported, map[string]any{"logs": out, "total_quantity": total}); err != nil {
		logger.Warn().Err(err).Msg("export event publish failed")
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, f Filter, limit int) ([]ExportLog, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > api.MaxLimit {
		limit = api.MaxLimit
	}
	return s.repo.List(ctx, f, limit)
}

// CSV 1回あたりの上限。超えた分は X-Truncated で知らせる
var maxCSVRows = 10000

// ForCSV: 一覧の上限 (api.MaxLimit) を使わず maxCSVRows まで返す。truncated は取りこぼしがあったか
func (s *Service) ForCSV(ctx context.Context, f Filter) (logs []ExportLog, truncated bool, err error) {
	logs, err = s.repo.List(ctx, f, maxCSVRows+1)
	if err != nil {
		return nil, false, err
	}
	if len(logs) > maxCSVRows {
		return logs[:maxCSVRows], true, nil
	}
	return logs, false, nil
}

func (s *Service) Patch(ctx context.Context, id string, in PatchRequest) (ExportLog, error) {
	var out ExportLog
	err := s.repo.Tx(ctx, func(r Repository) error {
		if _, err := r.Get(ctx, id); errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound("Export log not found")
		} else if err != nil {
			return err
		}
		if err := r.Patch(ctx, id, in); err != nil {
			return err
		}
		l, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		out = *l
		return nil
	})
	return out, err
}
