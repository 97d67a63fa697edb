package exportlogs

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/platform/db"
)

type Repository interface {
	Tx(ctx context.Context, fn func(r Repository) error) error
	LockMaterials(ctx context.Context, ids []string) ([]materials.Material, error)
	Decrement(ctx context.Context, materialID string, n int) (bool, error)
	Insert(ctx context.Context, l *ExportLog) error
	List(ctx context.Context, f Filter, limit int) ([]ExportLog, error)
	Get(ctx context.Context, id string) (*ExportLog, error)
	Patch(ctx context.Context, id string, in PatchRequest) error
}

const logCols = `id, material_id, material_title, quantity, note, exported_by, erp_updated, created_at`

type Store struct {
	conn *sql.DB
	q    db.DBTX
	sb   sq.StatementBuilderType
}

func NewStore(conn *sql.DB) *Store {
	return &Store{conn: conn, q: conn, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

func (s *Store) Tx(ctx context.Context, fn func(r Repository) error) error {
	if s.conn == nil {
		return fn(s)
	}
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(&Store{q: tx, sb: s.sb})
	})
}

func (s *Store) LockMaterials(ctx context.Context, ids []string) ([]materials.Material, error) {
	return materials.LockByIDs(ctx, s.q, ids)
}

func (s *Store) Decrement(ctx context.Context, materialID string, n int) (bool, error) {
	return materials.DecrementAvailable(ctx, s.q, materialID, n)
}

func (s *Store) Insert(ctx context.Context, l *ExportLog) error {
	const q = `
	INSERT INTO export_logs (id, material_id, material_title, quantity, note, exported_by, erp_updated, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q, l.ID, l.MaterialID, l.MaterialTitle, l.Quantity,
		db.NullStr(l.Note), db.NullStr(l.ExportedBy), l.ERPUpdated, l.CreatedAt)
	return err
}

func (s *Store) List(ctx context.Context, f Filter, limit int) ([]ExportLog, error) {
	qb := s.sb.Select(logCols).From("export_logs")
	if f.From != nil {
		qb = qb.Where(sq.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		qb = qb.Where(sq.Lt{"created_at": f.To.AddDate(0, 0, 1)})
	}
	if f.PendingERP {
		qb = qb.Where(sq.Eq{"erp_updated": false})
	}
	query, args, err := qb.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExportLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*ExportLog, error) {
	return scanLog(s.q.QueryRowContext(ctx, `SELECT `+logCols+` FROM export_logs WHERE id = ?`, id))
}

func (s *Store) Patch(ctx context.Context, id string, in PatchRequest) error {
	sets := []string{}
	args := []any{}
	if in.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, db.NullStr(in.Note))
	}
	if in.ERPUpdated != nil {
		sets = append(sets, "erp_updated = ?")
		args = append(args, *in.ERPUpdated)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := s.q.ExecContext(ctx, `UPDATE export_logs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func scanLog(r interface{ Scan(...any) error }) (*ExportLog, error) {
	var (
		l        ExportLog
		note, by sql.NullString
	)
	if err := r.Scan(&l.ID, &l.MaterialID, &l.MaterialTitle, &l.Quantity, &note, &by, &l.ERPUpdated, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Note, l.ExportedBy = db.StrPtr(note), db.StrPtr(by)
	return &l, nil
}
