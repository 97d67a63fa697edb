package records

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/db"
)

type Repository interface {
	Tx(ctx context.Context, fn func(r Repository) error) error
	List(ctx context.Context, f Filter, p api.Page) ([]Row, int64, error)
	Get(ctx context.Context, id string, forUpdate bool) (*Record, error)
	Insert(ctx context.Context, r *Record) error
	SetStatus(ctx context.Context, id string, st lending.Status, returnDate *time.Time) error
	EnrollmentExists(ctx context.Context, id string) (bool, error)
	// LockMaterial: 無ければ sql.ErrNoRows
	LockMaterial(ctx context.Context, id string) (*materials.Material, error)
	DecrementStock(ctx context.Context, materialID string) (bool, error)
	IncrementStock(ctx context.Context, materialID string) (bool, error)
	// MarkOverdue: due_date < today の borrowed を overdue にする
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
}

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

func (s *Store) List(ctx context.Context, f Filter, p api.Page) ([]Row, int64, error) {
	where := sq.And{}
	if f.Status != "" {
		where = append(where, sq.Eq{"r.status": string(f.Status)})
	}
	if f.From != nil {
		where = append(where, sq.GtOrEq{"r.created_at": *f.From})
	}
	if f.To != nil {
		// date_to はその日を含む
		where = append(where, sq.Lt{"r.created_at": f.To.AddDate(0, 0, 1)})
	}

	countSQL, countArgs, err := s.sb.Select("COUNT(*)").From("material_records r").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := s.sb.
		Select("r.id", "r.enrollment_id", "r.material_id", "r.status", "r.return_date", "r.created_at",
			"m.title", "e.student_phone", "st.name", "e.issued_date", "e.due_date").
		From("material_records r").
		Join("enrollments e ON e.id = r.enrollment_id").
		Join("materials m ON m.id = r.material_id").
		LeftJoin("students st ON st.phone = e.student_phone").
		Where(where).
		OrderBy("r.created_at DESC", "r.id DESC").
		Limit(uint64(p.Limit)).Offset(uint64(p.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r      Row
			status string
			ret    sql.NullTime
			name   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.EnrollmentID, &r.MaterialID, &status, &ret, &r.CreatedAt,
			&r.Title, &r.StudentPhone, &name, &r.IssuedDate, &r.DueDate); err != nil {
			return nil, 0, err
		}
		r.Status, r.ReturnDate, r.StudentName = lending.Status(status), db.TimePtr(ret), db.StrPtr(name)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string, forUpdate bool) (*Record, error) {
	q := `SELECT id, enrollment_id, material_id, status, return_date, created_at FROM material_records WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var (
		r      Record
		status string
		ret    sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, q, id).Scan(&r.ID, &r.EnrollmentID, &r.MaterialID, &status, &ret, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status, r.ReturnDate = lending.Status(status), db.TimePtr(ret)
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, r *Record) error {
	const q = `
	INSERT INTO material_records (id, enrollment_id, material_id, status, return_date, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q, r.ID, r.EnrollmentID, r.MaterialID, string(r.Status), db.NullTime(r.ReturnDate), r.CreatedAt)
	return err
}

func (s *Store) SetStatus(ctx context.Context, id string, st lending.Status, returnDate *time.Time) error {
	_, err := s.q.ExecContext(ctx, `UPDATE material_records SET status = ?, return_date = ? WHERE id = ?`,
		string(st), db.NullTime(returnDate), id)
	return err
}

func (s *Store) EnrollmentExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM enrollments WHERE id = ? FOR UPDATE`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) LockMaterial(ctx context.Context, id string) (*materials.Material, error) {
	ms, err := materials.LockByIDs(ctx, s.q, []string{id})
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, sql.ErrNoRows
	}
	return &ms[0], nil
}

func (s *Store) DecrementStock(ctx context.Context, materialID string) (bool, error) {
	return materials.DecrementAvailable(ctx, s.q, materialID, 1)
}

func (s *Store) IncrementStock(ctx context.Context, materialID string) (bool, error) {
	return materials.IncrementAvailable(ctx, s.q, materialID, 1)
}

func (s *Store) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	const q = `
	UPDATE material_records r
	JOIN enrollments e ON e.id = r.enrollment_id
	SET r.status = ?
	WHERE r.status = ? AND e.due_date < ?`
	res, err := s.q.ExecContext(ctx, q, string(lending.StatusOverdue), string(lending.StatusBorrowed), today)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
