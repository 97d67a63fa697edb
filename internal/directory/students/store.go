package students

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/db"
	"hcsc-backend/internal/platform/textnorm"
)

type Repository interface {
	List(ctx context.Context, f Filter, p api.Page) ([]Student, int64, error)
	Get(ctx context.Context, id string) (*Student, error)
	GetByPhone(ctx context.Context, phone string) (*Student, error)
	Insert(ctx context.Context, st *Student) error
	Update(ctx context.Context, id string, p Patch, now time.Time) error
	Borrowed(ctx context.Context, phone string) ([]BorrowedMaterial, error)
	Records(ctx context.Context, phone string) ([]RecordSummary, error)
}

const studentCols = `id, name, email, phone, level, student_type, notes, created_at, updated_at`

type Store struct {
	q  db.DBTX
	sb sq.StatementBuilderType
}

func NewStore(q db.DBTX) *Store {
	return &Store{q: q, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

func (s *Store) List(ctx context.Context, f Filter, p api.Page) ([]Student, int64, error) {
	where := sq.And{}
	if f.Level != "" {
		where = append(where, sq.Eq{"level": f.Level})
	}
	if f.StudentType != "" {
		where = append(where, sq.Eq{"student_type": f.StudentType})
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		or := sq.Or{sq.Like{"phone": "%" + api.NormalizePhone(search) + "%"}}
		for _, w := range strings.Fields(textnorm.Fold(search)) {
			or = append(or, sq.Like{"search_key": "%" + w + "%"})
		}
		where = append(where, or)
	}

	countSQL, countArgs, err := s.sb.Select("COUNT(*)").From("students").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := s.sb.Select(studentCols).From("students").Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(p.Limit)).Offset(uint64(p.Offset)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *st)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*Student, error) {
	return scanStudent(s.q.QueryRowContext(ctx, `SELECT `+studentCols+` FROM students WHERE id = ?`, id))
}

func (s *Store) GetByPhone(ctx context.Context, phone string) (*Student, error) {
	return GetByPhoneTx(ctx, s.q, phone, false)
}

func (s *Store) Insert(ctx context.Context, st *Student) error {
	return InsertTx(ctx, s.q, st)
}

func (s *Store) Update(ctx context.Context, id string, p Patch, now time.Time) error {
	return PatchTx(ctx, s.q, "id", id, p, now)
}

func (s *Store) Borrowed(ctx context.Context, phone string) ([]BorrowedMaterial, error) {
	q := `
	SELECT r.id, r.enrollment_id, r.material_id, m.title, m.type, r.status, e.issued_date, e.due_date
	FROM material_records r
	JOIN enrollments e ON e.id = r.enrollment_id
	JOIN materials m   ON m.id = r.material_id
	WHERE e.student_phone = ? AND r.status IN (` + db.Placeholders(len(lending.OutstandingStatuses)) + `)
	ORDER BY e.issued_date ASC, r.created_at ASC, r.id ASC`
	args := append([]any{phone}, lending.OutstandingArgs()...)
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BorrowedMaterial{}
	for rows.Next() {
		var b BorrowedMaterial
		if err := rows.Scan(&b.RecordID, &b.EnrollmentID, &b.MaterialID, &b.Title, &b.Type, &b.Status, &b.IssuedDate, &b.DueDate); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) Records(ctx context.Context, phone string) ([]RecordSummary, error) {
	const q = `
	SELECT r.id, r.enrollment_id, r.material_id, m.title, r.status, e.issued_date, e.due_date, r.return_date, r.created_at
	FROM material_records r
	JOIN enrollments e ON e.id = r.enrollment_id
	JOIN materials m   ON m.id = r.material_id
	WHERE e.student_phone = ?
	ORDER BY r.created_at DESC, r.id DESC`
	rows, err := s.q.QueryContext(ctx, q, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RecordSummary{}
	for rows.Next() {
		var (
			r   RecordSummary
			ret sql.NullTime
		)
		if err := rows.Scan(&r.RecordID, &r.EnrollmentID, &r.MaterialID, &r.Title, &r.Status, &r.IssuedDate, &r.DueDate, &ret, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ReturnDate = db.TimePtr(ret)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ===== Tx 内から使う関数（貸出フローと共有） =====

// GetByPhoneTx: 無ければ sql.ErrNoRows
func GetByPhoneTx(ctx context.Context, q db.DBTX, phone string, forUpdate bool) (*Student, error) {
	query := `SELECT ` + studentCols + ` FROM students WHERE phone = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanStudent(q.QueryRowContext(ctx, query, phone))
}

func InsertTx(ctx context.Context, q db.DBTX, st *Student) error {
	const stmt = `
	INSERT INTO students (id, name, email, phone, level, student_type, notes, search_key, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, stmt,
		st.ID, st.Name, db.NullStr(st.Email), st.Phone, db.NullStr(st.Level), st.StudentType, db.NullStr(st.Notes),
		searchKey(st.Name, st.Email), st.CreatedAt, st.UpdatedAt,
	)
	return err
}

// PatchTx: 動的 UPDATE。keyCol は "id" か "phone"
func PatchTx(ctx context.Context, q db.DBTX, keyCol, key string, p Patch, now time.Time) error {
	if keyCol != "id" && keyCol != "phone" {
		return api.ErrInternal("invalid key column")
	}
	sets := []string{}
	args := []any{}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, db.NullStr(p.Email))
	}
	if p.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *p.Phone)
	}
	if p.Level != nil {
		sets = append(sets, "level = ?")
		args = append(args, db.NullStr(p.Level))
	}
	if p.StudentType != nil {
		sets = append(sets, "student_type = ?")
		args = append(args, *p.StudentType)
	}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, db.NullStr(p.Notes))
	}
	if len(sets) == 0 {
		return nil
	}
	if p.Name != nil || p.Email != nil {
		// search_key は更新後の値から作り直す
		cur, err := scanStudent(q.QueryRowContext(ctx, `SELECT `+studentCols+` FROM students WHERE `+keyCol+` = ?`, key))
		if err != nil {
			return err
		}
		name, email := cur.Name, cur.Email
		if p.Name != nil {
			name = *p.Name
		}
		if p.Email != nil {
			email = p.Email
		}
		sets = append(sets, "search_key = ?")
		args = append(args, searchKey(name, email))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now)

	args = append(args, key)
	stmt := `UPDATE students SET ` + strings.Join(sets, ", ") + ` WHERE ` + keyCol + ` = ?`
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanStudent(r interface{ Scan(...any) error }) (*Student, error) {
	var (
		st                  Student
		email, level, notes sql.NullString
	)
	if err := r.Scan(&st.ID, &st.Name, &email, &st.Phone, &level, &st.StudentType, &notes, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Email, st.Level, st.Notes = db.StrPtr(email), db.StrPtr(level), db.StrPtr(notes)
	return &st, nil
}

func searchKey(name string, email *string) string {
	if email == nil {
		return textnorm.Key(name)
	}
	return textnorm.Key(name, *email)
}
