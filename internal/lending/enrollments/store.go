package enrollments

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"hcsc-backend/internal/directory/students"
	"hcsc-backend/internal/directory/users"
	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/db"
)

// 同じ冪等キーが並行して使われた
var errIdempotencyTaken = errors.New("idempotency key already stored")

// Store: 貸出・返却で使う永続化操作。Tx の中では同じ Store を使い回す
type Store interface {
	Tx(ctx context.Context, fn func(s Store) error) error

	StudentByPhone(ctx context.Context, phone string) (*students.Student, error)
	InsertStudent(ctx context.Context, st *students.Student) error
	PatchStudent(ctx context.Context, phone string, p students.Patch, now time.Time) error
	StaffActive(ctx context.Context, id string) (bool, error)

	LockMaterials(ctx context.Context, ids []string) ([]materials.Material, error)
	DecrementStock(ctx context.Context, materialID string) (bool, error)
	IncrementStock(ctx context.Context, materialID string) (bool, error)

	InsertEnrollment(ctx context.Context, e *Enrollment) error
	InsertRecord(ctx context.Context, r *Record) error
	CountEnrollmentsByPhone(ctx context.Context, phone string) (int, error)
	// FindOutstandingRecord: 古い順に1件（FOR UPDATE）。無ければ sql.ErrNoRows
	FindOutstandingRecord(ctx context.Context, phone, materialID string) (*Record, error)
	MarkReturned(ctx context.Context, recordID string, day time.Time) (bool, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	RecordIDs(ctx context.Context, enrollmentID string) ([]string, error)

	// GetIdempotency: 無ければ nil, nil
	GetIdempotency(ctx context.Context, key string) (*IdemEntry, error)
	PutIdempotency(ctx context.Context, e IdemEntry, now time.Time) error

	GetEnrollment(ctx context.Context, id string) (*Enrollment, error)
	ListEnrollments(ctx context.Context, f Filter, p api.Page) ([]Enrollment, int64, error)
	PatchEnrollment(ctx context.Context, id string, p enrollmentPatch) error
	EnrollmentDetail(ctx context.Context, id string) (*EnrollmentDetail, error)

	InsertImage(ctx context.Context, img *Image) error
	ListImages(ctx context.Context, enrollmentID string) ([]Image, error)
}

const (
	enrollmentCols = `id, student_phone, sales_staff_id, issued_date, due_date, notes, erp_updated, created_at`
	recordCols     = `id, enrollment_id, material_id, status, return_date, created_at`
)

type SQLStore struct {
	conn *sql.DB
	q    db.DBTX
	sb   sq.StatementBuilderType
}

func NewStore(conn *sql.DB) *SQLStore {
	return &SQLStore{conn: conn, q: conn, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

func (s *SQLStore) Tx(ctx context.Context, fn func(s Store) error) error {
	if s.conn == nil {
		return fn(s)
	}
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(&SQLStore{q: tx, sb: s.sb})
	})
}

// ===== students / users / materials（各パッケージの Tx 関数に委譲） =====

func (s *SQLStore) StudentByPhone(ctx context.Context, phone string) (*students.Student, error) {
	return students.GetByPhoneTx(ctx, s.q, phone, true)
}

func (s *SQLStore) InsertStudent(ctx context.Context, st *students.Student) error {
	return students.InsertTx(ctx, s.q, st)
}

func (s *SQLStore) PatchStudent(ctx context.Context, phone string, p students.Patch, now time.Time) error {
	return students.PatchTx(ctx, s.q, "phone", phone, p, now)
}

func (s *SQLStore) StaffActive(ctx context.Context, id string) (bool, error) {
	return users.ActiveStaffExistsTx(ctx, s.q, id)
}

func (s *SQLStore) LockMaterials(ctx context.Context, ids []string) ([]materials.Material, error) {
	return materials.LockByIDs(ctx, s.q, ids)
}

func (s *SQLStore) DecrementStock(ctx context.Context, materialID string) (bool, error) {
	return materials.DecrementAvailable(ctx, s.q, materialID, 1)
}

func (s *SQLStore) IncrementStock(ctx context.Context, materialID string) (bool, error) {
	return materials.IncrementAvailable(ctx, s.q, materialID, 1)
}

// ===== enrollments / records =====

func (s *SQLStore) InsertEnrollment(ctx context.Context, e *Enrollment) error {
	const q = `
	INSERT INTO enrollments (id, student_phone, sales_staff_id, issued_date, due_date, notes, erp_updated, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q, e.ID, e.StudentPhone, e.SalesStaffID, e.IssuedDate, e.DueDate,
		db.NullStr(e.Notes), e.ERPUpdated, e.CreatedAt)
	return err
}

func (s *SQLStore) InsertRecord(ctx context.Context, r *Record) error {
	const q = `
	INSERT INTO material_records (id, enrollment_id, material_id, status, return_date, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q, r.ID, r.EnrollmentID, r.MaterialID, string(r.Status), db.NullTime(r.ReturnDate), r.CreatedAt)
	return err
}

func (s *SQLStore) CountEnrollmentsByPhone(ctx context.Context, phone string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments WHERE student_phone = ?`, phone).Scan(&n)
	return n, err
}

func (s *SQLStore) FindOutstandingRecord(ctx context.Context, phone, materialID string) (*Record, error) {
	q := `
	SELECT r.id, r.enrollment_id, r.material_id, r.status, r.return_date, r.created_at
	FROM material_records r
	JOIN enrollments e ON e.id = r.enrollment_id
	WHERE e.student_phone = ? AND r.material_id = ? AND r.status IN (` + db.Placeholders(len(lending.OutstandingStatuses)) + `)
	ORDER BY e.issued_date ASC, r.created_at ASC, r.id ASC
	LIMIT 1
	FOR UPDATE`
	args := append([]any{phone, materialID}, lending.OutstandingArgs()...)
	return scanRecord(s.q.QueryRowContext(ctx, q, args...))
}

func (s *SQLStore) MarkReturned(ctx context.Context, recordID string, day time.Time) (bool, error) {
	q := `
	UPDATE material_records SET status = ?, return_date = ?
	WHERE id = ? AND status IN (` + db.Placeholders(len(lending.OutstandingStatuses)) + `)`
	args := append([]any{string(lending.StatusReturned), day, recordID}, lending.OutstandingArgs()...)
	res, err := s.q.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	return aff == 1, err
}

func (s *SQLStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	return scanRecord(s.q.QueryRowContext(ctx, `SELECT `+recordCols+` FROM material_records WHERE id = ?`, id))
}

func (s *SQLStore) RecordIDs(ctx context.Context, enrollmentID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM material_records WHERE enrollment_id = ? ORDER BY created_at, id`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ===== idempotency =====

func (s *SQLStore) GetIdempotency(ctx context.Context, key string) (*IdemEntry, error) {
	var e IdemEntry
	err := s.q.QueryRowContext(ctx, `SELECT idem_key, operation, ref_id FROM idempotency_keys WHERE idem_key = ?`, key).
		Scan(&e.Key, &e.Operation, &e.RefID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLStore) PutIdempotency(ctx context.Context, e IdemEntry, now time.Time) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO idempotency_keys (idem_key, operation, ref_id, created_at) VALUES (?, ?, ?, ?)`,
		e.Key, e.Operation, e.RefID, now)
	if api.IsDuplicate(err) {
		return errIdempotencyTaken
	}
	return err
}

// ===== 参照・更新 =====

func (s *SQLStore) GetEnrollment(ctx context.Context, id string) (*Enrollment, error) {
	return scanEnrollment(s.q.QueryRowContext(ctx, `SELECT `+enrollmentCols+` FROM enrollments WHERE id = ?`, id))
}

func (s *SQLStore) ListEnrollments(ctx context.Context, f Filter, p api.Page) ([]Enrollment, int64, error) {
	where := sq.And{}
	if f.Phone != "" {
		where = append(where, sq.Eq{"student_phone": f.Phone})
	}
	if f.SalesStaffID != "" {
		where = append(where, sq.Eq{"sales_staff_id": f.SalesStaffID})
	}
	if f.From != nil {
		where = append(where, sq.GtOrEq{"issued_date": *f.From})
	}
	if f.To != nil {
		where = append(where, sq.LtOrEq{"issued_date": *f.To})
	}
	if f.ERPUpdated != nil {
		where = append(where, sq.Eq{"erp_updated": *f.ERPUpdated})
	}

	countSQL, countArgs, err := s.sb.Select("COUNT(*)").From("enrollments").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := s.sb.Select(enrollmentCols).From("enrollments").Where(where).
		OrderBy("issued_date DESC", "created_at DESC", "id DESC").
		Limit(uint64(p.Limit)).Offset(uint64(p.Offset)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) PatchEnrollment(ctx context.Context, id string, p enrollmentPatch) error {
	sets := []string{}
	args := []any{}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, db.NullStr(p.Notes))
	}
	if p.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *p.DueDate)
	}
	if p.ERPUpdated != nil {
		sets = append(sets, "erp_updated = ?")
		args = append(args, *p.ERPUpdated)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := s.q.ExecContext(ctx, `UPDATE enrollments SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func (s *SQLStore) EnrollmentDetail(ctx context.Context, id string) (*EnrollmentDetail, error) {
	const q = `
	SELECT e.id, e.student_phone, e.sales_staff_id, e.issued_date, e.due_date, e.notes, e.erp_updated, e.created_at,
	       st.name, u.full_name
	FROM enrollments e
	LEFT JOIN students st ON st.phone = e.student_phone
	LEFT JOIN users u     ON u.id = e.sales_staff_id
	WHERE e.id = ?`
	var (
		d              EnrollmentDetail
		notes          sql.NullString
		student, staff sql.NullString
	)
	err := s.q.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.StudentPhone, &d.SalesStaffID, &d.IssuedDate, &d.DueDate,
		&notes, &d.ERPUpdated, &d.CreatedAt, &student, &staff)
	if err != nil {
		return nil, err
	}
	d.Notes, d.StudentName, d.SalesStaffName = db.StrPtr(notes), db.StrPtr(student), db.StrPtr(staff)

	const rq = `
	SELECT r.id, r.enrollment_id, r.material_id, r.status, r.return_date, r.created_at, m.title, m.type
	FROM material_records r
	JOIN materials m ON m.id = r.material_id
	WHERE r.enrollment_id = ?
	ORDER BY r.created_at, r.id`
	rows, err := s.q.QueryContext(ctx, rq, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	d.Records = []RecordView{}
	for rows.Next() {
		var (
			v      RecordView
			status string
			ret    sql.NullTime
		)
		if err := rows.Scan(&v.ID, &v.EnrollmentID, &v.MaterialID, &status, &ret, &v.CreatedAt, &v.Title, &v.Type); err != nil {
			return nil, err
		}
		v.Status, v.ReturnDate = lending.Status(status), db.TimePtr(ret)
		d.Records = append(d.Records, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	imgs, err := s.ListImages(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Images = imgs
	return &d, nil
}

// ===== images =====

func (s *SQLStore) InsertImage(ctx context.Context, img *Image) error {
	const q = `
	INSERT INTO enrollment_images (id, enrollment_id, storage_path, file_name, file_size, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q, img.ID, img.EnrollmentID, img.StoragePath, img.FileName, img.FileSize, img.CreatedAt)
	return err
}

func (s *SQLStore) ListImages(ctx context.Context, enrollmentID string) ([]Image, error) {
	const q = `
	SELECT id, enrollment_id, storage_path, file_name, file_size, created_at
	FROM enrollment_images WHERE enrollment_id = ? ORDER BY created_at, id`
	rows, err := s.q.QueryContext(ctx, q, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.EnrollmentID, &img.StoragePath, &img.FileName, &img.FileSize, &img.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// ===== scan =====

type scanner interface{ Scan(dest ...any) error }

func scanEnrollment(r scanner) (*Enrollment, error) {
	var (
		e     Enrollment
		notes sql.NullString
	)
	if err := r.Scan(&e.ID, &e.StudentPhone, &e.SalesStaffID, &e.IssuedDate, &e.DueDate, &notes, &e.ERPUpdated, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Notes = db.StrPtr(notes)
	return &e, nil
}

func scanRecord(r scanner) (*Record, error) {
	var (
		rec    Record
		status string
		ret    sql.NullTime
	)
	if err := r.Scan(&rec.ID, &rec.EnrollmentID, &rec.MaterialID, &status, &ret, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Status, rec.ReturnDate = lending.Status(status), db.TimePtr(ret)
	return &rec, nil
}
