package dashboard

import (
	"context"
	"database/sql"

	"hcsc-backend/internal/platform/db"
)

type Repository interface {
	Snapshot(ctx context.Context, recent int) (Stats, error)
}

type Store struct{ conn *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

// Snapshot: 集計と最近の貸出を同じ読み取り Tx で取る
func (s *Store) Snapshot(ctx context.Context, recent int) (Stats, error) {
	var st Stats
	err := db.ReadOnly(ctx, s.conn, func(ctx context.Context, tx db.DBTX) error {
		const q = `
			SELECT
				(SELECT COUNT(*) FROM materials),
				(SELECT COALESCE(SUM(quantity_total), 0) FROM materials),
				(SELECT COALESCE(SUM(quantity_available), 0) FROM materials),
				(SELECT COUNT(*) FROM material_records WHERE status = 'borrowed'),
				(SELECT COUNT(*) FROM material_records WHERE status = 'overdue'),
				(SELECT COUNT(*) FROM students)`
		if err := tx.QueryRowContext(ctx, q).Scan(
			&st.Titles, &st.UnitsTotal, &st.UnitsAvailable, &st.Borrowed, &st.Overdue, &st.Students,
		); err != nil {
			return err
		}

		const qr = `
			SELECT r.id, r.status, r.created_at, m.title, e.student_phone, COALESCE(s.name, '')
			  FROM material_records r
			  JOIN materials m   ON m.id = r.material_id
			  JOIN enrollments e ON e.id = r.enrollment_id
			  LEFT JOIN students s ON s.phone = e.student_phone
			 ORDER BY r.created_at DESC, r.id DESC
			 LIMIT ?`
		rows, err := tx.QueryContext(ctx, qr, recent)
		if err != nil {
			return err
		}
		defer rows.Close()
		st.Recent = make([]RecentRecord, 0, recent)
		for rows.Next() {
			var r RecentRecord
			if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &r.Title, &r.StudentPhone, &r.StudentName); err != nil {
				return err
			}
			st.Recent = append(st.Recent, r)
		}
		return rows.Err()
	})
	return st, err
}
