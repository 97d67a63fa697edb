package materials

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/db"
	"hcsc-backend/internal/platform/textnorm"
)

type Repository interface {
	Tx(ctx context.Context, fn func(r Repository) error) error
	List(ctx context.Context, f Filter, p api.Page) ([]Material, int64, error)
	// Get: 無ければ sql.ErrNoRows
	Get(ctx context.Context, id string, forUpdate bool) (*Material, error)
	Insert(ctx context.Context, m *Material) error
	Update(ctx context.Context, m *Material) error
	Delete(ctx context.Context, id string) (bool, error)
}

const materialCols = `id, isbn, title, author, level, type, ` + "`condition`" + `, quantity_total, quantity_available, created_at, updated_at`

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
		// 既にTx内
		return fn(s)
	}
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(&Store{q: tx, sb: s.sb})
	})
}

func (s *Store) List(ctx context.Context, f Filter, p api.Page) ([]Material, int64, error) {
	where := sq.And{}
	if f.Level != "" {
		where = append(where, sq.Eq{"level": f.Level})
	}
	if f.Type != "" {
		where = append(where, sq.Eq{"type": f.Type})
	}
	if f.InStock {
		where = append(where, sq.Gt{"quantity_available": 0})
	}
	for _, w := range strings.Fields(textnorm.Fold(f.Search)) {
		where = append(where, sq.Like{"search_key": "%" + w + "%"})
	}

	countSQL, countArgs, err := s.sb.Select("COUNT(*)").From("materials").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	qb := s.sb.Select(materialCols).From("materials").Where(where).
		OrderBy("level ASC", "title ASC", "id ASC").
		Limit(uint64(p.Limit)).Offset(uint64(p.Offset))
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string, forUpdate bool) (*Material, error) {
	q := `SELECT ` + materialCols + ` FROM materials WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanMaterial(s.q.QueryRowContext(ctx, q, id))
}

func (s *Store) Insert(ctx context.Context, m *Material) error {
	const q = `
	INSERT INTO materials
	(id, isbn, title, author, level, type, ` + "`condition`" + `, quantity_total, quantity_available, search_key, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q,
		m.ID, db.NullStr(m.ISBN), m.Title, db.NullStr(m.Author), m.Level, string(m.Type), db.NullStr(m.Condition),
		m.QuantityTotal, m.QuantityAvailable, searchKey(m), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

// Update: 行全体を書き戻す（呼び出し側で FOR UPDATE 済みの前提）
func (s *Store) Update(ctx context.Context, m *Material) error {
	const q = `
	UPDATE materials SET
	  isbn = ?, title = ?, author = ?, level = ?, type = ?, ` + "`condition`" + ` = ?,
	  quantity_total = ?, quantity_available = ?, search_key = ?, updated_at = ?
	WHERE id = ?`
	res, err := s.q.ExecContext(ctx, q,
		db.NullStr(m.ISBN), m.Title, db.NullStr(m.Author), m.Level, string(m.Type), db.NullStr(m.Condition),
		m.QuantityTotal, m.QuantityAvailable, searchKey(m), m.UpdatedAt, m.ID,
	)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		// 値が同じでも MySQL は 0 を返すので存在確認だけする
		var one int
		if err := s.q.QueryRowContext(ctx, `SELECT 1 FROM materials WHERE id = ?`, m.ID).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM materials WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	return aff > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(r rowScanner) (*Material, error) {
	var (
		m                       Material
		isbn, author, condition sql.NullString
		typ                     string
	)
	if err := r.Scan(&m.ID, &isbn, &m.Title, &author, &m.Level, &typ, &condition,
		&m.QuantityTotal, &m.QuantityAvailable, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.ISBN, m.Author, m.Condition = db.StrPtr(isbn), db.StrPtr(author), db.StrPtr(condition)
	m.Type = Type(typ)
	return &m, nil
}

func searchKey(m *Material) string {
	parts := []string{m.Title}
	if m.Author != nil {
		parts = append(parts, *m.Author)
	}
	if m.ISBN != nil {
		parts = append(parts, *m.ISBN)
	}
	return textnorm.Key(parts...)
}

// LockByIDs: 指定IDをまとめて FOR UPDATE で取得（Tx内専用）
func LockByIDs(ctx context.Context, q db.DBTX, ids []string) ([]Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM materials WHERE id IN (%s) ORDER BY id FOR UPDATE`, materialCols, db.Placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
