package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, f Filter, activeOnly bool, p api.Page) ([]User, int64, error)
	Get(ctx context.Context, id string) (*User, error)
	Insert(ctx context.Context, u *User) error
	Update(ctx context.Context, id string, in UpdateUserRequest) (bool, error)
}

const userCols = `id, full_name, email, role, is_active, created_at`

type Store struct {
	q  db.DBTX
	sb sq.StatementBuilderType
}

func NewStore(q db.DBTX) *Store {
	return &Store{q: q, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

func (s *Store) List(ctx context.Context, f Filter, activeOnly bool, p api.Page) ([]User, int64, error) {
	where := sq.And{}
	switch f.Role {
	case "":
		where = append(where, sq.Eq{"role": string(RoleSales)})
	case "all":
	default:
		where = append(where, sq.Eq{"role": f.Role})
	}
	if activeOnly {
		where = append(where, sq.Eq{"is_active": true})
	}
	if v := strings.TrimSpace(f.Search); v != "" {
		where = append(where, sq.Or{sq.Like{"full_name": "%" + v + "%"}, sq.Like{"email": "%" + v + "%"}})
	}

	countSQL, countArgs, err := s.sb.Select("COUNT(*)").From("users").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := s.sb.Select(userCols).From("users").Where(where).
		OrderBy("full_name ASC", "id ASC").
		Limit(uint64(p.Limit)).Offset(uint64(p.Offset)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]User, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	return scanUser(s.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
}

func (s *Store) Insert(ctx context.Context, u *User) error {
	const q = `INSERT INTO users (id, full_name, email, role, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q, u.ID, u.FullName, u.Email, string(u.Role), u.IsActive, u.CreatedAt)
	return err
}

func (s *Store) Update(ctx context.Context, id string, in UpdateUserRequest) (bool, error) {
	sets := []string{}
	args := []any{}
	if in.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, strings.TrimSpace(*in.FullName))
	}
	if in.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, strings.TrimSpace(*in.Email))
	}
	if in.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*in.Role))
	}
	if in.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *in.IsActive)
	}
	if len(sets) == 0 {
		return true, nil
	}
	args = append(args, id)
	res, err := s.q.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		// 同値更新でも 0 になるので存在確認
		if _, err := s.Get(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// ActiveStaffExistsTx: 貸出時の担当者チェック
func ActiveStaffExistsTx(ctx context.Context, q db.DBTX, id string) (bool, error) {
	const query = `SELECT COUNT(*) FROM users WHERE id = ? AND is_active = TRUE`
	var n int
	if err := q.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanUser(r interface{ Scan(...any) error }) (*User, error) {
	var (
		u    User
		role string
	)
	if err := r.Scan(&u.ID, &u.FullName, &u.Email, &role, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}
