package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"hcsc-backend/internal/platform/db"
)

// Directory: ログイン成功後に users テーブルから表示名とロールを引く
type Directory interface {
	ByEmail(ctx context.Context, email string) (*Identity, bool, error)
}

type UserDirectory struct{ q db.DBTX }

func NewUserDirectory(q db.DBTX) *UserDirectory {
	return &UserDirectory{q: q}
}

// ByEmail: 見つからなければ nil。2つ目は is_active
func (d *UserDirectory) ByEmail(ctx context.Context, email string) (*Identity, bool, error) {
	const q = `
SELECT id, email, full_name, role, is_active
FROM users
WHERE email = ?
LIMIT 1
`
	var (
		id     Identity
		active bool
	)
	err := d.q.QueryRowContext(ctx, q, strings.TrimSpace(email)).Scan(&id.ID, &id.Email, &id.FullName, &id.Role, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &id, active, nil
}
