package materials

import (
	"context"

	"hcsc-backend/internal/platform/db"
)

// 在庫の増減はここの条件付き UPDATE だけで行う。

// DecrementAvailable: quantity_available >= n のときだけ n 減らす。ガードに掛かれば false。
func DecrementAvailable(ctx context.Context, q db.DBTX, id string, n int) (bool, error) {
	const stmt = `
	UPDATE materials
	SET quantity_available = quantity_available - ?
	WHERE id = ? AND quantity_available >= ?`
	res, err := q.ExecContext(ctx, stmt, n, id, n)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	return aff == 1, err
}

// IncrementAvailable: quantity_available + n <= quantity_total のときだけ n 増やす
func IncrementAvailable(ctx context.Context, q db.DBTX, id string, n int) (bool, error) {
	const stmt = `
	UPDATE materials
	SET quantity_available = quantity_available + ?
	WHERE id = ? AND quantity_available + ? <= quantity_total`
	res, err := q.ExecContext(ctx, stmt, n, id, n)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	return aff == 1, err
}
