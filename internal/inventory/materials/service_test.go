package materials

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
	"hcsc-backend/internal/platform/ids"
	"hcsc-backend/internal/platform/textnorm"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]Material
}

func newMemRepo(ms ...Material) *memRepo {
	r := &memRepo{rows: map[string]Material{}}
	for _, m := range ms {
		r.rows[m.ID] = m
	}
	return r
}

func (r *memRepo) Tx(ctx context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	snapshot := make(map[string]Material, len(r.rows))
	for k, v := range r.rows {
		snapshot[k] = v
	}
	r.mu.Unlock()
	if err := fn(r); err != nil {
		r.mu.Lock()
		r.rows = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) List(_ context.Context, f Filter, p api.Page) ([]Material, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []Material
	for _, m := range r.rows {
		if f.Level != "" && m.Level != f.Level {
			continue
		}
		if f.Type != "" && string(m.Type) != f.Type {
			continue
		}
		if f.InStock && m.QuantityAvailable <= 0 {
			continue
		}
		author := ""
		if m.Author != nil {
			author = *m.Author
		}
		if !textnorm.Match(m.Title+" "+author, f.Search) {
			continue
		}
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if p.Offset >= len(all) {
		return nil, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[p.Offset:end], total, nil
}

func (r *memRepo) Get(_ context.Context, id string, _ bool) (*Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (r *memRepo) Insert(_ context.Context, m *Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[m.ID] = *m
	return nil
}

func (r *memRepo) Update(_ context.Context, m *Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[m.ID]; !ok {
		return sql.ErrNoRows
	}
	r.rows[m.ID] = *m
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	delete(r.rows, id)
	return ok, nil
}

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newSvc(ms ...Material) (*Service, *memRepo) {
	repo := newMemRepo(ms...)
	return NewServiceWith(repo, clock.NewFixed(t0), &ids.Seq{Prefix: "m"}), repo
}

func TestCreate_Defaults(t *testing.T) {
	svc, repo := newSvc()
	m, err := svc.Create(context.Background(), CreateMaterialRequest{Title: " Phonics 1 ", Level: "Starter"})
	require.NoError(t, err)

	assert.Equal(t, "m001", m.ID)
	assert.Equal(t, "Phonics 1", m.Title)
	assert.Equal(t, TypeBook, m.Type)
	assert.Equal(t, 1, m.QuantityTotal)
	assert.Equal(t, 1, m.QuantityAvailable)
	assert.Contains(t, repo.rows, "m001")
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newSvc()
	tests := []struct {
		name string
		in   CreateMaterialRequest
	}{
		{"missing title", CreateMaterialRequest{Level: "A1"}},
		{"missing level", CreateMaterialRequest{Title: "x"}},
		{"bad type", CreateMaterialRequest{Title: "x", Level: "A1", Type: "toy"}},
		{"negative qty", CreateMaterialRequest{Title: "x", Level: "A1", QuantityTotal: ptr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.Equal(t, 400, api.ToHTTPStatus(err))
		})
	}
}

func TestUpdate_TotalShiftsAvailable(t *testing.T) {
	svc, _ := newSvc(Material{ID: "m1", Title: "A", Level: "L", Type: TypeBook, QuantityTotal: 5, QuantityAvailable: 3})

	m, err := svc.Update(context.Background(), "m1", UpdateMaterialRequest{QuantityTotal: ptr(8)})
	require.NoError(t, err)
	assert.Equal(t, 8, m.QuantityTotal)
	assert.Equal(t, 6, m.QuantityAvailable)

	m, err = svc.Update(context.Background(), "m1", UpdateMaterialRequest{QuantityTotal: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, m.QuantityTotal)
	assert.Equal(t, 0, m.QuantityAvailable)
}

func TestUpdate_RejectsBelowLent(t *testing.T) {
	svc, repo := newSvc(Material{ID: "m1", Title: "A", Level: "L", Type: TypeBook, QuantityTotal: 5, QuantityAvailable: 3})

	_, err := svc.Update(context.Background(), "m1", UpdateMaterialRequest{QuantityTotal: ptr(1)})
	require.Error(t, err)
	assert.Equal(t, 400, api.ToHTTPStatus(err))
	assert.Contains(t, err.Error(), "2 items currently out")
	assert.Equal(t, 5, repo.rows["m1"].QuantityTotal)
}

func TestUpdate_ExplicitAvailable(t *testing.T) {
	svc, _ := newSvc(Material{ID: "m1", Title: "A", Level: "L", Type: TypeBook, QuantityTotal: 5, QuantityAvailable: 3})

	m, err := svc.Update(context.Background(), "m1", UpdateMaterialRequest{QuantityAvailable: ptr(5), Condition: ptr("good")})
	require.NoError(t, err)
	assert.Equal(t, 5, m.QuantityAvailable)
	assert.Equal(t, "good", *m.Condition)

	_, err = svc.Update(context.Background(), "m1", UpdateMaterialRequest{QuantityAvailable: ptr(6)})
	assert.Equal(t, 400, api.ToHTTPStatus(err))
}

func TestUpdate_NotFoundAndEmpty(t *testing.T) {
	svc, _ := newSvc()
	_, err := svc.Update(context.Background(), "nope", UpdateMaterialRequest{Title: ptr("x")})
	assert.Equal(t, 404, api.ToHTTPStatus(err))

	_, err = svc.Update(context.Background(), "nope", UpdateMaterialRequest{})
	assert.Equal(t, 400, api.ToHTTPStatus(err))
}

func TestList_SearchIsAccentInsensitive(t *testing.T) {
	svc, _ := newSvc(
		Material{ID: "m1", Title: "Tiếng Anh Lớp 3", Level: "3", Type: TypeBook, QuantityTotal: 1, QuantityAvailable: 1},
		Material{ID: "m2", Title: "Toán", Level: "3", Type: TypeBook, QuantityTotal: 1, QuantityAvailable: 0},
		Material{ID: "m3", Title: "Balo", Level: "3", Type: TypeGift, QuantityTotal: 4, QuantityAvailable: 4},
	)
	res, err := svc.List(context.Background(), Filter{Search: "tieng anh"}, api.Page{Limit: 50})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "m1", res.Items[0].ID)

	res, err = svc.List(context.Background(), Filter{InStock: true, Type: "book"}, api.Page{Limit: 50})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	_, err = svc.List(context.Background(), Filter{Type: "toy"}, api.Page{Limit: 50})
	assert.Equal(t, 400, api.ToHTTPStatus(err))
}

func TestDelete(t *testing.T) {
	svc, _ := newSvc(Material{ID: "m1"})
	require.NoError(t, svc.Delete(context.Background(), "m1"))
	assert.Equal(t, 404, api.ToHTTPStatus(svc.Delete(context.Background(), "m1")))
}
