package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
	"hcsc-backend/internal/platform/ids"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type memRepo struct {
	records     map[string]Record
	materials   map[string]materials.Material
	enrollments map[string]time.Time // id → due_date
}

func newMemRepo() *memRepo {
	return &memRepo{
		records: map[string]Record{},
		materials: map[string]materials.Material{
			"m1": {ID: "m1", Title: "Starter 1", QuantityTotal: 5, QuantityAvailable: 4},
			"m0": {ID: "m0", Title: "Empty", QuantityTotal: 2, QuantityAvailable: 0},
		},
		enrollments: map[string]time.Time{"e1": t0.AddDate(0, 0, 30)},
	}
}

func (r *memRepo) Tx(_ context.Context, fn func(Repository) error) error {
	recs, mats := maps.Clone(r.records), maps.Clone(r.materials)
	if err := fn(r); err != nil {
		r.records, r.materials = recs, mats
		return err
	}
	return nil
}

func (r *memRepo) List(_ context.Context, f Filter, p api.Page) ([]Row, int64, error) {
	var out []Row
	for _, rec := range r.records {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		out = append(out, Row{Record: rec, Title: r.materials[rec.MaterialID].Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memRepo) Get(_ context.Context, id string, _ bool) (*Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

func (r *memRepo) Insert(_ context.Context, rec *Record) error {
	r.records[rec.ID] = *rec
	return nil
}

func (r *memRepo) SetStatus(_ context.Context, id string, st lending.Status, d *time.Time) error {
	rec := r.records[id]
	rec.Status, rec.ReturnDate = st, d
	r.records[id] = rec
	return nil
}

func (r *memRepo) EnrollmentExists(_ context.Context, id string) (bool, error) {
	_, ok := r.enrollments[id]
	return ok, nil
}

func (r *memRepo) LockMaterial(_ context.Context, id string) (*materials.Material, error) {
	m, ok := r.materials[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (r *memRepo) DecrementStock(_ context.Context, id string) (bool, error) {
	m := r.materials[id]
	if m.QuantityAvailable < 1 {
		return false, nil
	}
	m.QuantityAvailable--
	r.materials[id] = m
	return true, nil
}

func (r *memRepo) IncrementStock(_ context.Context, id string) (bool, error) {
	m := r.materials[id]
	if m.QuantityAvailable+1 > m.QuantityTotal {
		return false, nil
	}
	m.QuantityAvailable++
	r.materials[id] = m
	return true, nil
}

func (r *memRepo) MarkOverdue(_ context.Context, today time.Time) (int64, error) {
	var n int64
	for id, rec := range r.records {
		if rec.Status == lending.StatusBorrowed && r.enrollments[rec.EnrollmentID].Before(today) {
			rec.Status = lending.StatusOverdue
			r.records[id] = rec
			n++
		}
	}
	return n, nil
}

func newSvc() (*Service, *memRepo, *clock.Fixed) {
	repo := newMemRepo()
	c := clock.NewFixed(t0)
	return NewServiceWith(repo, c, &ids.Seq{Prefix: "r"}), repo, c
}

func codeOf(err error) api.Code {
	var ae *api.APIError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func ptr[T any](v T) *T { return &v }

func TestCreate_DecrementsStock(t *testing.T) {
	svc, repo, _ := newSvc()
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, lending.StatusBorrowed, rec.Status)
	assert.Equal(t, 3, repo.materials["m1"].QuantityAvailable)

	_, err = svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m0"})
	assert.Equal(t, api.CodeUnavailable, codeOf(err))
	_, err = svc.Create(ctx, CreateRecordRequest{EnrollmentID: "nope", MaterialID: "m1"})
	assert.Equal(t, api.CodeNotFound, codeOf(err))
	_, err = svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "ghost"})
	assert.Equal(t, api.CodeNotFound, codeOf(err))
	assert.Len(t, repo.records, 1)
}

func TestUpdate_ReturnRestoresStockOnce(t *testing.T) {
	svc, repo, _ := newSvc()
	ctx := context.Background()
	rec, err := svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusReturned})
	require.NoError(t, err)
	assert.Equal(t, lending.StatusReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.Equal(t, "2025-03-10", got.ReturnDate.Format(clock.DateLayout))
	assert.Equal(t, 4, repo.materials["m1"].QuantityAvailable)

	// returned → returned は在庫を動かさない
	_, err = svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusReturned, ReturnDate: ptr("2025-03-12")})
	require.NoError(t, err)
	assert.Equal(t, 4, repo.materials["m1"].QuantityAvailable)
}

func TestUpdate_LostKeepsStockOut(t *testing.T) {
	svc, repo, _ := newSvc()
	ctx := context.Background()
	rec, err := svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusLost})
	require.NoError(t, err)
	assert.Nil(t, got.ReturnDate)
	assert.Equal(t, 3, repo.materials["m1"].QuantityAvailable)
}

func TestUpdate_ReturnedBackToOverdueTakesStock(t *testing.T) {
	svc, repo, _ := newSvc()
	ctx := context.Background()
	rec, err := svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusReturned})
	require.NoError(t, err)

	got, err := svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusOverdue, ReturnDate: ptr("2025-03-10")})
	require.NoError(t, err)
	assert.Nil(t, got.ReturnDate)
	assert.Equal(t, 3, repo.materials["m1"].QuantityAvailable)
}

func TestUpdate_Validation(t *testing.T) {
	svc, _, _ := newSvc()
	ctx := context.Background()
	rec, err := svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusBorrowed})
	assert.Equal(t, api.CodeInvalidArgument, codeOf(err))
	_, err = svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusReturned, ReturnDate: ptr("12/03/2025")})
	assert.Equal(t, api.CodeInvalidArgument, codeOf(err))
	_, err = svc.Update(ctx, rec.ID, UpdateRecordRequest{Status: lending.StatusReturned, ReturnDate: ptr("2025-01-01")})
	assert.Equal(t, api.CodeInvalidArgument, codeOf(err))
	_, err = svc.Update(ctx, "missing", UpdateRecordRequest{Status: lending.StatusReturned})
	assert.Equal(t, api.CodeNotFound, codeOf(err))
}

func TestSweepOverdue(t *testing.T) {
	svc, repo, c := newSvc()
	ctx := context.Background()
	rec, err := svc.Create(ctx, CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)

	n, err := svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	c.Advance(31 * 24 * time.Hour)
	n, err = svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, lending.StatusOverdue, repo.records[rec.ID].Status)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	svc, repo, c := newSvc()
	rec, err := svc.Create(context.Background(), CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)
	c.Advance(40 * 24 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
		}
		cancel()
		return false
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, lending.StatusOverdue, repo.records[rec.ID].Status)
}

func TestHandler_ListAndUpdate(t *testing.T) {
	svc, _, _ := newSvc()
	rec, err := svc.Create(context.Background(), CreateRecordRequest{EnrollmentID: "e1", MaterialID: "m1"})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), svc)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/api/v1/material-records?status=borrowed", "")
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data api.ListResult[Row] `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data.Items, 1)
	assert.Equal(t, "Starter 1", env.Data.Items[0].Title)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/v1/material-records?status=gone", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/v1/material-records?date_from=03-10", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, "/api/v1/material-records/"+rec.ID, `{}`).Code)

	w = do(http.MethodPut, "/api/v1/material-records/"+rec.ID, `{"status":"damaged","return_date":"2025-03-11"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
