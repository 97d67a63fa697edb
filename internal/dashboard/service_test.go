package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	st     Stats
	err    error
	recent int
}

func (f *fakeRepo) Snapshot(_ context.Context, recent int) (Stats, error) {
	f.recent = recent
	return f.st, f.err
}

func TestStats_Defaults(t *testing.T) {
	f := &fakeRepo{st: Stats{Titles: 3, Borrowed: 2, Overdue: 1}}
	st, err := NewServiceWith(f).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, f.recent)
	assert.NotNil(t, st.Recent)
	assert.Equal(t, int64(3), st.OnLoan())
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := &fakeRepo{st: Stats{UnitsTotal: 10, UnitsAvailable: 7, Borrowed: 2, Overdue: 1, Students: 4,
		Recent: []RecentRecord{{ID: "r1", Status: "borrowed", Title: "Grammar 1"}}}}
	r := gin.New()
	RegisterRoutes(r, NewServiceWith(f))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.EqualValues(t, 3, env.Data["on_loan"])
	assert.EqualValues(t, 7, env.Data["units_available"])
	assert.Len(t, env.Data["recent_records"], 1)

	f.err = errors.New("db down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
