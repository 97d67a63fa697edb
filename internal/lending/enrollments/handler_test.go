package enrollments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1")
	RegisterRoutes(g, g, svc)
	return r
}

func do(r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

const borrowBody = `{"type":"borrow","student_name":"An","phone":"0912345678","level":"A1","sales_staff_id":"staff-1","material_ids":["m1"]}`

func TestHandler_EnrollTypeSwitch(t *testing.T) {
	f := newFixture(book("m1", "Starter 1", 5, 5))
	r := newRouter(f.svc)

	w := do(r, http.MethodPost, "/api/v1/enrollment", `{"type":"lend","phone":"0912345678"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `Invalid type. Use "borrow" or "return"`, decode(t, w).Error)

	w = do(r, http.MethodPost, "/api/v1/enrollment", `{"phone":"0912345678"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decode(t, w).Error)

	w = do(r, http.MethodPost, "/api/v1/enrollment", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestHandler_BorrowAndReturn(t *testing.T) {
	f := newFixture(book("m1", "Starter 1", 5, 5))
	r := newRouter(f.svc)

	w := do(r, http.MethodPost, "/api/v1/enrollment", borrowBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var br BorrowResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &br))
	assert.NotEmpty(t, br.EnrollmentID)

	// 同じキーの再送は在庫を動かさない
	w = do(r, http.MethodPost, "/api/v1/enrollment", borrowBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 4, f.store.materials["m1"].QuantityAvailable)

	w = do(r, http.MethodPost, "/api/v1/enrollment", `{"type":"return","phone":"0912345678","material_ids":["m1"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rr ReturnResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rr))
	assert.Equal(t, br.MaterialRecordIDs[0], rr.MaterialRecordID)
	assert.Equal(t, 5, f.store.materials["m1"].QuantityAvailable)

	w = do(r, http.MethodPost, "/api/v1/enrollment", `{"type":"return","phone":"0912345678","material_id":"m1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_BorrowUnavailableIs400(t *testing.T) {
	f := newFixture(book("m1", "Starter 1", 5, 0))
	r := newRouter(f.svc)

	w := do(r, http.MethodPost, "/api/v1/enrollment", borrowBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error, "Starter 1")
}

func TestHandler_IdempotencyKeyTooLong(t *testing.T) {
	f := newFixture(book("m1", "Starter 1", 5, 5))
	r := newRouter(f.svc)

	w := do(r, http.MethodPost, "/api/v1/enrollment", borrowBody, "Idempotency-Key", strings.Repeat("k", 129))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 5, f.store.materials["m1"].QuantityAvailable)
}

func TestHandler_PatchWhitelist(t *testing.T) {
	f := newFixture(book("m1", "Starter 1", 5, 5))
	r := newRouter(f.svc)
	w := do(r, http.MethodPost, "/api/v1/enrollment", borrowBody)
	require.Equal(t, http.StatusCreated, w.Code)
	var br BorrowResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &br))
	path := "/api/v1/enrollments/" + br.EnrollmentID

	w = do(r, http.MethodPatch, path, `{"student_phone":"0999999999"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error, "student_phone")

	w = do(r, http.MethodPatch, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No valid fields to update", decode(t, w).Error)

	w = do(r, http.MethodPatch, path, `{"erp_updated":true,"notes":"synced"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d EnrollmentDetail
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &d))
	assert.True(t, d.ERPUpdated)
	assert.Equal(t, "synced", *d.Notes)

	w = do(r, http.MethodPatch, path, `{"notes":null}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error, "notes")

	w = do(r, http.MethodPatch, path, `{"notes":""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d = EnrollmentDetail{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &d))
	assert.Nil(t, d.Notes)

	w = do(r, http.MethodGet, "/api/v1/enrollments?erp_updated=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), br.EnrollmentID)

	w = do(r, http.MethodGet, "/api/v1/enrollments?date_from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Images(t *testing.T) {
	f := newFixture(book("m1", "Starter 1", 5, 5))
	r := newRouter(f.svc)
	w := do(r, http.MethodPost, "/api/v1/enrollment", borrowBody)
	require.Equal(t, http.StatusCreated, w.Code)
	var br BorrowResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &br))

	body := `[{"enrollment_id":"` + br.EnrollmentID + `","storage_path":"` + br.EnrollmentID + `/x.jpg","file_name":"x.jpg","file_size":10}]`
	w = do(r, http.MethodPost, "/api/v1/enrollment-images", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/enrollment-images", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/enrollment-images?enrollment_id="+br.EnrollmentID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var imgs []Image
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &imgs))
	require.Len(t, imgs, 1)
	assert.Equal(t, "x.jpg", imgs[0].FileName)
}
