package records

import (
	"time"

	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/material-records", h.List)
	r.POST("/material-records", h.Create)
	r.PUT("/material-records/:id", h.Update)
}

// List godoc
// @Summary  List material records
// @Tags     material-records
// @Param    status query string false "borrowed|returned|lost|damaged|overdue"
// @Param    date_from query string false "YYYY-MM-DD"
// @Param    date_to query string false "YYYY-MM-DD (inclusive)"
// @Param    limit query int false "default 100"
// @Param    offset query int false "default 0"
// @Success  200 {object} api.Envelope
// @Router   /material-records [get]
func (h *Handler) List(c *gin.Context) {
	f := Filter{Status: lending.Status(c.Query("status"))}
	for key, dst := range map[string]**time.Time{"date_from": &f.From, "date_to": &f.To} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(clock.DateLayout, v)
		if err != nil {
			api.Fail(c, api.ErrInvalid(key+" must be YYYY-MM-DD"))
			return
		}
		*dst = &t
	}
	res, err := h.svc.List(c.Request.Context(), f, api.ParsePage(c, 100))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("enrollment_id and material_id are required"))
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Created(c, rec)
}

// PUT /material-records/:id  {status, return_date?}
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("status is required"))
		return
	}
	rec, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, rec)
}
