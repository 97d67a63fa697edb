package exportlogs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/auth"
	"hcsc-backend/internal/platform/clock"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/export-logs", h.List)
	r.POST("/export-logs", h.Create)
	r.PATCH("/export-logs/:id", h.Patch)
	r.GET("/export-logs/export.csv", h.ExportCSV)
}

func parseFilter(c *gin.Context) (Filter, error) {
	f := Filter{PendingERP: c.Query("pending_erp") == "true" || c.Query("pending_erp") == "1"}
	for key, dst := range map[string]**time.Time{"date_from": &f.From, "date_to": &f.To} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(clock.DateLayout, v)
		if err != nil {
			return Filter{}, api.ErrInvalid(key + " must be YYYY-MM-DD")
		}
		*dst = &t
	}
	return f, nil
}

func (h *Handler) List(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		api.Fail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	logs, err := h.svc.List(c.Request.Context(), f, limit)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, logs)
}

// ExportCSV: ERP 取り込み用。?pending_erp=true で未反映分だけ
func (h *Handler) ExportCSV(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		api.Fail(c, err)
		return
	}
	logs, truncated, err := h.svc.ForCSV(c.Request.Context(), f)
	if err != nil {
		api.Fail(c, err)
		return
	}
	if truncated {
		c.Header("X-Truncated", "true")
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="export-logs.csv"`)
	c.Status(http.StatusOK)
	if err := WriteCSV(c.Writer, logs); err != nil {
		_ = c.Error(err)
	}
}

// Create godoc
// @Summary  Export stock for a class
// @Description Decrements every item atomically; one log row per item.
// @Tags     export-logs
// @Accept   json
// @Param    body body CreateRequest true "items or a single material"
// @Success  201 {object} api.Envelope
// @Failure  400 {object} api.Envelope
// @Failure  404 {object} api.Envelope
// @Router   /export-logs [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadJSON(c, err)
		return
	}
	if req.ExportedBy == nil {
		if id, ok := auth.FromContext(c); ok && id.Email != "" {
			req.ExportedBy = &id.Email
		}
	}
	logs, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Created(c, logs)
}

func (h *Handler) Patch(c *gin.Context) {
	var req PatchRequest
	if err := api.BindPatch(c, &req, patchableFields...); err != nil {
		api.Fail(c, err)
		return
	}
	l, err := h.svc.Patch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, l)
}
