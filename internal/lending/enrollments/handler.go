package enrollments

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/clock"
)

const maxIdempotencyKeyLen = 128

type Handler struct{ svc *Service }

// RegisterRoutes: 受付フォームが使う POST は公開側
func RegisterRoutes(pub, priv gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	pub.POST("/enrollment", h.Enroll)
	pub.POST("/enrollment-images", h.AddImages)

	priv.GET("/enrollments", h.List)
	priv.GET("/enrollments/:id", h.Get)
	priv.PATCH("/enrollments/:id", h.Patch)
	priv.GET("/enrollment-images", h.ListImages)
}

// Enroll godoc
// @Summary  Borrow or return materials
// @Description type=borrow creates/updates the student, an enrollment and one record per material.
// @Description type=return closes the oldest outstanding record for phone+material_id.
// @Tags     enrollment
// @Accept   json
// @Param    Idempotency-Key header string false "retry-safe key"
// @Param    body body EnrollmentRequest true "request"
// @Success  201 {object} api.Envelope
// @Success  200 {object} api.Envelope
// @Failure  400 {object} api.Envelope
// @Failure  404 {object} api.Envelope
// @Router   /enrollment [post]
func (h *Handler) Enroll(c *gin.Context) {
	var req EnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadJSON(c, err)
		return
	}
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLen {
		api.Fail(c, api.ErrInvalid("Idempotency-Key is too long"))
		return
	}

	ctx := c.Request.Context()
	switch req.Type {
	case "":
		api.Fail(c, api.ErrInvalid("Missing required fields"))
	case opBorrow:
		res, err := h.svc.Borrow(ctx, req.borrow(), key)
		if err != nil {
			api.Fail(c, err)
			return
		}
		api.Created(c, res)
	case opReturn:
		res, err := h.svc.Return(ctx, req.giveBack(), key)
		if err != nil {
			api.Fail(c, err)
			return
		}
		api.OK(c, res)
	default:
		api.Fail(c, api.ErrInvalid(`Invalid type. Use "borrow" or "return"`))
	}
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{
		Phone:        c.Query("phone"),
		SalesStaffID: c.Query("sales_staff_id"),
	}
	var err error
	if f.From, err = parseDate(c.Query("date_from")); err != nil {
		api.Fail(c, err)
		return
	}
	if f.To, err = parseDate(c.Query("date_to")); err != nil {
		api.Fail(c, err)
		return
	}
	if v := c.Query("erp_updated"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			api.Fail(c, api.ErrInvalid("erp_updated must be true or false"))
			return
		}
		f.ERPUpdated = &b
	}
	res, err := h.svc.List(c.Request.Context(), f, api.ParsePage(c, 50))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Get(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, d)
}

// PATCH /enrollments/:id  notes / due_date / erp_updated のみ
func (h *Handler) Patch(c *gin.Context) {
	var req PatchEnrollmentRequest
	if err := api.BindPatch(c, &req, patchableFields...); err != nil {
		api.Fail(c, err)
		return
	}
	d, err := h.svc.Patch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, d)
}

func (h *Handler) ListImages(c *gin.Context) {
	imgs, err := h.svc.ListImages(c.Request.Context(), c.Query("enrollment_id"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, imgs)
}

// POST /enrollment-images  body は配列
func (h *Handler) AddImages(c *gin.Context) {
	var req []ImageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("enrollment_id, storage_path and file_name are required"))
		return
	}
	imgs, err := h.svc.AddImages(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Created(c, imgs)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(clock.DateLayout, s)
	if err != nil {
		return nil, api.ErrInvalid("dates must be YYYY-MM-DD")
	}
	return &t, nil
}
