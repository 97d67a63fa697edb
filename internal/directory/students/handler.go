package students

import (
	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
)

type Handler struct{ svc *Service }

func RegisterRoutes(pub, priv gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 受付フォームから叩かれる
	pub.GET("/students/check-phone", h.CheckPhone)

	priv.GET("/students", h.List)
	priv.POST("/students", h.Create)
	priv.GET("/students/:id", h.Get)
	priv.PUT("/students/:id", h.Update)
}

// CheckPhone godoc
// @Summary  Look up a student by phone with outstanding materials
// @Tags     students
// @Param    phone query string true "10-digit phone starting with 0"
// @Success  200 {object} api.Envelope
// @Failure  400 {object} api.Envelope
// @Router   /students/check-phone [get]
func (h *Handler) CheckPhone(c *gin.Context) {
	res, err := h.svc.CheckPhone(c.Request.Context(), c.Query("phone"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{
		Level:       c.Query("level"),
		StudentType: c.Query("student_type"),
		Search:      c.Query("search"),
	}
	res, err := h.svc.List(c.Request.Context(), f, api.ParsePage(c, 50))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("Name, email, phone, level, and student_type are required"))
		return
	}
	st, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Created(c, st)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateStudentRequest
	if err := api.BindPatch(c, &req, updatableFields...); err != nil {
		api.Fail(c, err)
		return
	}
	res, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}
