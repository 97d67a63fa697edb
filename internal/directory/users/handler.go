package users

import (
	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
)

type Handler struct{ svc *Service }

func RegisterRoutes(pub, priv gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	pub.GET("/users/sales", h.SalesStaff)

	priv.GET("/users", h.List)
	priv.POST("/users", h.Create)
	priv.GET("/users/:id", h.Get)
	priv.PUT("/users/:id", h.Update)
}

// GET /users/sales
func (h *Handler) SalesStaff(c *gin.Context) {
	res, err := h.svc.SalesStaff(c.Request.Context())
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{Role: c.Query("role"), Search: c.Query("search")}
	res, err := h.svc.List(c.Request.Context(), f, api.ParsePage(c, 100))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("Full name and email are required"))
		return
	}
	u, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.Created(c, u)
}

func (h *Handler) Get(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, u)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := api.BindPatch(c, &req, updatableFields...); err != nil {
		api.Fail(c, err)
		return
	}
	u, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, u)
}
