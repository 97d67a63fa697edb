package materials

import (
	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
)

type Handler struct{ svc *Service }

// RegisterRoutes: 一覧は受付フォームからも引くので公開側に置く
func RegisterRoutes(pub, priv gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	pub.GET("/materials", h.List)

	priv.POST("/materials", h.Create)
	priv.GET("/materials/:id", h.Get)
	priv.PUT("/materials/:id", h.Update)
	priv.DELETE("/materials/:id", h.Delete)
}

// List godoc
// @Summary  List materials
// @Tags     materials
// @Param    level query string false "level"
// @Param    type query string false "book|gift|other"
// @Param    search query string false "title/author, accent-insensitive"
// @Param    in_stock query bool false "only quantity_available > 0"
// @Param    limit query int false "default 50"
// @Param    offset query int false "default 0"
// @Success  200 {object} api.Envelope
// @Router   /materials [get]
func (h *Handler) List(c *gin.Context) {
	f := Filter{
		Level:   c.Query("level"),
		Type:    c.Query("type"),
		Search:  c.Query("search"),
		InStock: c.Query("in_stock") == "true" || c.Query("in_stock") == "1",
	}
	res, err := h.svc.List(c.Request.Context(), f, api.ParsePage(c, 50))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

// POST /materials
func (h *Handler) Create(c *gin.Context) {
	var req CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("Title and level are required"))
		return
	}
	m, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	c.Header("Location", "/api/v1/materials/"+m.ID)
	api.Created(c, m)
}

func (h *Handler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, m)
}

// PUT /materials/:id
func (h *Handler) Update(c *gin.Context) {
	var req UpdateMaterialRequest
	if err := api.BindPatch(c, &req, updatableFields...); err != nil {
		api.Fail(c, err)
		return
	}
	m, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, m)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, gin.H{"message": "Material deleted"})
}
