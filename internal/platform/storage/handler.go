package storage

import (
	"strings"

	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
)

type Handler struct{ svc *Service }

// RegisterRoutes: 受付フォームは署名付き URL でアップロードするので sign/upload は公開側
func RegisterRoutes(pub, priv gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	pub.POST("/storage/sign-upload", h.SignUpload)
	pub.PUT("/storage/upload/*path", h.Upload)
	priv.GET("/storage/objects/*path", h.Get)
}

type signRequest struct {
	Path string `json:"path" binding:"required"`
}

// SignUpload godoc
// @Summary  Create a signed upload URL
// @Tags     storage
// @Accept   json
// @Param    body body signRequest true "object path"
// @Success  200 {object} api.Envelope
// @Router   /storage/sign-upload [post]
func (h *Handler) SignUpload(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("path is required"))
		return
	}
	res, err := h.svc.SignUpload(req.Path)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Upload(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")
	res, err := h.svc.Upload(c.Request.Context(), p, c.Query("token"), c.Request.Body)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Get(c *gin.Context) {
	full, err := h.svc.Locate(strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	c.File(full)
}
