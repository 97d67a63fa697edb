package auth

import (
	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
)

type Handler struct{ svc *Service }

func RegisterRoutes(pub, priv gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	pub.POST("/auth/login", h.Login)
	priv.GET("/auth/me", h.Me)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login godoc
// @Summary  Dashboard login
// @Tags     auth
// @Accept   json
// @Param    body body LoginRequest true "credentials"
// @Success  200 {object} api.Envelope
// @Failure  401 {object} api.Envelope
// @Router   /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.ErrInvalid("Invalid request"))
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, res)
}

func (h *Handler) Me(c *gin.Context) {
	id, ok := FromContext(c)
	if !ok {
		api.Fail(c, api.ErrUnauthenticated("not logged in"))
		return
	}
	api.OK(c, id)
}
