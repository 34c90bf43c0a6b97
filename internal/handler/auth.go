package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/middleware"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/service"
)

type AuthHandler struct {
	auth  *service.AuthService
	audit *service.AuditService
}

func NewAuthHandler(auth *service.AuthService, audit *service.AuditService) *AuthHandler {
	return &AuthHandler{auth: auth, audit: audit}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a local username/password account.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation("请求参数格式错误"))
		return
	}
	user, token, err := h.auth.LoginLocal(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.Error(err)
		return
	}
	if h.audit != nil {
		h.audit.Log(&user.ID, "auth.login", nil, nil, nil)
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// WeComCallback completes the OAuth flow with the code WeCom redirects back.
func (h *AuthHandler) WeComCallback(c *gin.Context) {
	code := c.Query("code")
	user, token, err := h.auth.LoginWeCom(c.Request.Context(), code)
	if err != nil {
		c.Error(err)
		return
	}
	if h.audit != nil {
		h.audit.Log(&user.ID, "auth.wecom_login", nil, nil, nil)
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// Me returns the authenticated caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.Error(apperrors.NewUnauthenticated("请先登录"))
		return
	}
	c.JSON(http.StatusOK, user)
}
