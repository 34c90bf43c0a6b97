package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/middleware"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/repository"
	"github.com/medscan/scangate/internal/service"
)

type UserHandler struct {
	users *repository.GormUserRepo
	audit *service.AuditService
}

func NewUserHandler(users *repository.GormUserRepo, audit *service.AuditService) *UserHandler {
	return &UserHandler{users: users, audit: audit}
}

func (h *UserHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	activeOnly := c.Query("active_only") == "true"
	users, err := h.users.List(c.Request.Context(), c.Query("role"), activeOnly, limit, offset)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, users)
}

type userUpdateRequest struct {
	RealName *string `json:"real_name"`
	Role     *string `json:"role"`
	Dept     *string `json:"dept"`
	IsActive *bool   `json:"is_active"`
}

// Update changes role/activation/profile fields of an account.
func (h *UserHandler) Update(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewValidation("无效的用户ID"))
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			c.Error(apperrors.NewNotFound("用户不存在"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}

	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation("请求参数格式错误: " + err.Error()))
		return
	}
	if req.Role != nil {
		switch *req.Role {
		case model.RoleUser, model.RoleDeviceAdmin, model.RoleSysAdmin:
			user.Role = *req.Role
		default:
			c.Error(apperrors.NewValidation("未知的角色"))
			return
		}
	}
	if req.RealName != nil {
		user.RealName = *req.RealName
	}
	if req.Dept != nil {
		user.Dept = req.Dept
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := h.users.Update(c.Request.Context(), user); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "user.update", strPtr("user"), &user.ID, nil)
	}
	c.JSON(http.StatusOK, user)
}
