package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/middleware"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/repository"
	"github.com/medscan/scangate/internal/service"
)

type DictHandler struct {
	dicts *repository.GormDictRepo
	audit *service.AuditService
}

func NewDictHandler(dicts *repository.GormDictRepo, audit *service.AuditService) *DictHandler {
	return &DictHandler{dicts: dicts, audit: audit}
}

// ListByType returns the active items of one dictionary, sorted for display.
func (h *DictHandler) ListByType(c *gin.Context) {
	dictType := c.Param("type")
	if dictType != model.DictUsageType && dictType != model.DictDeviceStatus {
		c.Error(apperrors.NewValidation("未知的字典类型"))
		return
	}
	items, err := h.dicts.ListByType(c.Request.Context(), dictType)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, items)
}

type dictUpsertRequest struct {
	DictType  string `json:"dict_type" binding:"required"`
	Code      int    `json:"code" binding:"required"`
	Label     string `json:"label" binding:"required"`
	SortOrder int    `json:"sort_order"`
}

func (h *DictHandler) Create(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	var req dictUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation("请求参数格式错误: " + err.Error()))
		return
	}
	if req.DictType != model.DictUsageType && req.DictType != model.DictDeviceStatus {
		c.Error(apperrors.NewValidation("未知的字典类型"))
		return
	}
	n, err := h.dicts.CountByTypeAndCode(c.Request.Context(), req.DictType, req.Code)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if n > 0 {
		c.Error(apperrors.NewValidation("该字典编码已存在"))
		return
	}
	item := &model.DictItem{
		DictType:  req.DictType,
		Code:      req.Code,
		Label:     req.Label,
		IsActive:  true,
		SortOrder: req.SortOrder,
		CreatedAt: localtime.NowUTC(),
	}
	if err := h.dicts.Create(c.Request.Context(), item); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "dict.create", strPtr("dict_item"), &item.ID, nil)
	}
	c.JSON(http.StatusCreated, item)
}

func (h *DictHandler) Update(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewValidation("无效的字典ID"))
		return
	}
	item, err := h.dicts.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			c.Error(apperrors.NewNotFound("字典项不存在"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}

	var req struct {
		Label     *string `json:"label"`
		IsActive  *bool   `json:"is_active"`
		SortOrder *int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation("请求参数格式错误: " + err.Error()))
		return
	}
	if req.Label != nil {
		item.Label = *req.Label
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if req.SortOrder != nil {
		item.SortOrder = *req.SortOrder
	}
	if err := h.dicts.Update(c.Request.Context(), item); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "dict.update", strPtr("dict_item"), &item.ID, nil)
	}
	c.JSON(http.StatusOK, item)
}

func (h *DictHandler) Delete(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewValidation("无效的字典ID"))
		return
	}
	if err := h.dicts.SoftDelete(c.Request.Context(), id); err != nil {
		if err == repository.ErrRecordNotFound {
			c.Error(apperrors.NewNotFound("字典项不存在或已删除"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "dict.delete", strPtr("dict_item"), &id, nil)
	}
	c.Status(http.StatusNoContent)
}
