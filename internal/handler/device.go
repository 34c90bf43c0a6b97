package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/middleware"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/repository"
	"github.com/medscan/scangate/internal/service"
)

type DeviceHandler struct {
	devices *repository.GormDeviceRepo
	audit   *service.AuditService
}

func NewDeviceHandler(devices *repository.GormDeviceRepo, audit *service.AuditService) *DeviceHandler {
	return &DeviceHandler{devices: devices, audit: audit}
}

// GetByCode resolves a device by business key; the scan flow hits this first.
func (h *DeviceHandler) GetByCode(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		c.Error(apperrors.NewValidation("设备编号不能为空"))
		return
	}
	device, err := h.devices.GetActiveByCode(c.Request.Context(), code)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			c.Error(apperrors.NewNotFound("设备不存在或已停用/已删除"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *DeviceHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	includeDeleted := c.Query("include_deleted") == "true"
	devices, err := h.devices.List(c.Request.Context(), strings.TrimSpace(c.Query("dept")), includeDeleted, limit, offset)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, devices)
}

type deviceUpsertRequest struct {
	DeviceCode string  `json:"device_code" binding:"required"`
	Name       string  `json:"name" binding:"required"`
	Dept       *string `json:"dept"`
	Location   *string `json:"location"`
	Status     string  `json:"status"`
	QRValue    *string `json:"qr_value"`
	IsActive   *bool   `json:"is_active"`
}

func (h *DeviceHandler) Create(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	var req deviceUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation("请求参数格式错误: " + err.Error()))
		return
	}
	device := &model.Device{
		DeviceCode: strings.TrimSpace(req.DeviceCode),
		Name:       strings.TrimSpace(req.Name),
		Dept:       req.Dept,
		Location:   req.Location,
		Status:     req.Status,
		QRValue:    req.QRValue,
		IsActive:   true,
		CreatedAt:  localtime.NowUTC(),
	}
	if req.Status == "" {
		device.Status = "1"
	}
	if caller != nil {
		device.CreatedBy = &caller.ID
	}
	if err := h.devices.Create(c.Request.Context(), device); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "device.create", strPtr("device"), &device.ID, nil)
	}
	c.JSON(http.StatusCreated, device)
}

func (h *DeviceHandler) Update(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewValidation("无效的设备ID"))
		return
	}
	device, err := h.devices.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			c.Error(apperrors.NewNotFound("设备不存在"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}

	var req deviceUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation("请求参数格式错误: " + err.Error()))
		return
	}
	device.DeviceCode = strings.TrimSpace(req.DeviceCode)
	device.Name = strings.TrimSpace(req.Name)
	device.Dept = req.Dept
	device.Location = req.Location
	device.QRValue = req.QRValue
	if req.Status != "" {
		device.Status = req.Status
	}
	if req.IsActive != nil {
		device.IsActive = *req.IsActive
	}
	if err := h.devices.Update(c.Request.Context(), device); err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "device.update", strPtr("device"), &device.ID, nil)
	}
	c.JSON(http.StatusOK, device)
}

func (h *DeviceHandler) Delete(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewValidation("无效的设备ID"))
		return
	}
	if err := h.devices.SoftDelete(c.Request.Context(), id); err != nil {
		if err == repository.ErrRecordNotFound {
			c.Error(apperrors.NewNotFound("设备不存在或已删除"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "device.delete", strPtr("device"), &id, nil)
	}
	c.Status(http.StatusNoContent)
}
