package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/middleware"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/pkg/metrics"
	"github.com/medscan/scangate/internal/service"
)

type UsageHandler struct {
	usage  *service.UsageService
	export *service.ExportService
	audit  *service.AuditService
}

func NewUsageHandler(usage *service.UsageService, export *service.ExportService, audit *service.AuditService) *UsageHandler {
	return &UsageHandler{usage: usage, export: export, audit: audit}
}

// Create registers one usage record. A resubmit inside the duplicate window
// returns the existing record with the same 201, so retrying clients cannot
// tell they were suppressed.
func (h *UsageHandler) Create(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	var payload model.UsageRecordCreate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.Error(apperrors.NewValidation("请求参数格式错误: " + err.Error()))
		return
	}

	rec, _, err := h.usage.Create(c.Request.Context(), caller, &payload)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, model.NewUsageRecordRead(rec))
}

// Undo soft-deletes the caller's own record.
func (h *UsageHandler) Undo(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperrors.NewValidation("无效的记录ID"))
		return
	}
	if err := h.usage.Undo(c.Request.Context(), caller, id); err != nil {
		c.Error(err)
		return
	}
	if caller != nil && h.audit != nil {
		h.audit.Log(&caller.ID, "usage.undo", strPtr("usage_record"), &id, nil)
	}
	c.Status(http.StatusNoContent)
}

// List returns role-scoped records, newest first.
func (h *UsageHandler) List(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	f, limit, offset, err := parseUsageQuery(c)
	if err != nil {
		c.Error(err)
		return
	}
	records, err := h.usage.List(c.Request.Context(), caller, f, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Count returns the cardinality of the same predicate List uses.
func (h *UsageHandler) Count(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	f, _, _, err := parseUsageQuery(c)
	if err != nil {
		c.Error(err)
		return
	}
	total, err := h.usage.Count(c.Request.Context(), caller, f)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}

// Export streams the filtered record set as csv (default), xlsx or pdf.
// Only admins may export; anonymous callers get 401, plain users 403.
func (h *UsageHandler) Export(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	if caller == nil {
		c.Error(apperrors.NewUnauthenticated("请先登录后导出"))
		return
	}
	if !caller.IsAdmin() {
		c.Error(apperrors.NewForbidden("仅管理员可导出记录"))
		return
	}

	f, _, _, err := parseUsageQuery(c)
	if err != nil {
		c.Error(err)
		return
	}
	f = service.BuildScope(caller, f.UserID, f.IncludeDeleted).Apply(f)

	total, err := h.export.CheckCeiling(c.Request.Context(), f)
	if err != nil {
		c.Error(err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	filename := "usage_records_" + time.Now().In(localtime.HospitalZone).Format("20060102_150405")

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
		if err := h.export.ExportCSV(c.Request.Context(), f, c.Writer); err != nil {
			c.Error(apperrors.Wrap(err))
			return
		}
	case "xlsx":
		data, err := h.export.BuildXLSX(c.Request.Context(), f)
		if err != nil {
			c.Error(apperrors.Wrap(err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", filename))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	case "pdf":
		data, err := h.export.BuildPDF(c.Request.Context(), f)
		if err != nil {
			c.Error(apperrors.Wrap(err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", filename))
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		c.Error(apperrors.NewValidation("不支持的导出格式，仅支持 csv / xlsx / pdf"))
		return
	}

	metrics.ExportsTotal.WithLabelValues(format).Inc()
	if h.audit != nil {
		details := fmt.Sprintf(`{"format":%q,"total":%d}`, format, total)
		h.audit.Log(&caller.ID, "usage.export", strPtr("usage_record"), nil, &details)
	}
}

// parseUsageQuery reads the shared filter/pagination query parameters.
// Timestamps accept the same naive local shapes the create path does.
func parseUsageQuery(c *gin.Context) (model.UsageFilter, int, int, error) {
	var f model.UsageFilter
	f.DeviceCode = strings.TrimSpace(c.Query("device_code"))
	f.Dept = strings.TrimSpace(c.Query("dept"))
	f.BedNumber = strings.TrimSpace(c.Query("bed_number"))

	if raw := c.Query("user_id"); raw != "" {
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, 0, 0, apperrors.NewValidation("无效的 user_id")
		}
		f.UserID = &uid
	}
	if raw := c.Query("from_time"); raw != "" {
		t, err := localtime.ParseLocalNaive(raw)
		if err != nil {
			return f, 0, 0, apperrors.NewValidation("无效的 from_time")
		}
		f.FromTime = &t
	}
	if raw := c.Query("to_time"); raw != "" {
		t, err := localtime.ParseLocalNaive(raw)
		if err != nil {
			return f, 0, 0, apperrors.NewValidation("无效的 to_time")
		}
		f.ToTime = &t
	}
	if raw := c.Query("registration_date_from"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return f, 0, 0, apperrors.NewValidation("无效的 registration_date_from")
		}
		f.RegDateFrom = &d
	}
	if raw := c.Query("registration_date_to"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return f, 0, 0, apperrors.NewValidation("无效的 registration_date_to")
		}
		f.RegDateTo = &d
	}
	if raw := c.Query("include_deleted"); raw != "" {
		f.IncludeDeleted = raw == "true" || raw == "1"
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return f, 0, 0, apperrors.NewValidation("limit 取值范围为 1-500")
		}
		limit = n
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, 0, 0, apperrors.NewValidation("offset 不能为负数")
		}
		offset = n
	}
	return f, limit, offset, nil
}

func strPtr(s string) *string { return &s }
