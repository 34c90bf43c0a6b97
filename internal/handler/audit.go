package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/service"
)

type AuditHandler struct {
	audit *service.AuditService
}

func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns recent audit entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var actorID *int64
	if raw := c.Query("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.Error(apperrors.NewValidation("无效的 actor_id"))
			return
		}
		actorID = &id
	}

	var from, to *time.Time
	if raw := c.Query("from_time"); raw != "" {
		t, err := localtime.ParseLocalNaive(raw)
		if err != nil {
			c.Error(apperrors.NewValidation("无效的 from_time"))
			return
		}
		from = &t
	}
	if raw := c.Query("to_time"); raw != "" {
		t, err := localtime.ParseLocalNaive(raw)
		if err != nil {
			c.Error(apperrors.NewValidation("无效的 to_time"))
			return
		}
		to = &t
	}

	entries, err := h.audit.List(c.Request.Context(), c.Query("action"), actorID, limit, from, to)
	if err != nil {
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, entries)
}
