package service

import (
	"context"
	"strconv"

	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/logger"
)

// DictReader is the slice of the dictionary store the label lookups need.
type DictReader interface {
	ListByType(ctx context.Context, dictType string) ([]*model.DictItem, error)
}

type DictService struct {
	repo DictReader
}

func NewDictService(repo DictReader) *DictService {
	return &DictService{repo: repo}
}

// UsageTypeLabels maps usage-type codes (as strings) to display labels.
// Codes 1-5 always resolve: when the dictionary is empty or a code is
// unmapped the code itself is the label, so exports never show blanks.
func (s *DictService) UsageTypeLabels(ctx context.Context) map[string]string {
	out := make(map[string]string)
	if s.repo != nil {
		items, err := s.repo.ListByType(ctx, model.DictUsageType)
		if err != nil {
			logger.Warn("dictionary lookup failed, using fallback labels", "error", err)
		}
		for _, item := range items {
			code := strconv.Itoa(item.Code)
			if item.Label != "" {
				out[code] = item.Label
			} else {
				out[code] = code
			}
		}
	}
	for k := model.UsageTypeNormal; k <= model.UsageTypeOther; k++ {
		code := strconv.Itoa(k)
		if _, ok := out[code]; !ok {
			out[code] = code
		}
	}
	return out
}

// EquipmentConditionLabel translates the equipment_condition code for display.
func EquipmentConditionLabel(code string) string {
	switch code {
	case model.EquipmentNormal:
		return "正常"
	case model.EquipmentAbnormal:
		return "异常"
	default:
		return code
	}
}

// DailyMaintenanceLabel translates the daily_maintenance code for display.
func DailyMaintenanceLabel(code string) string {
	switch code {
	case model.MaintenanceClean:
		return "清洁"
	case model.MaintenanceDisinfect:
		return "消毒"
	default:
		return code
	}
}
