package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/medscan/scangate/internal/config"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/pkg/logger"
	"github.com/medscan/scangate/internal/pkg/metrics"
	"github.com/medscan/scangate/internal/repository"
)

// UsageRepo is the usage-record store as seen by the service.
type UsageRepo interface {
	Insert(ctx context.Context, rec *model.UsageRecord) error
	GetByID(ctx context.Context, id int64) (*model.UsageRecord, error)
	FindRecentDuplicate(ctx context.Context, userID int64, deviceCode string, cutoff time.Time) (*model.UsageRecord, error)
	MarkDeleted(ctx context.Context, id int64) error
	List(ctx context.Context, f model.UsageFilter, limit, offset int) ([]*model.UsageRecord, error)
	Count(ctx context.Context, f model.UsageFilter) (int64, error)
}

// DeviceReader resolves devices for the write path.
type DeviceReader interface {
	GetActiveByCode(ctx context.Context, deviceCode string) (*model.Device, error)
}

type UsageService struct {
	repo       UsageRepo
	devices    DeviceReader
	undoWindow time.Duration
	dupWindow  time.Duration

	// Business "now" under the storage convention; swapped in tests.
	nowFn func() time.Time
}

func NewUsageService(repo UsageRepo, devices DeviceReader, cfg *config.Config) *UsageService {
	undoHours := 24
	dupSeconds := 10
	if cfg != nil {
		if cfg.Usage.UndoWindowHours >= 0 {
			undoHours = cfg.Usage.UndoWindowHours
		}
		if cfg.Usage.DuplicateWindowSeconds > 0 {
			dupSeconds = cfg.Usage.DuplicateWindowSeconds
		}
	}
	return &UsageService{
		repo:       repo,
		devices:    devices,
		undoWindow: time.Duration(undoHours) * time.Hour,
		dupWindow:  time.Duration(dupSeconds) * time.Second,
		nowFn:      localtime.NowLocalAsUTC,
	}
}

// UndoWindowHours reports the configured window, for error messages.
func (s *UsageService) UndoWindowHours() int {
	return int(s.undoWindow / time.Hour)
}

// Create validates and persists one submission. A resubmit of the same
// (user, device) pair inside the duplicate window returns the existing record
// unchanged with duplicate=true; that is a success, not an error.
func (s *UsageService) Create(ctx context.Context, caller *model.User, payload *model.UsageRecordCreate) (rec *model.UsageRecord, duplicate bool, err error) {
	if caller == nil {
		return nil, false, apperrors.NewUnauthenticated("请先登录")
	}
	if err := validateCreatePayload(payload); err != nil {
		return nil, false, err
	}

	device, err := s.devices.GetActiveByCode(ctx, payload.DeviceCode)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			return nil, false, apperrors.NewNotFound("设备不存在或已停用/已删除")
		}
		return nil, false, apperrors.Wrap(err)
	}

	now := s.nowFn()

	// Best-effort duplicate suppression; see FindRecentDuplicate for the
	// concurrency caveat.
	cutoff := now.Add(-s.dupWindow)
	if existing, err := s.repo.FindRecentDuplicate(ctx, caller.ID, device.DeviceCode, cutoff); err != nil {
		return nil, false, apperrors.Wrap(err)
	} else if existing != nil {
		metrics.DuplicatesSuppressed.Inc()
		logger.Debug("duplicate submission suppressed",
			"user_id", caller.ID, "device_code", device.DeviceCode, "record_id", existing.ID)
		return existing, true, nil
	}

	startTime, err := localtime.ParseLocalNaivePtr(payload.StartTime)
	if err != nil {
		return nil, false, apperrors.NewValidation(fmt.Sprintf("无效的开始时间: %v", err))
	}
	endTime, err := localtime.ParseLocalNaivePtr(payload.EndTime)
	if err != nil {
		return nil, false, apperrors.NewValidation(fmt.Sprintf("无效的结束时间: %v", err))
	}

	usageType := int(payload.UsageType)
	if usageType <= 0 {
		usageType = model.UsageTypeNormal
	}

	rec = &model.UsageRecord{
		DeviceCode:           device.DeviceCode,
		UserID:               caller.ID,
		UsageType:            strconv.Itoa(usageType),
		DeptAtUse:            payload.DeptAtUse,
		PatientID:            payload.PatientID,
		Note:                 payload.Note,
		EndTime:              endTime,
		BedNumber:            payload.BedNumber,
		IDNumber:             payload.IDNumber,
		PatientName:          payload.PatientName,
		EquipmentCondition:   payload.EquipmentCondition,
		DailyMaintenance:     payload.DailyMaintenance,
		TerminalDisinfection: payload.TerminalDisinfection,
		PhotoURLs:            model.JoinPhotoURLs(payload.PhotoURLs),
		Source:               payload.Source,
		CreatedAt:            now,
	}

	if startTime != nil {
		rec.StartTime = *startTime
	} else {
		rec.StartTime = now
	}
	if payload.RegistrationDate != nil && !payload.RegistrationDate.IsZero() {
		rec.RegistrationDate = payload.RegistrationDate
	} else {
		local := now.In(localtime.HospitalZone)
		today := model.NewDate(local.Year(), local.Month(), local.Day())
		rec.RegistrationDate = &today
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, false, apperrors.Wrap(err)
	}
	metrics.UsageRecordsCreated.Inc()

	name := device.Name
	rec.DeviceName = &name
	userName := caller.RealName
	rec.UserName = &userName
	return rec, false, nil
}

// Undo soft-deletes the caller's own record inside the undo window. The
// window is anchored at whichever of created_at / start_time is later.
func (s *UsageService) Undo(ctx context.Context, caller *model.User, recordID int64) error {
	if caller == nil {
		return apperrors.NewUnauthenticated("请先登录")
	}
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			return apperrors.NewNotFound("记录不存在")
		}
		return apperrors.Wrap(err)
	}
	if rec.UserID != caller.ID {
		metrics.UndoTotal.WithLabelValues("forbidden").Inc()
		return apperrors.NewForbidden("只能撤销自己的登记记录")
	}
	if rec.IsDeleted {
		metrics.UndoTotal.WithLabelValues("already_undone").Inc()
		return apperrors.NewInvalidState("该记录已撤销")
	}

	ref := rec.CreatedAt
	if rec.StartTime.After(ref) {
		ref = rec.StartTime
	}
	cutoff := s.nowFn().Add(-s.undoWindow)
	if ref.Before(cutoff) {
		metrics.UndoTotal.WithLabelValues("window_expired").Inc()
		return apperrors.NewInvalidState(
			fmt.Sprintf("仅支持撤销最近 %d 小时内的登记记录", s.UndoWindowHours()))
	}

	if err := s.repo.MarkDeleted(ctx, rec.ID); err != nil {
		if err == repository.ErrRecordNotFound {
			// Lost a race with another undo of the same record.
			return apperrors.NewInvalidState("该记录已撤销")
		}
		return apperrors.Wrap(err)
	}
	metrics.UndoTotal.WithLabelValues("ok").Inc()
	return nil
}

// List returns role-scoped records for the caller, newest start_time first.
func (s *UsageService) List(ctx context.Context, caller *model.User, f model.UsageFilter, limit, offset int) ([]*model.UsageRecordRead, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthenticated("请先登录后查看记录")
	}
	scoped := BuildScope(caller, f.UserID, f.IncludeDeleted).Apply(f)
	records, err := s.repo.List(ctx, scoped, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	out := make([]*model.UsageRecordRead, 0, len(records))
	for _, rec := range records {
		out = append(out, model.NewUsageRecordRead(rec))
	}
	return out, nil
}

// Count returns the cardinality of the same predicate List uses.
func (s *UsageService) Count(ctx context.Context, caller *model.User, f model.UsageFilter) (int64, error) {
	if caller == nil {
		return 0, apperrors.NewUnauthenticated("请先登录后查看记录")
	}
	scoped := BuildScope(caller, f.UserID, f.IncludeDeleted).Apply(f)
	total, err := s.repo.Count(ctx, scoped)
	if err != nil {
		return 0, apperrors.Wrap(err)
	}
	return total, nil
}

func validateCreatePayload(p *model.UsageRecordCreate) error {
	if p == nil || p.DeviceCode == "" {
		return apperrors.NewValidation("设备编号不能为空")
	}
	if p.Note != nil && len([]rune(*p.Note)) > 500 {
		return apperrors.NewValidation("备注最多500字")
	}
	if p.TerminalDisinfection != nil && len([]rune(*p.TerminalDisinfection)) > 500 {
		return apperrors.NewValidation("终末消毒备注最多500字")
	}
	if p.EquipmentCondition != nil && *p.EquipmentCondition != "" &&
		*p.EquipmentCondition != model.EquipmentNormal && *p.EquipmentCondition != model.EquipmentAbnormal {
		return apperrors.NewValidation("设备状况仅支持 normal / abnormal")
	}
	if p.DailyMaintenance != nil && *p.DailyMaintenance != "" &&
		*p.DailyMaintenance != model.MaintenanceClean && *p.DailyMaintenance != model.MaintenanceDisinfect {
		return apperrors.NewValidation("日常保养仅支持 clean / disinfect")
	}
	return nil
}
