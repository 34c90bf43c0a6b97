package service

import (
	"context"
	"testing"
	"time"

	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsageRepo struct {
	records   map[int64]*model.UsageRecord
	nextID    int64
	duplicate *model.UsageRecord
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{records: make(map[int64]*model.UsageRecord), nextID: 1}
}

func (f *fakeUsageRepo) Insert(_ context.Context, rec *model.UsageRecord) error {
	rec.ID = f.nextID
	f.nextID++
	stored := *rec
	f.records[rec.ID] = &stored
	return nil
}

func (f *fakeUsageRepo) GetByID(_ context.Context, id int64) (*model.UsageRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeUsageRepo) FindRecentDuplicate(_ context.Context, userID int64, deviceCode string, cutoff time.Time) (*model.UsageRecord, error) {
	d := f.duplicate
	if d == nil || d.UserID != userID || d.DeviceCode != deviceCode || d.CreatedAt.Before(cutoff) {
		return nil, nil
	}
	return d, nil
}

func (f *fakeUsageRepo) MarkDeleted(_ context.Context, id int64) error {
	rec, ok := f.records[id]
	if !ok || rec.IsDeleted {
		return repository.ErrRecordNotFound
	}
	rec.IsDeleted = true
	return nil
}

func (f *fakeUsageRepo) List(_ context.Context, _ model.UsageFilter, _, _ int) ([]*model.UsageRecord, error) {
	return nil, nil
}

func (f *fakeUsageRepo) Count(_ context.Context, _ model.UsageFilter) (int64, error) {
	return 0, nil
}

type fakeDeviceReader struct {
	devices map[string]*model.Device
}

func (f *fakeDeviceReader) GetActiveByCode(_ context.Context, code string) (*model.Device, error) {
	device, ok := f.devices[code]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return device, nil
}

func newTestUsageService(repo *fakeUsageRepo, now time.Time) *UsageService {
	devices := &fakeDeviceReader{devices: map[string]*model.Device{
		"ECG-001": {ID: 1, DeviceCode: "ECG-001", Name: "心电图机", IsActive: true},
	}}
	svc := NewUsageService(repo, devices, nil)
	svc.nowFn = func() time.Time { return now }
	return svc
}

func appErrType(t *testing.T, err error) apperrors.ErrorType {
	t.Helper()
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected *apperrors.AppError, got %T", err)
	return appErr.Type
}

func TestCreateAppliesDefaults(t *testing.T) {
	now := time.Date(2024, 6, 1, 2, 30, 0, 0, time.UTC) // 10:30 local
	repo := newFakeUsageRepo()
	svc := newTestUsageService(repo, now)
	caller := &model.User{ID: 5, RealName: "张三", Role: model.RoleUser}

	rec, duplicate, err := svc.Create(context.Background(), caller, &model.UsageRecordCreate{
		DeviceCode: "ECG-001",
	})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, now, rec.StartTime)
	require.NotNil(t, rec.RegistrationDate)
	assert.Equal(t, "2024-06-01", rec.RegistrationDate.String())
	assert.Equal(t, "1", rec.UsageType, "zero-value usage type defaults to normal")
	require.NotNil(t, rec.DeviceName)
	assert.Equal(t, "心电图机", *rec.DeviceName)
}

func TestCreateParsesNaiveLocalTimes(t *testing.T) {
	now := time.Date(2024, 6, 1, 4, 0, 0, 0, time.UTC)
	repo := newFakeUsageRepo()
	svc := newTestUsageService(repo, now)
	caller := &model.User{ID: 5, Role: model.RoleUser}

	start := "2024-06-01 08:30:00"
	rec, _, err := svc.Create(context.Background(), caller, &model.UsageRecordCreate{
		DeviceCode: "ECG-001",
		StartTime:  &start,
	})
	require.NoError(t, err)
	// 08:30 on the ward clock is 00:30 UTC.
	assert.Equal(t, time.Date(2024, 6, 1, 0, 30, 0, 0, time.UTC), rec.StartTime)
}

func TestCreateUnknownDevice(t *testing.T) {
	svc := newTestUsageService(newFakeUsageRepo(), time.Now().UTC())
	caller := &model.User{ID: 5, Role: model.RoleUser}

	_, _, err := svc.Create(context.Background(), caller, &model.UsageRecordCreate{DeviceCode: "NOPE"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, appErrType(t, err))
}

func TestCreateUnauthenticated(t *testing.T) {
	svc := newTestUsageService(newFakeUsageRepo(), time.Now().UTC())
	_, _, err := svc.Create(context.Background(), nil, &model.UsageRecordCreate{DeviceCode: "ECG-001"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthenticated, appErrType(t, err))
}

func TestCreateDuplicateSuppressed(t *testing.T) {
	now := time.Date(2024, 6, 1, 2, 30, 0, 0, time.UTC)
	repo := newFakeUsageRepo()
	existing := &model.UsageRecord{
		ID: 77, UserID: 5, DeviceCode: "ECG-001",
		CreatedAt: now.Add(-5 * time.Second),
	}
	repo.duplicate = existing
	svc := newTestUsageService(repo, now)
	caller := &model.User{ID: 5, Role: model.RoleUser}

	rec, duplicate, err := svc.Create(context.Background(), caller, &model.UsageRecordCreate{DeviceCode: "ECG-001"})
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, int64(77), rec.ID, "existing record returned unchanged")
	assert.Empty(t, repo.records, "no second row written")
}

func TestCreateDuplicateOutsideWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 2, 30, 0, 0, time.UTC)
	repo := newFakeUsageRepo()
	repo.duplicate = &model.UsageRecord{
		ID: 77, UserID: 5, DeviceCode: "ECG-001",
		CreatedAt: now.Add(-11 * time.Second),
	}
	svc := newTestUsageService(repo, now)
	caller := &model.User{ID: 5, Role: model.RoleUser}

	rec, duplicate, err := svc.Create(context.Background(), caller, &model.UsageRecordCreate{DeviceCode: "ECG-001"})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.NotEqual(t, int64(77), rec.ID)
}

func TestCreateRejectsBadEnums(t *testing.T) {
	svc := newTestUsageService(newFakeUsageRepo(), time.Now().UTC())
	caller := &model.User{ID: 5, Role: model.RoleUser}

	bad := "broken"
	_, _, err := svc.Create(context.Background(), caller, &model.UsageRecordCreate{
		DeviceCode:         "ECG-001",
		EquipmentCondition: &bad,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation, appErrType(t, err))
}

func TestUndoHappyPath(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeUsageRepo()
	repo.records[1] = &model.UsageRecord{
		ID: 1, UserID: 5, DeviceCode: "ECG-001",
		StartTime: now.Add(-time.Hour), CreatedAt: now.Add(-time.Hour),
	}
	svc := newTestUsageService(repo, now)
	caller := &model.User{ID: 5, Role: model.RoleUser}

	require.NoError(t, svc.Undo(context.Background(), caller, 1))
	assert.True(t, repo.records[1].IsDeleted)
}

func TestUndoOnlyOwnRecords(t *testing.T) {
	now := time.Now().UTC()
	repo := newFakeUsageRepo()
	repo.records[1] = &model.UsageRecord{ID: 1, UserID: 5, CreatedAt: now, StartTime: now}
	svc := newTestUsageService(repo, now)

	err := svc.Undo(context.Background(), &model.User{ID: 6, Role: model.RoleSysAdmin}, 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, appErrType(t, err), "ownership beats role")
}

func TestUndoAlreadyUndone(t *testing.T) {
	now := time.Now().UTC()
	repo := newFakeUsageRepo()
	repo.records[1] = &model.UsageRecord{ID: 1, UserID: 5, CreatedAt: now, StartTime: now, IsDeleted: true}
	svc := newTestUsageService(repo, now)

	err := svc.Undo(context.Background(), &model.User{ID: 5, Role: model.RoleUser}, 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidState, appErrType(t, err))
}

func TestUndoMissingRecord(t *testing.T) {
	svc := newTestUsageService(newFakeUsageRepo(), time.Now().UTC())
	err := svc.Undo(context.Background(), &model.User{ID: 5, Role: model.RoleUser}, 123)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, appErrType(t, err))
}

func TestUndoWindowBoundary(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	created := now.Add(-24 * time.Hour)

	// Exactly at the boundary: still undoable.
	repo := newFakeUsageRepo()
	repo.records[1] = &model.UsageRecord{ID: 1, UserID: 5, CreatedAt: created, StartTime: created}
	svc := newTestUsageService(repo, now)
	caller := &model.User{ID: 5, Role: model.RoleUser}
	require.NoError(t, svc.Undo(context.Background(), caller, 1))

	// One second past it: rejected.
	repo = newFakeUsageRepo()
	past := created.Add(-time.Second)
	repo.records[1] = &model.UsageRecord{ID: 1, UserID: 5, CreatedAt: past, StartTime: past}
	svc = newTestUsageService(repo, now)
	err := svc.Undo(context.Background(), caller, 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidState, appErrType(t, err))
}

func TestUndoWindowAnchoredAtLaterOfCreatedAndStart(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	repo := newFakeUsageRepo()
	// Created long ago but the usage itself is recent (backdated entry edited
	// forward): the later timestamp keeps it undoable.
	repo.records[1] = &model.UsageRecord{
		ID: 1, UserID: 5,
		CreatedAt: now.Add(-48 * time.Hour),
		StartTime: now.Add(-time.Hour),
	}
	svc := newTestUsageService(repo, now)
	require.NoError(t, svc.Undo(context.Background(), &model.User{ID: 5, Role: model.RoleUser}, 1))
}
