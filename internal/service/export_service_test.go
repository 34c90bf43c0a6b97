package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/medscan/scangate/internal/config"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExportRepo struct {
	fakeUsageRepo
	rows  []*model.UsageRecord
	total int64
}

func (f *fakeExportRepo) List(_ context.Context, _ model.UsageFilter, limit, offset int) ([]*model.UsageRecord, error) {
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func (f *fakeExportRepo) Count(_ context.Context, _ model.UsageFilter) (int64, error) {
	return f.total, nil
}

func strp(s string) *string { return &s }

func sampleRecord() *model.UsageRecord {
	regDate := model.NewDate(2024, time.June, 1)
	end := time.Date(2024, 6, 1, 1, 45, 0, 0, time.UTC)
	return &model.UsageRecord{
		ID:                 1,
		DeviceCode:         "ECG-001",
		DeviceName:         strp("心电图机"),
		UserID:             5,
		UserName:           strp("张三"),
		UsageType:          "3",
		StartTime:          time.Date(2024, 6, 1, 0, 30, 0, 0, time.UTC),
		EndTime:            &end,
		RegistrationDate:   &regDate,
		BedNumber:          strp("12床"),
		PatientName:        strp("李四"),
		EquipmentCondition: strp("normal"),
		DailyMaintenance:   strp("disinfect"),
		Note:               strp("line one\nline two"),
		CreatedAt:          time.Date(2024, 6, 1, 0, 31, 0, 0, time.UTC),
	}
}

func newTestExportService(repo *fakeExportRepo, batchSize int) *ExportService {
	cfg := &config.Config{}
	cfg.Export.MaxRecords = 50000
	cfg.Export.BatchSize = batchSize
	dicts := NewDictService(&fakeDictRepo{items: []*model.DictItem{
		{DictType: model.DictUsageType, Code: 3, Label: "维修"},
	}})
	return NewExportService(repo, dicts, cfg)
}

func TestCheckCeiling(t *testing.T) {
	repo := &fakeExportRepo{total: 50000}
	svc := newTestExportService(repo, 5000)

	total, err := svc.CheckCeiling(context.Background(), model.UsageFilter{})
	require.NoError(t, err, "exactly at the ceiling is allowed")
	assert.Equal(t, int64(50000), total)

	repo.total = 50001
	_, err = svc.CheckCeiling(context.Background(), model.UsageFilter{})
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrValidation, appErr.Type)
	assert.Contains(t, appErr.Message, "50001")
	assert.Contains(t, appErr.Message, "50000")
}

func TestExportCSV(t *testing.T) {
	repo := &fakeExportRepo{rows: []*model.UsageRecord{sampleRecord()}, total: 1}
	svc := newTestExportService(repo, 5000)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), model.UsageFilter{}, &buf))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}), "missing BOM")

	reader := csv.NewReader(bytes.NewReader(raw[3:]))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ExportHeaders, rows[0])

	row := rows[1]
	assert.Equal(t, "2024-06-01", row[0])
	assert.Equal(t, "2024-06-01 08:31:00", row[1], "submit time rendered on the ward clock")
	assert.Equal(t, "心电图机（ECG-001）", row[2])
	assert.Equal(t, "12床", row[3])
	assert.Equal(t, "2024-06-01 08:30:00", row[6])
	assert.Equal(t, "2024-06-01 09:45:00", row[7])
	assert.Equal(t, "张三", row[8])
	assert.Equal(t, "维修", row[9], "dictionary label applied")
	assert.Equal(t, "正常", row[10])
	assert.Equal(t, "消毒", row[11])
	assert.Equal(t, "line one line two", row[13], "newlines flattened")
}

func TestExportCSVBatches(t *testing.T) {
	rows := make([]*model.UsageRecord, 0, 7)
	for i := 0; i < 7; i++ {
		rec := sampleRecord()
		rec.ID = int64(i + 1)
		rows = append(rows, rec)
	}
	repo := &fakeExportRepo{rows: rows, total: 7}
	svc := newTestExportService(repo, 3)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), model.UsageFilter{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 8, "header plus all seven rows across batches")
}

func TestExportCSVLabelFallbacks(t *testing.T) {
	rec := sampleRecord()
	rec.UsageType = "2" // not in the fake dictionary
	rec.DeviceName = nil
	rec.EndTime = nil
	repo := &fakeExportRepo{rows: []*model.UsageRecord{rec}, total: 1}
	svc := newTestExportService(repo, 5000)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), model.UsageFilter{}, &buf))

	reader := csv.NewReader(bytes.NewReader(buf.Bytes()[3:]))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	row := rows[1]
	assert.Equal(t, "ECG-001", row[2], "bare code when the device has no name")
	assert.Equal(t, "", row[7], "open-ended usage leaves the end column blank")
	assert.Equal(t, "2", row[9], "unmapped code falls back to itself")
}

func TestBuildXLSX(t *testing.T) {
	repo := &fakeExportRepo{rows: []*model.UsageRecord{sampleRecord()}, total: 1}
	svc := newTestExportService(repo, 5000)

	data, err := svc.BuildXLSX(context.Background(), model.UsageFilter{})
	require.NoError(t, err)
	// XLSX is a zip container.
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "not a zip archive")
}

func TestBuildPDF(t *testing.T) {
	repo := &fakeExportRepo{rows: []*model.UsageRecord{sampleRecord()}, total: 1}
	svc := newTestExportService(repo, 5000)
	svc.fontPaths = nil // force the base-font path, host fonts vary

	data, err := svc.BuildPDF(context.Background(), model.UsageFilter{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "not a pdf document")
}
