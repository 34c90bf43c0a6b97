package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/medscan/scangate/internal/config"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// ExportHeaders is the fixed, ordered column set of the usage-record export.
var ExportHeaders = []string{
	"登记日期", "实际登记时间", "设备", "床号", "ID号", "姓名", "开机时间", "关机时间",
	"维护人", "使用类型", "设备状况", "日常保养", "终末消毒", "备注",
}

// utf8BOM keeps Excel happy when it opens the CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type ExportService struct {
	usage      UsageRepo
	dicts      *DictService
	maxRecords int
	batchSize  int
	fontPaths  []string
}

func NewExportService(usage UsageRepo, dicts *DictService, cfg *config.Config) *ExportService {
	maxRecords, batchSize := 50000, 5000
	var fontPaths []string
	if cfg != nil {
		if cfg.Export.MaxRecords > 0 {
			maxRecords = cfg.Export.MaxRecords
		}
		if cfg.Export.BatchSize > 0 {
			batchSize = cfg.Export.BatchSize
		}
		fontPaths = cfg.Export.FontPaths
	}
	return &ExportService{
		usage:      usage,
		dicts:      dicts,
		maxRecords: maxRecords,
		batchSize:  batchSize,
		fontPaths:  fontPaths,
	}
}

func (s *ExportService) MaxRecords() int { return s.maxRecords }

// CheckCeiling counts the predicate and rejects oversized exports before any
// file generation starts.
func (s *ExportService) CheckCeiling(ctx context.Context, f model.UsageFilter) (int64, error) {
	total, err := s.usage.Count(ctx, f)
	if err != nil {
		return 0, apperrors.Wrap(err)
	}
	if total > int64(s.maxRecords) {
		return total, apperrors.NewValidation(fmt.Sprintf(
			"符合条件记录共 %d 条，超过单次导出上限 %d 条，请缩小时间范围或筛选条件后导出。",
			total, s.maxRecords))
	}
	return total, nil
}

// ExportCSV streams the export: BOM, header row, then batches of rows so the
// peak memory stays bounded regardless of the result size.
func (s *ExportService) ExportCSV(ctx context.Context, f model.UsageFilter, w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeaders); err != nil {
		return err
	}
	cw.Flush()

	labels := s.dicts.UsageTypeLabels(ctx)
	offset := 0
	for offset < s.maxRecords {
		batch, err := s.usage.List(ctx, f, s.batchSize, offset)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for _, rec := range batch {
			if err := cw.Write(recordToRow(rec, labels)); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		offset += len(batch)
		if len(batch) < s.batchSize {
			break
		}
	}
	return nil
}

// BuildXLSX renders the full result set into a single workbook.
func (s *ExportService) BuildXLSX(ctx context.Context, f model.UsageFilter) ([]byte, error) {
	records, err := s.fetchAll(ctx, f)
	if err != nil {
		return nil, err
	}
	labels := s.dicts.UsageTypeLabels(ctx)

	wb := excelize.NewFile()
	defer wb.Close()

	const sheet = "使用记录"
	index, err := wb.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	wb.DeleteSheet("Sheet1")
	wb.SetActiveSheet(index)

	headerStyle, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	for col, h := range ExportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := wb.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
		if err := wb.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for rowIdx, rec := range records {
		for colIdx, val := range recordToRow(rec, labels) {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := wb.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the full result set as a landscape table. A CJK-capable
// font is loaded from the configured candidate paths when one exists;
// otherwise the built-in base font is used and non-Latin text will not render
// correctly. That degradation is accepted, the export itself never fails over
// a font.
func (s *ExportService) BuildPDF(ctx context.Context, f model.UsageFilter) ([]byte, error) {
	records, err := s.fetchAll(ctx, f)
	if err != nil {
		return nil, err
	}
	labels := s.dicts.UsageTypeLabels(ctx)

	pdf := fpdf.New("L", "mm", "A4", "")
	font := "Helvetica"
	for _, path := range s.fontPaths {
		// .ttc collections are not supported by the UTF-8 loader.
		if strings.HasSuffix(strings.ToLower(path), ".ttc") {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		pdf.AddUTF8Font("cjk", "", path)
		if pdf.Err() {
			logger.Warn("failed to load export font, trying next candidate", "path", path)
			pdf = fpdf.New("L", "mm", "A4", "")
			continue
		}
		font = "cjk"
		break
	}
	if font == "Helvetica" {
		logger.Warn("no CJK-capable font available, pdf export falls back to base font")
	}

	pdf.AddPage()
	pdf.SetFont(font, "", 14)
	pdf.CellFormat(0, 10, "使用记录导出", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(ExportHeaders))

	pdf.SetFont(font, "", 9)
	pdf.SetFillColor(224, 242, 241)
	for _, h := range ExportHeaders {
		pdf.CellFormat(colWidth, 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	for _, rec := range records {
		for _, val := range recordToRow(rec, labels) {
			pdf.CellFormat(colWidth, 6, val, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) fetchAll(ctx context.Context, f model.UsageFilter) ([]*model.UsageRecord, error) {
	records := make([]*model.UsageRecord, 0, s.batchSize)
	offset := 0
	for offset < s.maxRecords {
		batch, err := s.usage.List(ctx, f, s.batchSize, offset)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		records = append(records, batch...)
		offset += len(batch)
		if len(batch) < s.batchSize {
			break
		}
	}
	return records, nil
}

func deviceDisplay(rec *model.UsageRecord) string {
	if rec.DeviceName != nil && *rec.DeviceName != "" {
		return *rec.DeviceName + "（" + rec.DeviceCode + "）"
	}
	return rec.DeviceCode
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func flattenText(s *string) string {
	return strings.ReplaceAll(derefOr(s, ""), "\n", " ")
}

// recordToRow renders one export row in the ExportHeaders column order.
func recordToRow(rec *model.UsageRecord, usageTypeLabels map[string]string) []string {
	regDate := ""
	if rec.RegistrationDate != nil && !rec.RegistrationDate.IsZero() {
		regDate = rec.RegistrationDate.String()
	}

	submittedAt := rec.CreatedAt
	if submittedAt.IsZero() {
		submittedAt = rec.StartTime
	}

	usageType := rec.UsageType
	if label, ok := usageTypeLabels[usageType]; ok {
		usageType = label
	}

	return []string{
		regDate,
		localtime.RenderLocal(submittedAt, localtime.DisplayDateTimeFormat),
		deviceDisplay(rec),
		derefOr(rec.BedNumber, ""),
		derefOr(rec.IDNumber, ""),
		derefOr(rec.PatientName, ""),
		localtime.RenderLocal(rec.StartTime, localtime.DisplayDateTimeFormat),
		localtime.RenderLocalPtr(rec.EndTime, localtime.DisplayDateTimeFormat),
		derefOr(rec.UserName, ""),
		usageType,
		EquipmentConditionLabel(derefOr(rec.EquipmentCondition, "")),
		DailyMaintenanceLabel(derefOr(rec.DailyMaintenance, "")),
		flattenText(rec.TerminalDisinfection),
		flattenText(rec.Note),
	}
}
