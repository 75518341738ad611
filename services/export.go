package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"land_leads_app_go/models"
	"land_leads_app_go/services/leadform"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of inquiry exports
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Excel caps sheet names at 31 characters
const maxSheetName = 31

// BuildInquiriesWorkbook writes one campaign queue to a workbook, newest lead first.
// Columns follow the schema order; values for fields no longer in the schema are kept
// in trailing columns so nothing submitted is lost.
func BuildInquiriesWorkbook(campaign string, schema *leadform.Schema, records []models.SubmissionRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := campaign
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := []string{"ID", "Submitted At"}
	var columns []string
	if schema != nil {
		for _, field := range schema.Fields() {
			headers = append(headers, field.Label)
			columns = append(columns, field.Name)
		}
	}
	for _, extra := range extraFieldNames(schema, records) {
		headers = append(headers, extra)
		columns = append(columns, extra)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for r, rec := range records {
		row := r + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.ID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), rec.SubmittedAt.UTC().Format(time.RFC3339))
		for c, name := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+3, row)
			f.SetCellValue(sheet, cell, rec.Fields[name])
		}
	}

	// Header Style
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)
	f.SetColWidth(sheet, "A", lastCol, 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}
	return buf, nil
}

func extraFieldNames(schema *leadform.Schema, records []models.SubmissionRecord) []string {
	seen := map[string]bool{}
	var extras []string
	for _, rec := range records {
		for name := range rec.Fields {
			if seen[name] {
				continue
			}
			seen[name] = true
			if schema != nil {
				if _, ok := schema.Field(name); ok {
					continue
				}
			}
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	return extras
}

// ArchiveLinkTTL is how long a signed archive download link stays valid
const ArchiveLinkTTL = 15 * time.Minute

// ArchiveInquiries uploads an export workbook for campaign to storage
func ArchiveInquiries(ctx context.Context, storage StorageProvider, campaign string, workbook *bytes.Buffer) (*StorageResult, error) {
	if storage == nil || !storage.IsConfigured() {
		return nil, fmt.Errorf("archive storage is not configured")
	}

	key := GenerateArchiveKey(campaign, time.Now())
	size := int64(workbook.Len())
	result, err := storage.UploadReader(ctx, bytes.NewReader(workbook.Bytes()), key, XLSXContentType, size)
	if err != nil {
		return nil, fmt.Errorf("failed to archive %s inquiries: %w", campaign, err)
	}
	return result, nil
}
