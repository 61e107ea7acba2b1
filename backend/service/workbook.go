package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/AnTengye/cvintake/backend/pkg/logger"
)

const workbookSheet = "Applications"

// ExportService renders stored applications as an XLSX workbook
type ExportService struct {
	store ApplicationStore
}

func NewExportService(store ApplicationStore) *ExportService {
	return &ExportService{store: store}
}

// ExportXLSX returns every application, newest first, with the same columns
// as the spreadsheet sink plus the review status.
func (s *ExportService) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	apps, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), workbookSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := append(append([]string{}, SheetHeader...), "Status")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(workbookSheet, cell, h)
	}

	for r, app := range apps {
		row := append(SheetRow(app), app.Status)
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(workbookSheet, cell, v)
		}
	}

	_ = f.SetColWidth(workbookSheet, "A", "A", 38) // id
	_ = f.SetColWidth(workbookSheet, "B", "D", 24) // name, email, phone
	_ = f.SetColWidth(workbookSheet, "E", "E", 60) // cv url
	_ = f.SetColWidth(workbookSheet, "F", "F", 22) // submitted at
	_ = f.SetColWidth(workbookSheet, "G", "J", 48) // extracted data

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info(ctx, "applications exported",
		"rows", len(apps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportFileName names the download for the given time
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("applications-%s.xlsx", now.UTC().Format("20060102-150405"))
}
