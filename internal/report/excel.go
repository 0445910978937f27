package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"islatel/internal/domain"
)

// ExcelRenderer writes a report payload to an xlsx workbook on disk.
// It is the in-process implementation of domain.ReportRenderer; a PDF
// renderer would consume the same payload.
type ExcelRenderer struct {
	dir    string
	logger *zerolog.Logger
}

func NewExcelRenderer(dir string, logger *zerolog.Logger) *ExcelRenderer {
	return &ExcelRenderer{dir: dir, logger: logger}
}

// Render saves the workbook and returns its path.
func (r *ExcelRenderer) Render(ctx context.Context, report *domain.Report) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Report"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", report.Title)
	_ = f.SetCellValue(sheetName, "A2", fmt.Sprintf("Period: %s", report.Period))
	_ = f.SetCellValue(sheetName, "A3", fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04")))

	_ = f.MergeCell(sheetName, "A1", "G1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	row := 5
	_ = f.SetCellValue(sheetName, cell(0, row), "Total Revenue")
	_ = f.SetCellValue(sheetName, cell(1, row), report.TotalRevenue)
	row++
	_ = f.SetCellValue(sheetName, cell(0, row), "Total Bookings")
	_ = f.SetCellValue(sheetName, cell(1, row), report.TotalBookings)
	row++
	_ = f.SetCellValue(sheetName, cell(0, row), "Avg Conversion (days)")
	_ = f.SetCellValue(sheetName, cell(1, row), report.AvgConversionDays)
	row++
	_ = f.SetCellValue(sheetName, cell(0, row), "Top Lead Getter")
	_ = f.SetCellValue(sheetName, cell(1, row), fmt.Sprintf("%s (%d)", report.TopLeadGetter, report.TopLeadGetterCount))
	row += 2

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	row = r.writeGuestTable(f, sheetName, report, row, headerStyle)
	row = r.writeCategoryTable(f, sheetName, "Channel Performance", report.ChannelRows, row, headerStyle)
	row = r.writeCategoryTable(f, sheetName, "Product Performance", report.ProductRows, row, headerStyle)
	_ = r.writeCategoryTable(f, sheetName, "Staff Performance", report.StaffRows, row, headerStyle)

	_ = f.SetColWidth(sheetName, "A", "A", 22)
	_ = f.SetColWidth(sheetName, "B", "G", 16)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("report_%s.xlsx", report.GeneratedAt.Format("2006-01-02_150405"))
	filePath := filepath.Join(r.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	r.logger.Info().Str("file_path", filePath).Str("period", report.Period).Msg("report workbook created")
	return filePath, nil
}

func (r *ExcelRenderer) writeGuestTable(f *excelize.File, sheet string, report *domain.Report, row int, headerStyle int) int {
	_ = f.SetCellValue(sheet, cell(0, row), "Guests")
	_ = f.SetCellStyle(sheet, cell(0, row), cell(0, row), headerStyle)
	row++

	headers := []string{"Date", "Name", "Product", "Channel", "Staff", "Status", "Revenue"}
	for col, h := range headers {
		_ = f.SetCellValue(sheet, cell(col, row), h)
	}
	_ = f.SetCellStyle(sheet, cell(0, row), cell(len(headers)-1, row), headerStyle)
	row++

	for _, g := range report.GuestRows {
		values := []interface{}{g.Date, g.Name, g.Product, g.Channel, g.Staff, g.Status, g.Revenue}
		for col, v := range values {
			_ = f.SetCellValue(sheet, cell(col, row), v)
		}
		row++
	}
	return row + 1
}

func (r *ExcelRenderer) writeCategoryTable(f *excelize.File, sheet, title string, rows []domain.CategoryRow, row int, headerStyle int) int {
	_ = f.SetCellValue(sheet, cell(0, row), title)
	_ = f.SetCellStyle(sheet, cell(0, row), cell(0, row), headerStyle)
	row++

	headers := []string{"Name", "Leads", "Bookings", "Rate %", "Revenue"}
	for col, h := range headers {
		_ = f.SetCellValue(sheet, cell(col, row), h)
	}
	_ = f.SetCellStyle(sheet, cell(0, row), cell(len(headers)-1, row), headerStyle)
	row++

	for _, c := range rows {
		values := []interface{}{c.Name, c.Leads, c.Bookings, c.Rate, c.Revenue}
		for col, v := range values {
			_ = f.SetCellValue(sheet, cell(col, row), v)
		}
		row++
	}
	return row + 1
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
