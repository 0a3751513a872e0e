package analytics

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var (
	stageHeaders     = []string{"Stage", "Total", "Passed", "Failed", "Rework", "Pending", "Pass %", "Fail %", "Rework %", "Avg Score"}
	inspectorHeaders = []string{"Inspector", "Total", "Passed", "Failed", "Rework", "Pending", "Pass %", "Fail %", "Rework %", "Avg Score", "Per Day"}
	trendHeaders     = []string{"Date", "Total", "Passed", "Failed", "Rework", "Pending", "Pass %", "Fail %", "Rework %", "Avg Score"}
)

// Sheet names in the exported workbook.
const (
	SheetOverview   = "Overview"
	SheetStages     = "Stages"
	SheetInspectors = "Inspectors"
	SheetTrend      = "Trend"
)

// Workbook renders a report as an Excel workbook.
func Workbook(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		f.Close()
		return nil, fmt.Errorf("analytics: export: %w", err)
	}
	for _, name := range []string{SheetStages, SheetInspectors, SheetTrend} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("analytics: export: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("analytics: export style: %w", err)
	}

	overview := [][]interface{}{
		{"Range start", r.Start.Format("2006-01-02 15:04")},
		{"Range end", r.End.Format("2006-01-02 15:04")},
		{"Total", r.Overview.Total},
		{"Passed", r.Overview.Passed},
		{"Failed", r.Overview.Failed},
		{"Rework", r.Overview.Rework},
		{"Pending", r.Overview.Pending},
		{"Pass %", r.Overview.PassRate},
		{"Fail %", r.Overview.FailRate},
		{"Rework %", r.Overview.ReworkRate},
		{"Avg Score", r.Overview.AverageScore},
	}
	for i, row := range overview {
		if err := f.SetSheetRow(SheetOverview, fmt.Sprintf("A%d", i+1), &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("analytics: export overview: %w", err)
		}
	}
	f.SetCellStyle(SheetOverview, "A1", fmt.Sprintf("A%d", len(overview)), bold)
	f.SetColWidth(SheetOverview, "A", "A", 14)
	f.SetColWidth(SheetOverview, "B", "B", 18)

	var stageRows [][]interface{}
	for _, s := range r.Stages {
		stageRows = append(stageRows, append([]interface{}{string(s.Stage)}, countCells(s.Counts)...))
	}
	var inspectorRows [][]interface{}
	for _, in := range r.Inspectors {
		row := append([]interface{}{in.InspectorID}, countCells(in.Counts)...)
		inspectorRows = append(inspectorRows, append(row, in.Efficiency))
	}
	var trendRows [][]interface{}
	for _, p := range r.Trend {
		trendRows = append(trendRows, append([]interface{}{p.Date}, countCells(p.Counts)...))
	}

	tables := []struct {
		sheet   string
		headers []string
		rows    [][]interface{}
	}{
		{SheetStages, stageHeaders, stageRows},
		{SheetInspectors, inspectorHeaders, inspectorRows},
		{SheetTrend, trendHeaders, trendRows},
	}
	for _, tbl := range tables {
		if err := writeTable(f, tbl.sheet, tbl.headers, tbl.rows, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Export writes the report workbook to w.
func Export(w io.Writer, r *Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("analytics: write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("analytics: export %s header: %w", sheet, err)
		}
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	for i, row := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("analytics: export %s row %d: %w", sheet, i+1, err)
		}
	}
	first, _ := excelize.ColumnNumberToName(1)
	f.SetColWidth(sheet, first, first, 16)
	return nil
}

func countCells(c Counts) []interface{} {
	return []interface{}{c.Total, c.Passed, c.Failed, c.Rework, c.Pending, c.PassRate, c.FailRate, c.ReworkRate, c.AverageScore}
}
