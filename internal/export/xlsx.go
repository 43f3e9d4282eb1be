package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/chpollin/depcha-dashboard/internal/pipeline"
)

// Workbook sheet names.
const (
	SheetTransactions = "Transactions"
	SheetTraders      = "Traders"
	SheetTimeSeries   = "TimeSeries"
	SheetBooks        = "Books"
)

type sheet struct {
	name    string
	headers []string
	records [][]string
	numeric map[int]bool
}

// WriteWorkbook renders an analysis as an XLSX workbook with one sheet per
// view. Count and value columns are stored as numbers.
func WriteWorkbook(w io.Writer, a pipeline.Analysis) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []sheet{
		{name: SheetTransactions, headers: TransactionHeaders, records: TransactionRecords(a.Transactions), numeric: map[int]bool{5: true}},
		{name: SheetTraders, headers: TraderHeaders, records: TraderRecords(a.TopTraders), numeric: map[int]bool{0: true, 3: true, 4: true, 5: true}},
		{name: SheetTimeSeries, headers: TimeSeriesHeaders, records: TimeSeriesRecords(a.TimeSeries), numeric: map[int]bool{1: true, 2: true, 3: true}},
		{name: SheetBooks, headers: BookHeaders, records: BookRecords(a.BookStatistics), numeric: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}},
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	header := make([]any, len(s.headers))
	for i, h := range s.headers {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", s.name, err)
	}
	end, err := excelize.CoordinatesToCellName(len(s.headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", end, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", s.name, err)
	}

	for r, record := range s.records {
		row := make([]any, len(record))
		for c, cell := range record {
			row[c] = cellValue(cell, s.numeric[c])
		}
		start, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, start, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", s.name, r+1, err)
		}
	}
	return nil
}

func cellValue(cell string, numeric bool) any {
	if !numeric || cell == "" {
		return cell
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}
