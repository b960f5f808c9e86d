package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const sheetName = "corpus_counts"

// WriteXLSX exports one row per corpus with the corpus name as index column.
func WriteXLSX(path string, c Cache, order []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, 0, len(Columns)+1)
	header = append(header, "")
	for _, col := range Columns {
		header = append(header, col)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range Rows(c, order) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		s := r.Summary
		values := []any{
			r.Corpus,
			s.NumTexts,
			s.TextsWithDups,
			s.MaxDupsPerText,
			s.AvgDupsPerText,
			s.NumSentences,
			s.AvgDupsPerCorpus,
			r.PercentPerText(),
			r.PercentPerCorpus(),
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %s: %w", r.Corpus, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Columns)+1, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "A", 16); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns) + 1)
	if err := f.SetColWidth(sheetName, "B", lastCol, 20); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
