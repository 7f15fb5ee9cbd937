// Package xlsx renders evaluation reports as Excel workbooks.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

const (
	SummarySheet = "Summary"
	CasesSheet   = "Cases"
)

var caseHeader = []any{
	"Question", "Hit", "Context Relevance", "Answer Relevance", "Faithfulness",
	"Confidence", "Retrieved IDs", "Missing Keywords",
}

// Write renders report into a two-sheet workbook.
func Write(w io.Writer, report domain.EvalReport) error {
	f, err := build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func SaveAs(path string, report domain.EvalReport) error {
	f, err := build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func build(report domain.EvalReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(CasesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"Questions", len(report.Cases)},
		{"Hit Rate", report.HitRate},
		{"Avg Context Relevance", report.AvgContextRelevance},
		{"Avg Answer Relevance", optional(report.AvgAnswerRelevance)},
		{"Avg Faithfulness", optional(report.AvgFaithfulness)},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := setRow(f, CasesSheet, 1, caseHeader); err != nil {
		f.Close()
		return nil, err
	}
	for i, c := range report.Cases {
		row := []any{
			c.Question, c.Hit, c.ContextRelevance, optional(c.AnswerRelevance), optional(c.Faithfulness),
			c.Confidence, strings.Join(c.RetrievedIDs, ", "), strings.Join(c.MissingKeywords, ", "),
		}
		if err := setRow(f, CasesSheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.SetColWidth(CasesSheet, "A", "A", 60); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func optional(v *float64) any {
	if v == nil {
		return "n/a"
	}
	return *v
}
