package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	candidateSheet = "Ranked Candidates"
	failedSheet    = "Failed"
)

var candidateHeaders = []string{
	"Position", "Document", "Similarity", "Weighted Score", "Shown", "Characters", "Words",
	"Fit Score", "Recommendation", "Potential", "Strengths", "Concerns", "Summary", "Analysis Error",
}

// ToXLSX writes the report as a workbook and returns the path it was saved to.
// The Ranked Candidates sheet holds the full ranking, not only shown candidates.
func (r *Report) ToXLSX(path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", err
	}
	for _, name := range []string{candidateSheet, failedSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return "", fmt.Errorf("create header style: %w", err)
	}

	if err := r.writeSummary(f, header); err != nil {
		return "", fmt.Errorf("write summary sheet: %w", err)
	}
	if err := r.writeCandidates(f, header); err != nil {
		return "", fmt.Errorf("write candidates sheet: %w", err)
	}
	if err := r.writeFailed(f, header); err != nil {
		return "", fmt.Errorf("write failed sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	return path, nil
}

func (r *Report) writeSummary(f *excelize.File, header int) error {
	rows := [][]any{
		{"Candidate Ranking Report", ""},
		{"Run ID", r.RunID},
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Job Description", r.JobDescription},
		{"Documents", r.Total},
		{"Ranked", len(r.Ranked)},
		{"Shown", len(r.Shown)},
		{"Failed", len(r.Failed)},
		{"Keyword Weight", r.Weights.KeywordWeight},
		{"Strength Weight", r.Weights.StrengthWeight},
		{"Concern Penalty Weight", r.Weights.ConcernPenaltyWeight},
		{"Potential Weight", r.Weights.PotentialWeight},
	}

	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 60); err != nil {
		return err
	}
	return f.SetCellStyle(summarySheet, "A1", "B1", header)
}

func (r *Report) writeCandidates(f *excelize.File, header int) error {
	shown := make(map[string]bool, len(r.Shown))
	for _, c := range r.Shown {
		shown[c.DocumentID] = true
	}

	rows := [][]any{toAny(candidateHeaders)}
	for _, c := range r.Ranked {
		row := []any{c.Position, c.DocumentID, round(c.Similarity), round(c.WeightedScore), yesNo(shown[c.DocumentID]), c.CharCount, c.WordCount}
		if c.Features != nil {
			row = append(row,
				c.Features.FitScore,
				string(recommendationOf(c)),
				c.Features.Potential,
				strings.Join(c.Features.Strengths, "; "),
				strings.Join(c.Features.Concerns, "; "),
				c.Features.Summary,
			)
		} else {
			row = append(row, "", "", "", "", "", "")
		}
		row = append(row, c.AnalysisError)
		rows = append(rows, row)
	}

	if err := writeRows(f, candidateSheet, rows); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(candidateHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(candidateSheet, "A1", last, header); err != nil {
		return err
	}

	return f.SetPanes(candidateSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (r *Report) writeFailed(f *excelize.File, header int) error {
	rows := [][]any{{"Document", "Error"}}
	for _, failure := range r.Failed {
		msg := ""
		if failure.Err != nil {
			msg = failure.Err.Error()
		}
		rows = append(rows, []any{failure.DocumentID, msg})
	}

	if err := writeRows(f, failedSheet, rows); err != nil {
		return err
	}
	return f.SetCellStyle(failedSheet, "A1", "B1", header)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
