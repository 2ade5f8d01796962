// Package report renders statistics summaries as spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/gumwoo/fivlo/internal/stats"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names in the generated workbook.
const (
	SummarySheet = "Summary"
	BucketSheet  = "Buckets"
	GoalSheet    = "Goals"
)

// Filename returns the attachment name for summary.
func Filename(summary stats.Summary) string {
	return fmt.Sprintf("fivlo_%s_%s.xlsx", summary.Window.Kind, summary.Window.FirstDay())
}

// WriteStats writes summary as an xlsx workbook with one sheet for the
// totals, one per bucket row and one per goal row.
func WriteStats(w io.Writer, summary stats.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SummarySheet)
	if err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}

	optimal := ""
	if summary.OptimalFocus != nil {
		optimal = summary.OptimalFocus.Label
	}
	totals := [][]any{
		{"period", string(summary.Window.Kind)},
		{"from", summary.Window.FirstDay().String()},
		{"to", summary.Window.LastDay().String()},
		{"total_sessions", summary.TotalSessions},
		{"completed_sessions", summary.CompletedSessions},
		{"break_sessions", summary.BreakSessions},
		{"focus_minutes", minutes(summary.TotalFocusTime.Minutes())},
		{"average_session_minutes", minutes(summary.AverageSessionLength.Minutes())},
		{"completion_rate", summary.CompletionRate},
		{"optimal_focus", optimal},
		{"longest_streak", summary.LongestStreak},
		{"current_streak", summary.CurrentStreak},
	}
	if err := writeRows(f, SummarySheet, []string{"metric", "value"}, totals); err != nil {
		return err
	}

	if _, err := f.NewSheet(BucketSheet); err != nil {
		return fmt.Errorf("create bucket sheet: %w", err)
	}
	buckets := make([][]any, 0, len(summary.Buckets))
	for _, b := range summary.Buckets {
		buckets = append(buckets, []any{b.Label, b.Sessions, b.CompletedSessions, minutes(b.FocusTime.Minutes())})
	}
	if err := writeRows(f, BucketSheet, []string{"bucket", "sessions", "completed", "focus_minutes"}, buckets); err != nil {
		return err
	}

	if _, err := f.NewSheet(GoalSheet); err != nil {
		return fmt.Errorf("create goal sheet: %w", err)
	}
	goals := make([][]any, 0, len(summary.Goals))
	for _, g := range summary.Goals {
		goals = append(goals, []any{g.Goal, g.Sessions, minutes(g.FocusTime.Minutes())})
	}
	if err := writeRows(f, GoalSheet, []string{"goal", "sessions", "focus_minutes"}, goals); err != nil {
		return err
	}

	f.SetColWidth(SummarySheet, "A", "A", 24)
	f.SetColWidth(BucketSheet, "A", "A", 12)
	f.SetColWidth(GoalSheet, "A", "A", 30)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]any) error {
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
	}
	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
			}
		}
	}
	return nil
}

// minutes rounds to one decimal place.
func minutes(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
