package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/stats"
)

func TestWriteStats(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	reference := time.Date(2025, time.March, 13, 9, 0, 0, 0, loc)
	window, err := stats.NewWindow(stats.KindDaily, reference, loc)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	sessions := []stats.Session{
		{ID: "a", Goal: "study", Kind: stats.SessionFocus, Completed: true, StartedAt: reference, Duration: 25 * time.Minute},
		{ID: "b", Goal: "", Kind: stats.SessionFocus, Completed: false, StartedAt: reference.Add(2 * time.Hour), Duration: 10 * time.Minute},
	}
	summary := stats.Compute(sessions, window, calendar.DateOf(reference, loc))

	var buf bytes.Buffer
	if err := WriteStats(&buf, summary); err != nil {
		t.Fatalf("WriteStats returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 3 || sheets[0] != SummarySheet {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	rows, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if rows[0][0] != "metric" || rows[1][1] != "daily" || rows[2][1] != "2025-03-13" {
		t.Fatalf("unexpected summary rows %v", rows[:3])
	}
	if rows[5][0] != "completed_sessions" || rows[5][1] != "1" {
		t.Fatalf("unexpected completed row %v", rows[5])
	}

	buckets, err := f.GetRows(BucketSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(buckets) != 1+len(summary.Buckets) {
		t.Fatalf("expected %d bucket rows, got %d", 1+len(summary.Buckets), len(buckets))
	}

	goals, err := f.GetRows(GoalSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(goals) != 3 || goals[1][0] != "study" {
		t.Fatalf("unexpected goal rows %v", goals)
	}
}

func TestFilename(t *testing.T) {
	window, err := stats.NewWindow(stats.KindMonthly, time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if got := Filename(stats.Summary{Window: window}); got != "fivlo_monthly_2025-02-01.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
}
