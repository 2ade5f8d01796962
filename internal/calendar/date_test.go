package calendar

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateOf_UsesLocation(t *testing.T) {
	t.Parallel()

	seoul := time.FixedZone("KST", 9*60*60)
	instant := time.Date(2025, time.January, 6, 20, 30, 0, 0, time.UTC)

	if got := DateOf(instant, time.UTC); got != New(2025, time.January, 6) {
		t.Fatalf("expected 2025-01-06 in UTC, got %s", got)
	}
	if got := DateOf(instant, seoul); got != New(2025, time.January, 7) {
		t.Fatalf("expected 2025-01-07 in KST, got %s", got)
	}
}

func TestDate_AddMonthsClamped(t *testing.T) {
	t.Parallel()

	start := MustParse("2025-01-31")
	cases := []struct {
		months int
		want   string
	}{
		{0, "2025-01-31"},
		{1, "2025-02-28"},
		{2, "2025-03-31"},
		{3, "2025-04-30"},
		{13, "2026-02-28"},
	}
	for _, tc := range cases {
		if got := start.AddMonthsClamped(tc.months, 31).String(); got != tc.want {
			t.Fatalf("AddMonthsClamped(%d) = %s, want %s", tc.months, got, tc.want)
		}
	}

	leap := MustParse("2024-01-30")
	if got := leap.AddMonthsClamped(1, 30).String(); got != "2024-02-29" {
		t.Fatalf("expected leap day, got %s", got)
	}
}

func TestDate_ParseAndCompare(t *testing.T) {
	t.Parallel()

	if _, err := Parse("2025-13-01"); err == nil {
		t.Fatalf("expected error for invalid month")
	}
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty value")
	}

	a := MustParse("2025-01-06")
	b := a.AddDays(3)
	if !a.Before(b) || !b.After(a) || a.Equal(b) {
		t.Fatalf("unexpected ordering between %s and %s", a, b)
	}
	if a.DaysUntil(b) != 3 {
		t.Fatalf("expected 3 days, got %d", a.DaysUntil(b))
	}
	if a.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", a.Weekday())
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	payload := struct {
		Due Date `json:"due"`
	}{Due: MustParse("2025-02-28")}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"due":"2025-02-28"}` {
		t.Fatalf("unexpected json %s", raw)
	}

	var decoded struct {
		Due Date `json:"due"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Due != payload.Due {
		t.Fatalf("expected %s, got %s", payload.Due, decoded.Due)
	}
}

func TestWeekdays_FormatAndSplit(t *testing.T) {
	t.Parallel()

	days, err := ParseWeekdays([]string{"fri", "Monday", "wed", "mon"})
	if err != nil {
		t.Fatalf("ParseWeekdays: %v", err)
	}
	if got := FormatWeekdays(days); got != "mon,wed,fri" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := SplitWeekdays("mon,wed,fri"); len(got) != 3 || got[0] != time.Monday || got[2] != time.Friday {
		t.Fatalf("unexpected split %v", got)
	}
	if _, err := ParseWeekdays([]string{"funday"}); err == nil {
		t.Fatalf("expected error for unknown weekday")
	}
}
