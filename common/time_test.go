package common

import (
	"testing"
	"time"
)

func TestParseWhen(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)

	if got, err := ParseWhen(now, "2025-03-01"); err != nil ||
		got != float64(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Unix()) {
		t.Fatalf("date parse got %v err %v", got, err)
	}
	if got, err := ParseWhen(now, "2d"); err != nil ||
		got != float64(now.AddDate(0, 0, -2).Unix()) {
		t.Fatalf("days parse got %v err %v", got, err)
	}
	if got, err := ParseWhen(now, "1w"); err != nil ||
		got != float64(now.AddDate(0, 0, -7).Unix()) {
		t.Fatalf("weeks parse got %v err %v", got, err)
	}
	if got, err := ParseWhen(now, "2025-03-01T06:00:00Z"); err != nil ||
		got != float64(time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC).Unix()) {
		t.Fatalf("rfc3339 parse got %v err %v", got, err)
	}
	if got, err := ParseWhen(now, "1700000000.5"); err != nil || got != 1700000000.5 {
		t.Fatalf("epoch parse got %v err %v", got, err)
	}
	if _, err := ParseWhen(now, "soon"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationToSeconds(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"5m", 5 * 60},
		{"2h", 2 * 3600},
		{"1d", 24 * 3600},
		{"1w2d3h4m", ((7+2)*24+3)*3600 + 4*60},
	}
	for _, c := range cases {
		got, err := DurationToSeconds("-duration", c.input)
		if err != nil || got != c.want {
			t.Errorf("DurationToSeconds(%q) = %v, %v; want %v", c.input, got, err, c.want)
		}
	}
	if _, err := DurationToSeconds("-duration", "5x"); err == nil {
		t.Fatal("expected parse error")
	}
}
