package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseDateISO(t *testing.T) {
	got, ok := ParseDate("2020-01-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseDateFlaskFormat(t *testing.T) {
	got, ok := NormalizeDate("Wed, 01 Jan 2020 00:00:00 GMT")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != "2020-01-01" {
		t.Fatalf("unexpected date %q", got)
	}
}

func TestParseDateRFC3339TruncatesToDay(t *testing.T) {
	got, ok := NormalizeDate("2021-06-15T18:30:00Z")
	if !ok || got != "2021-06-15" {
		t.Fatalf("unexpected %q ok=%v", got, ok)
	}
}

func TestParseDateUnixMillis(t *testing.T) {
	ms := time.Date(2022, 3, 4, 10, 0, 0, 0, time.UTC).UnixMilli()
	got, ok := NormalizeDate(strconv.FormatInt(ms, 10))
	if !ok || got != "2022-03-04" {
		t.Fatalf("unexpected %q ok=%v", got, ok)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, ok := ParseDate("not a date"); ok {
		t.Fatalf("expected failure")
	}
	if _, ok := ParseDate(""); ok {
		t.Fatalf("expected failure on empty")
	}
}

func TestDaySeries(t *testing.T) {
	from := time.Date(2024, 2, 28, 23, 59, 0, 0, time.UTC)
	got := DaySeries(from, 3)
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	if len(got) != len(want) {
		t.Fatalf("len %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("day %d: got %s want %s", i, got[i], want[i])
		}
	}
	if DaySeries(from, 0) != nil {
		t.Fatalf("expected nil for n=0")
	}
}
