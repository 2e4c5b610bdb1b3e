package cron

import (
	"testing"
	"time"
)

func TestMatchesEveryTwoMinutes(t *testing.T) {
	want := map[int]bool{}
	for m := 0; m < 60; m++ {
		want[m] = m%2 == 0
	}
	for minute, expect := range want {
		ts := time.Date(2026, 8, 6, 10, minute, 0, 0, time.UTC)
		if got := Matches("*/2 * * * *", ts); got != expect {
			t.Fatalf("minute %d: expected %v, got %v", minute, expect, got)
		}
	}
}

func TestMatchesTopOfHourOnly(t *testing.T) {
	cases := map[int]bool{0: true, 1: false, 30: false, 59: false}
	for minute, expect := range cases {
		ts := time.Date(2026, 8, 6, 10, minute, 0, 0, time.UTC)
		if got := Matches("0 * * * *", ts); got != expect {
			t.Fatalf("minute %d: expected %v, got %v", minute, expect, got)
		}
	}
}

func TestMatchesEveryFifteenMinutes(t *testing.T) {
	for minute := 0; minute < 60; minute++ {
		ts := time.Date(2026, 8, 6, 10, minute, 0, 0, time.UTC)
		want := minute == 0 || minute == 15 || minute == 30 || minute == 45
		if got := Matches("*/15 * * * *", ts); got != want {
			t.Fatalf("minute %d: expected %v, got %v", minute, want, got)
		}
	}
}

func TestMatchesEveryMinute(t *testing.T) {
	ts := time.Date(2026, 8, 6, 10, 37, 0, 0, time.UTC)
	if !Matches("* * * * *", ts) {
		t.Fatal("expected wildcard pattern to always fire")
	}
}

func TestMatchesGarbagePatternNeverFires(t *testing.T) {
	ts := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	if Matches("xyz", ts) {
		t.Fatal("expected malformed pattern to never fire")
	}
}

func TestMatchesNonWildcardNonMinuteFieldNeverFires(t *testing.T) {
	ts := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	if Matches("0 3 * * *", ts) {
		t.Fatal("expected an hour-restricted pattern outside this engine's supported subset to never fire")
	}
}
