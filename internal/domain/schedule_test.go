package domain

import (
	"strings"
	"testing"
	"time"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func testSettings() Settings {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Settings{
		UserID:      "user-1",
		Language:    "en",
		BuddyName:   "Smokey",
		Gender:      GenderMan,
		StartDate:   start,
		MorningTime: "08:00",
		EveningTime: "21:00",
		Timezone:    "UTC",
		Enabled:     true,
	}
}

func findRecord(batch []Notification, templateID string) (Notification, bool) {
	for _, n := range batch {
		if n.TemplateID == templateID {
			return n, true
		}
	}
	return Notification{}, false
}

func TestBuildSchedule_DaySlotResolution(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()

	batch := BuildSchedule(cat, s, s.StartDate)

	rec, ok := findRecord(batch, "day_7_morning")
	if !ok {
		t.Fatal("day 7 morning record missing")
	}
	// Day 7 = start + 6 days, at the morning clock time.
	want := time.Date(2024, time.January, 7, 8, 0, 0, 0, time.UTC)
	if !rec.ScheduledAt.Equal(want) {
		t.Fatalf("want %v, got %v", want, rec.ScheduledAt)
	}

	eve, ok := findRecord(batch, "day_1_evening")
	if !ok {
		t.Fatal("day 1 evening record missing")
	}
	wantEve := time.Date(2024, time.January, 1, 21, 0, 0, 0, time.UTC)
	if !eve.ScheduledAt.Equal(wantEve) {
		t.Fatalf("want %v, got %v", wantEve, eve.ScheduledAt)
	}
}

func TestBuildSchedule_TimezoneResolution(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	s.Timezone = "Europe/Moscow" // UTC+3, no DST

	batch := BuildSchedule(cat, s, s.StartDate)

	rec, ok := findRecord(batch, "day_7_morning")
	if !ok {
		t.Fatal("day 7 morning record missing")
	}
	// 08:00 MSK on Jan 7 (start Jan 1 00:00 UTC = Jan 1 03:00 MSK) is 05:00 UTC.
	want := time.Date(2024, time.January, 7, 5, 0, 0, 0, time.UTC)
	if !rec.ScheduledAt.Equal(want) {
		t.Fatalf("want %v, got %v", want, rec.ScheduledAt)
	}
}

func TestBuildSchedule_NoPastSlots(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	now := s.StartDate.Add(10*24*time.Hour + 13*time.Hour) // day 11, afternoon

	for _, n := range BuildSchedule(cat, s, now) {
		if !n.ScheduledAt.After(now) {
			t.Fatalf("record %s scheduled at %v, not after now %v", n.ID, n.ScheduledAt, now)
		}
	}
}

func TestBuildSchedule_WelcomeOnFirstRun(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	now := s.StartDate

	batch := BuildSchedule(cat, s, now)

	var welcomes []Notification
	for _, n := range batch {
		if n.TemplateID == WelcomeTemplateID {
			welcomes = append(welcomes, n)
		}
	}
	if len(welcomes) != 1 {
		t.Fatalf("want exactly one welcome record, got %d", len(welcomes))
	}
	w := welcomes[0]
	if !w.ScheduledAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("welcome scheduled at %v, want %v", w.ScheduledAt, now.Add(time.Hour))
	}
	if strings.Contains(w.Message, "{{buddy_name}}") {
		t.Fatalf("unresolved placeholder in %q", w.Message)
	}
	if !strings.Contains(w.Message, "Smokey") {
		t.Fatalf("buddy name missing from %q", w.Message)
	}
}

func TestBuildSchedule_NoWelcomeAfterFirstDay(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	now := s.StartDate.Add(48 * time.Hour)

	if _, ok := findRecord(BuildSchedule(cat, s, now), WelcomeTemplateID); ok {
		t.Fatal("welcome record generated past day 0")
	}
}

func TestBuildSchedule_DeterministicIDs(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	now := s.StartDate

	first := BuildSchedule(cat, s, now)
	second := BuildSchedule(cat, s, now)
	if len(first) != len(second) {
		t.Fatalf("run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ids differ at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
		want := s.UserID + "_" + first[i].TemplateID
		if first[i].ID != want {
			t.Fatalf("id %s, want %s", first[i].ID, want)
		}
	}
}

func TestBuildSchedule_BuddyLookup(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	s.BuddyID = "llama"

	rec, ok := findRecord(BuildSchedule(cat, s, s.StartDate), "day_1_morning")
	if !ok {
		t.Fatal("day 1 morning record missing")
	}
	if !strings.Contains(rec.Message, "Lou the Llama") {
		t.Fatalf("buddy not resolved from id: %q", rec.Message)
	}
}

func TestBuildSchedule_BuddyFallback(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	s.BuddyID = "no-such-buddy"

	rec, ok := findRecord(BuildSchedule(cat, s, s.StartDate), "day_1_morning")
	if !ok {
		t.Fatal("day 1 morning record missing")
	}
	if !strings.Contains(rec.Message, "Smokey") {
		t.Fatalf("missing fallback buddy name in %q", rec.Message)
	}
}

func TestBuildSchedule_Disabled(t *testing.T) {
	cat := mustCatalog(t)
	s := testSettings()
	s.Enabled = false

	if batch := BuildSchedule(cat, s, s.StartDate); len(batch) != 0 {
		t.Fatalf("disabled settings produced %d records", len(batch))
	}
}
