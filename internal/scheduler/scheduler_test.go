package scheduler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/crucial707/irrigation/internal/models"
	"github.com/crucial707/irrigation/internal/repo"
)

func oneOff(dates, times []string, minutes int, status models.Status) models.Irrigation {
	return models.Irrigation{
		Times:         times,
		Days:          []string{},
		SpecificDates: dates,
		Duration:      minutes,
		Status:        status,
	}
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNextStatus(t *testing.T) {
	rec := oneOff([]string{"2025-07-09"}, []string{"18:00", "20:00"}, 30, models.StatusPending)

	cases := []struct {
		name   string
		rec    models.Irrigation
		now    time.Time
		want   models.Status
		wantOK bool
	}{
		{"before first window", rec, at("2025-07-09 17:59"), "", false},
		{"inside first window", rec, at("2025-07-09 18:10"), models.StatusInProgress, true},
		{"between windows keeps status", rec, at("2025-07-09 19:00"), "", false},
		{"inside last window", rec, at("2025-07-09 20:29"), models.StatusInProgress, true},
		{"after last window", rec, at("2025-07-09 20:30"), models.StatusCompleted, true},
		{"already in progress", oneOff([]string{"2025-07-09"}, []string{"18:00"}, 30, models.StatusInProgress), at("2025-07-09 18:05"), "", false},
		{"completed is terminal", oneOff([]string{"2025-07-09"}, []string{"18:00"}, 30, models.StatusCompleted), at("2024-01-01 00:00"), "", false},
		{"recurring untouched", models.Irrigation{Times: []string{"06:00"}, Days: []string{"Mon"}, Duration: 5, Status: models.StatusPending}, at("2030-01-01 00:00"), "", false},
		{"unparseable time", oneOff([]string{"2025-07-09"}, []string{"evening"}, 30, models.StatusPending), at("2030-01-01 00:00"), "", false},
		{"duration out of range", oneOff([]string{"2025-07-09"}, []string{"18:00"}, math.MaxInt, models.StatusPending), at("2025-07-09 18:10"), "", false},
		{"seconds in time", oneOff([]string{"2025-07-09"}, []string{"18:00:00"}, 30, models.StatusPending), at("2025-07-09 18:29"), models.StatusInProgress, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NextStatus(tc.rec, tc.now, time.UTC)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("NextStatus: got (%q, %v), want (%q, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestNextStatus_UsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	rec := oneOff([]string{"2025-07-09"}, []string{"18:00"}, 30, models.StatusPending)

	// 18:10 in UTC-3 is 21:10 UTC.
	now := time.Date(2025, 7, 9, 21, 10, 0, 0, time.UTC)
	got, ok := NextStatus(rec, now, loc)
	if !ok || got != models.StatusInProgress {
		t.Errorf("NextStatus: got (%q, %v), want InProgress", got, ok)
	}
}

func TestSweeper_Sweep(t *testing.T) {
	store := repo.NewMemoryIrrigationRepo()
	ctx := context.Background()
	doneID, _ := store.Push(ctx, oneOff([]string{"2025-07-09"}, []string{"06:00"}, 10, models.StatusPending))
	runningID, _ := store.Push(ctx, oneOff([]string{"2025-07-10"}, []string{"12:00"}, 60, models.StatusPending))
	futureID, _ := store.Push(ctx, oneOff([]string{"2025-08-01"}, []string{"12:00"}, 60, models.StatusPending))

	s := NewSweeper(store, time.UTC, nil)
	s.Now = func() time.Time { return at("2025-07-10 12:30") }

	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("transitions: got %d, want 2", n)
	}

	want := map[string]models.Status{
		doneID:    models.StatusCompleted,
		runningID: models.StatusInProgress,
		futureID:  models.StatusPending,
	}
	for id, status := range want {
		rec, _ := store.Get(ctx, id)
		if rec.Status != status {
			t.Errorf("%s: got %q, want %q", id, rec.Status, status)
		}
	}

	// A second sweep at the same instant changes nothing.
	if n, _ := s.Sweep(ctx); n != 0 {
		t.Errorf("second sweep transitions: got %d, want 0", n)
	}
}

type listFails struct{ repo.IrrigationStore }

func (listFails) List(context.Context) (map[string]models.Irrigation, error) {
	return nil, errors.New("unavailable")
}

func TestSweeper_Sweep_ListError(t *testing.T) {
	s := NewSweeper(listFails{repo.NewMemoryIrrigationRepo()}, time.UTC, nil)
	if _, err := s.Sweep(context.Background()); err == nil {
		t.Fatal("Sweep: expected error")
	}
}

func TestRun_InvalidSpec(t *testing.T) {
	s := NewSweeper(repo.NewMemoryIrrigationRepo(), time.UTC, nil)
	if err := Run(context.Background(), "not a spec", s); err == nil {
		t.Fatal("Run: expected error for invalid spec")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := NewSweeper(repo.NewMemoryIrrigationRepo(), time.UTC, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "@every 1h", s) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// editAfterList applies edit right after List returns, like a PUT racing the sweep.
type editAfterList struct {
	*repo.MemoryIrrigationRepo
	edit func()
}

func (s editAfterList) List(ctx context.Context) (map[string]models.Irrigation, error) {
	list, err := s.MemoryIrrigationRepo.List(ctx)
	s.edit()
	return list, err
}

func TestSweeper_Sweep_KeepsConcurrentEdit(t *testing.T) {
	mem := repo.NewMemoryIrrigationRepo()
	ctx := context.Background()
	id, _ := mem.Push(ctx, oneOff([]string{"2025-07-09"}, []string{"06:00"}, 10, models.StatusPending))

	edited := oneOff([]string{"2025-08-01"}, []string{"07:00"}, 15, models.StatusPending)
	store := editAfterList{mem, func() { mem.Update(ctx, id, edited) }}

	s := NewSweeper(store, time.UTC, nil)
	s.Now = func() time.Time { return at("2025-07-10 12:00") }

	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("transitions: got %d, want 0", n)
	}
	rec, _ := mem.Get(ctx, id)
	if rec.Status != models.StatusPending || rec.SpecificDates[0] != "2025-08-01" || rec.Duration != 15 {
		t.Errorf("concurrent edit lost: %+v", rec)
	}
}

func TestSweeper_Sweep_OnlyTouchesStatus(t *testing.T) {
	mem := repo.NewMemoryIrrigationRepo()
	ctx := context.Background()
	id, _ := mem.Push(ctx, oneOff([]string{"2025-07-09"}, []string{"06:00"}, 10, models.StatusPending))

	// The edit keeps the record due but changes its times; the sweep must not revert them.
	edited := oneOff([]string{"2025-07-09"}, []string{"05:00", "06:00"}, 10, models.StatusPending)
	store := editAfterList{mem, func() { mem.Update(ctx, id, edited) }}

	s := NewSweeper(store, time.UTC, nil)
	s.Now = func() time.Time { return at("2025-07-10 12:00") }
	if n, _ := s.Sweep(ctx); n != 1 {
		t.Fatalf("transitions: got %d, want 1", n)
	}
	rec, _ := mem.Get(ctx, id)
	if rec.Status != models.StatusCompleted || len(rec.Times) != 2 {
		t.Errorf("unexpected record %+v", rec)
	}
}
