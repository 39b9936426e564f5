// Package scheduler runs the status sweeper: a cron job that moves one-off irrigation
// records from Pending to InProgress to Completed as their time windows pass.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crucial707/irrigation/internal/metrics"
	"github.com/crucial707/irrigation/internal/models"
	"github.com/crucial707/irrigation/internal/repo"
	"github.com/robfig/cron/v3"
)

// Sweeper advances record statuses against the wall clock.
type Sweeper struct {
	Store    repo.IrrigationStore
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewSweeper returns a Sweeper reading dates and times in loc.
func NewSweeper(store repo.IrrigationStore, loc *time.Location, logger *slog.Logger) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{Store: store, Location: loc, Now: time.Now, Logger: logger}
}

// Sweep applies every pending status change once and returns how many records changed.
// Each candidate is re-read before it is touched and only its status is written, guarded
// by the status it was read with, so a concurrent edit is never overwritten. A failed
// update is logged and skipped; the record is retried on the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	list, err := s.Store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list irrigation: %w", err)
	}
	now := s.Now()
	changed := 0
	for id, rec := range list {
		if _, ok := NextStatus(rec, now, s.Location); !ok {
			continue
		}
		ok, err := s.advance(ctx, id, now)
		if err != nil {
			s.Logger.Warn("status sweep: update failed", "id", id, "error", err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// advance re-reads record id and moves it to the status it should have at now.
func (s *Sweeper) advance(ctx context.Context, id string, now time.Time) (bool, error) {
	current, err := s.Store.Get(ctx, id)
	if err != nil || current == nil {
		return false, err
	}
	next, ok := NextStatus(*current, now, s.Location)
	if !ok {
		return false, nil
	}
	ok, err = s.Store.SetStatus(ctx, id, current.Status, next)
	if err != nil || !ok {
		return false, err
	}
	metrics.IncStatusTransition(string(next))
	s.Logger.Info("status sweep: transition", "id", id, "from", current.Status, "to", next)
	return true, nil
}

// NextStatus computes the status a one-off record should have at now. ok is false when
// the status should stay as it is: recurring records, completed records, records without
// dates or times, records with an out-of-range duration, and records whose dates or times
// do not parse.
func NextStatus(rec models.Irrigation, now time.Time, loc *time.Location) (models.Status, bool) {
	if rec.Recurring() || rec.Status == models.StatusCompleted {
		return "", false
	}
	if len(rec.SpecificDates) == 0 || len(rec.Times) == 0 || rec.Duration < 1 || rec.Duration > models.MaxDuration {
		return "", false
	}
	length := time.Duration(rec.Duration) * time.Minute

	var last time.Time
	running := false
	for _, date := range rec.SpecificDates {
		for _, clock := range rec.Times {
			start, err := parseSlot(date, clock, loc)
			if err != nil {
				return "", false
			}
			end := start.Add(length)
			if end.After(last) {
				last = end
			}
			if !now.Before(start) && now.Before(end) {
				running = true
			}
		}
	}

	next := rec.Status
	switch {
	case !now.Before(last):
		next = models.StatusCompleted
	case running:
		next = models.StatusInProgress
	}
	if next == rec.Status {
		return "", false
	}
	return next, true
}

var clockLayouts = []string{"15:04", "15:04:05"}

func parseSlot(date, clock string, loc *time.Location) (time.Time, error) {
	var err error
	for _, layout := range clockLayouts {
		var t time.Time
		t, err = time.ParseInLocation("2006-01-02 "+layout, date+" "+clock, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Run sweeps on the cron spec until ctx is cancelled. Overlapping sweeps are skipped.
// It returns an error only when spec does not parse.
func Run(ctx context.Context, spec string, s *Sweeper) error {
	cronLog := cron.PrintfLogger(slog.NewLogLogger(s.Logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(s.Location),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(spec, func() {
		if n, err := s.Sweep(ctx); err != nil {
			s.Logger.Warn("status sweep failed", "error", err)
		} else if n > 0 {
			s.Logger.Debug("status sweep done", "transitions", n)
		}
	}); err != nil {
		return fmt.Errorf("status sweep spec %q: %w", spec, err)
	}

	s.Logger.Info("status sweeper started", "spec", spec, "location", s.Location.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
