// Package dashboard aggregates recent entries into the listing and totals
// shown by the dashboard command. Pure computation over store rows; the
// control layer renders the result.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tools.zach/dev/timecord/internal/store"
)

// Store is the read side the dashboard needs. Satisfied by [store.Client].
type Store interface {
	FindRecentEntries(ctx context.Context, limit int) ([]store.Entry, error)
}

// Row is one listed interval.
type Row struct {
	Workspace  string
	Start      time.Time
	Duration   time.Duration
	Active     bool
	StopReason string
}

// Stats are aggregate tracked durations over the loaded entries. Today
// covers entries started since local midnight, Week since Monday 00:00
// local, Total everything loaded (bounded by the entry limit).
type Stats struct {
	Today time.Duration
	Week  time.Duration
	Total time.Duration
}

// Report is the built dashboard.
type Report struct {
	Rows  []Row
	Stats Stats
}

// Build loads up to limit recent entries and computes rows and totals.
// An entry still marked active is measured up to now. Rows with unparseable
// timestamps are skipped with a log line rather than failing the build.
func Build(ctx context.Context, s Store, limit int, now time.Time) (*Report, error) {
	entries, err := s.FindRecentEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load dashboard entries: %w", err)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := startOfWeek(now)

	report := &Report{Rows: make([]Row, 0, len(entries))}
	for _, e := range entries {
		start, err := store.ParseTime(e.StartTime)
		if err != nil {
			slog.Warn("skipping entry with bad start time", "entry", e.ID, "error", err)
			continue
		}
		start = start.In(now.Location())

		end := now
		if e.EndTime != nil {
			parsed, err := store.ParseTime(*e.EndTime)
			if err != nil {
				slog.Warn("skipping entry with bad end time", "entry", e.ID, "error", err)
				continue
			}
			end = parsed
		}
		duration := end.Sub(start)
		if duration < 0 {
			duration = 0
		}

		row := Row{
			Workspace: e.WorkspaceName,
			Start:     start,
			Duration:  duration,
			Active:    e.IsActive,
		}
		if e.StopReason != nil {
			row.StopReason = *e.StopReason
		}
		report.Rows = append(report.Rows, row)

		report.Stats.Total += duration
		if !start.Before(dayStart) {
			report.Stats.Today += duration
		}
		if !start.Before(weekStart) {
			report.Stats.Week += duration
		}
	}
	return report, nil
}

// startOfWeek returns Monday 00:00 in now's location.
func startOfWeek(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// FormatDuration renders a duration for the dashboard, e.g. "3h 25m" or
// "45m". Sub-minute durations round down to "0m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Minutes())
	hours := total / 60
	minutes := total % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
