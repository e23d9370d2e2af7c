package divedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/osamu-dazaai/garmin-freediving-coach/internal/dive"
)

// InsertLabelEvent appends one trusted label to the event log.
func (db *DiveDB) InsertLabelEvent(ctx context.Context, ev dive.LabelEvent) error {
	return insertLabelEvent(ctx, db.DB, ev)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLabelEvent(ctx context.Context, ex execer, ev dive.LabelEvent) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO label_events (
			event_id, dive_id, user_id,
			discipline, lung_volume, discipline_source, lung_volume_source,
			avg_hr, avg_descent_rate, bottom_duration, total_duration,
			recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID.String(), ev.DiveID.String(), ev.UserID,
		string(ev.Discipline), string(ev.LungVolume),
		string(ev.DisciplineSource), string(ev.LungVolumeSource),
		nullFloat(ev.AvgHR), ev.AvgDescentRate, ev.BottomDuration, ev.TotalDuration,
		ev.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert label event %s: %w", ev.EventID, err)
	}
	return nil
}

// ListLabelEvents returns a user's active (non-replaced) label events
// in arrival order, the replay input for baseline recomputation.
func (db *DiveDB) ListLabelEvents(ctx context.Context, userID string) ([]dive.LabelEvent, error) {
	return db.labelEventsWhere(ctx, `user_id = ? AND replaced_by IS NULL`, userID)
}

// GetLabelEventForDive returns the active event for a dive, if any.
func (db *DiveDB) GetLabelEventForDive(ctx context.Context, diveID uuid.UUID) (*dive.LabelEvent, bool, error) {
	events, err := db.labelEventsWhere(ctx, `dive_id = ? AND replaced_by IS NULL`, diveID.String())
	if err != nil {
		return nil, false, err
	}
	if len(events) == 0 {
		return nil, false, nil
	}
	return &events[len(events)-1], true, nil
}

func (db *DiveDB) labelEventsWhere(ctx context.Context, where string, args ...any) ([]dive.LabelEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_id, dive_id, user_id,
			discipline, lung_volume, discipline_source, lung_volume_source,
			avg_hr, avg_descent_rate, bottom_duration, total_duration,
			recorded_at
		FROM label_events
		WHERE `+where+`
		ORDER BY recorded_at, event_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query label events: %w", err)
	}
	defer rows.Close()

	var out []dive.LabelEvent
	for rows.Next() {
		var ev dive.LabelEvent
		var eventID, diveID string
		var avgHR sql.NullFloat64
		var disc, lung, discSrc, lungSrc sql.NullString
		if err := rows.Scan(
			&eventID, &diveID, &ev.UserID,
			&disc, &lung, &discSrc, &lungSrc,
			&avgHR, &ev.AvgDescentRate, &ev.BottomDuration, &ev.TotalDuration,
			&ev.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan label event: %w", err)
		}
		if ev.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("bad event_id %q: %w", eventID, err)
		}
		if ev.DiveID, err = uuid.Parse(diveID); err != nil {
			return nil, fmt.Errorf("bad dive_id %q: %w", diveID, err)
		}
		ev.Discipline = dive.Discipline(disc.String)
		ev.LungVolume = dive.LungVolume(lung.String)
		ev.DisciplineSource = dive.LabelSource(discSrc.String)
		ev.LungVolumeSource = dive.LabelSource(lungSrc.String)
		ev.AvgHR = floatOrNaN(avgHR)
		out = append(out, ev)
	}
	return out, rows.Err()
}
