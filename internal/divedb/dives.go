package divedb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/osamu-dazaai/garmin-freediving-coach/internal/dive"
)

// DiveRecord is the persisted form of one analyzed dive: the headline
// features plus the reconciled label and the model versions that
// produced it.
type DiveRecord struct {
	DiveID     uuid.UUID       `json:"dive_id"`
	UserID     string          `json:"user_id"`
	ActivityID string          `json:"activity_id,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Features   dive.Features   `json:"features"`
	Final      dive.FinalLabel `json:"final_label"`

	DisciplineModel string `json:"discipline_model,omitempty"`
	LungVolumeModel string `json:"lung_volume_model,omitempty"`
}

// SaveDive upserts one dive. Re-analyzing an activity overwrites the
// stored features and labels for the same dive ID.
func (db *DiveDB) SaveDive(ctx context.Context, rec DiveRecord) error {
	f := rec.Features
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO dives (
			dive_id, user_id, activity_id, started_at,
			max_depth, descent_duration, bottom_duration, ascent_duration, total_duration,
			avg_descent_rate, avg_ascent_rate, descent_velocity_cv,
			avg_hr, surface_hr, depth_hr,
			discipline, discipline_source, discipline_confidence,
			lung_volume, lung_volume_source, lung_volume_confidence,
			discipline_model, lung_volume_model
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DiveID.String(), rec.UserID, rec.ActivityID, rec.StartedAt.UTC(),
		f.MaxDepth, f.DescentDuration, f.BottomDuration, f.AscentDuration, f.TotalDuration,
		f.AvgDescentRate, f.AvgAscentRate, f.DescentVelocityCV,
		nullFloat(f.AvgHR), nullFloat(f.SurfaceHR), nullFloat(f.DepthHR),
		string(rec.Final.Discipline), string(rec.Final.DisciplineSource), rec.Final.DisciplineConfidence,
		string(rec.Final.LungVolume), string(rec.Final.LungVolumeSource), rec.Final.LungVolumeConfidence,
		rec.DisciplineModel, rec.LungVolumeModel,
	)
	if err != nil {
		return fmt.Errorf("failed to save dive %s: %w", rec.DiveID, err)
	}
	return nil
}

// GetDive loads one dive by ID.
func (db *DiveDB) GetDive(ctx context.Context, diveID uuid.UUID) (*DiveRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT dive_id, user_id, activity_id, started_at,
			max_depth, descent_duration, bottom_duration, ascent_duration, total_duration,
			avg_descent_rate, avg_ascent_rate, descent_velocity_cv,
			avg_hr, surface_hr, depth_hr,
			discipline, discipline_source, discipline_confidence,
			lung_volume, lung_volume_source, lung_volume_confidence,
			discipline_model, lung_volume_model
		FROM dives WHERE dive_id = ?`, diveID.String())
	rec, err := scanDive(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dive %s not found", diveID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dive %s: %w", diveID, err)
	}
	return rec, nil
}

// ListUserDives returns a user's dives, most recent first.
func (db *DiveDB) ListUserDives(ctx context.Context, userID string, limit int) ([]DiveRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT dive_id, user_id, activity_id, started_at,
			max_depth, descent_duration, bottom_duration, ascent_duration, total_duration,
			avg_descent_rate, avg_ascent_rate, descent_velocity_cv,
			avg_hr, surface_hr, depth_hr,
			discipline, discipline_source, discipline_confidence,
			lung_volume, lung_volume_source, lung_volume_confidence,
			discipline_model, lung_volume_model
		FROM dives WHERE user_id = ?
		ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dives for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []DiveRecord
	for rows.Next() {
		rec, err := scanDive(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dive row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// UpdateFinalLabel rewrites the stored label for a dive after a manual
// override or confirmation.
func (db *DiveDB) UpdateFinalLabel(ctx context.Context, diveID uuid.UUID, final dive.FinalLabel) error {
	res, err := db.ExecContext(ctx, `
		UPDATE dives SET
			discipline = ?, discipline_source = ?, discipline_confidence = ?,
			lung_volume = ?, lung_volume_source = ?, lung_volume_confidence = ?
		WHERE dive_id = ?`,
		string(final.Discipline), string(final.DisciplineSource), final.DisciplineConfidence,
		string(final.LungVolume), string(final.LungVolumeSource), final.LungVolumeConfidence,
		diveID.String())
	if err != nil {
		return fmt.Errorf("failed to update label for dive %s: %w", diveID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dive %s not found", diveID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDive(row rowScanner) (*DiveRecord, error) {
	var rec DiveRecord
	var diveID string
	var activityID sql.NullString
	var avgHR, surfaceHR, depthHR sql.NullFloat64
	var disc, discSrc, lung, lungSrc sql.NullString
	var discModel, lungModel sql.NullString

	err := row.Scan(
		&diveID, &rec.UserID, &activityID, &rec.StartedAt,
		&rec.Features.MaxDepth, &rec.Features.DescentDuration, &rec.Features.BottomDuration,
		&rec.Features.AscentDuration, &rec.Features.TotalDuration,
		&rec.Features.AvgDescentRate, &rec.Features.AvgAscentRate, &rec.Features.DescentVelocityCV,
		&avgHR, &surfaceHR, &depthHR,
		&disc, &discSrc, &rec.Final.DisciplineConfidence,
		&lung, &lungSrc, &rec.Final.LungVolumeConfidence,
		&discModel, &lungModel,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(diveID)
	if err != nil {
		return nil, fmt.Errorf("bad dive_id %q: %w", diveID, err)
	}
	rec.DiveID = id
	rec.Features.DiveID = id
	rec.ActivityID = activityID.String
	rec.Features.AvgHR = floatOrNaN(avgHR)
	rec.Features.SurfaceHR = floatOrNaN(surfaceHR)
	rec.Features.DepthHR = floatOrNaN(depthHR)
	rec.Features.HasHR = avgHR.Valid
	rec.Final.Discipline = dive.Discipline(disc.String)
	rec.Final.DisciplineSource = dive.LabelSource(discSrc.String)
	rec.Final.LungVolume = dive.LungVolume(lung.String)
	rec.Final.LungVolumeSource = dive.LabelSource(lungSrc.String)
	rec.DisciplineModel = discModel.String
	rec.LungVolumeModel = lungModel.String
	return &rec, nil
}

// nullFloat maps NaN to NULL so missing HR never poisons aggregates.
func nullFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
