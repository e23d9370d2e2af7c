package divedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/osamu-dazaai/garmin-freediving-coach/internal/dive"
)

// GetBaseline loads a user's baseline. A user with no stored baseline
// gets a fresh UNCALIBRATED one.
func (db *DiveDB) GetBaseline(ctx context.Context, userID string) (dive.UserBaseline, error) {
	var blob string
	err := db.QueryRowContext(ctx,
		`SELECT baseline_json FROM user_baselines WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return dive.NewUserBaseline(userID), nil
	}
	if err != nil {
		return dive.UserBaseline{}, fmt.Errorf("failed to load baseline for %s: %w", userID, err)
	}

	var b dive.UserBaseline
	if err := json.Unmarshal([]byte(blob), &b); err != nil {
		return dive.UserBaseline{}, fmt.Errorf("failed to parse baseline for %s: %w", userID, err)
	}
	return b, nil
}

// SaveBaseline upserts the canonical baseline copy for a user. The
// calibration columns are denormalized for cheap progress queries.
func (db *DiveDB) SaveBaseline(ctx context.Context, b dive.UserBaseline) error {
	return saveBaseline(ctx, db.DB, b)
}

func saveBaseline(ctx context.Context, ex execer, b dive.UserBaseline) error {
	blob, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode baseline for %s: %w", b.UserID, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO user_baselines (user_id, baseline_json, calibration_dives, calibration_complete, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			baseline_json = excluded.baseline_json,
			calibration_dives = excluded.calibration_dives,
			calibration_complete = excluded.calibration_complete,
			updated_at = CURRENT_TIMESTAMP`,
		b.UserID, string(blob), b.CalibrationDives, b.CalibrationComplete)
	if err != nil {
		return fmt.Errorf("failed to save baseline for %s: %w", b.UserID, err)
	}
	return nil
}
