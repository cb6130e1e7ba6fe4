package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/peakform/biometrics-service/internal/domain"
	"github.com/peakform/biometrics-service/pkg/database"
)

// snapshotRepository implements SnapshotRepository interface
type snapshotRepository struct {
	db *database.Postgres
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.Postgres) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Upsert merges the non-nil fields of snapshot into the row keyed by
// (user_id, source, date). COALESCE on the conflict branch keeps previously
// stored values wherever this write carries nil, which makes partial writes
// non-destructive and identical repeats idempotent.
func (r *snapshotRepository) Upsert(ctx context.Context, snapshot *domain.Snapshot) error {
	query := `
		INSERT INTO snapshots (
			id, user_id, source, date,
			recovery_score, resting_heart_rate, hrv,
			sleep_score, sleep_duration_ms, deep_sleep_ms,
			strain_score, calories, stress_score, body_battery,
			raw_payload, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id, source, date) DO UPDATE SET
			recovery_score = COALESCE(EXCLUDED.recovery_score, snapshots.recovery_score),
			resting_heart_rate = COALESCE(EXCLUDED.resting_heart_rate, snapshots.resting_heart_rate),
			hrv = COALESCE(EXCLUDED.hrv, snapshots.hrv),
			sleep_score = COALESCE(EXCLUDED.sleep_score, snapshots.sleep_score),
			sleep_duration_ms = COALESCE(EXCLUDED.sleep_duration_ms, snapshots.sleep_duration_ms),
			deep_sleep_ms = COALESCE(EXCLUDED.deep_sleep_ms, snapshots.deep_sleep_ms),
			strain_score = COALESCE(EXCLUDED.strain_score, snapshots.strain_score),
			calories = COALESCE(EXCLUDED.calories, snapshots.calories),
			stress_score = COALESCE(EXCLUDED.stress_score, snapshots.stress_score),
			body_battery = COALESCE(EXCLUDED.body_battery, snapshots.body_battery),
			raw_payload = COALESCE(EXCLUDED.raw_payload, snapshots.raw_payload),
			updated_at = EXCLUDED.updated_at
	`

	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	snapshot.UpdatedAt = time.Now()

	var raw interface{}
	if len(snapshot.RawPayload) > 0 {
		raw = []byte(snapshot.RawPayload)
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.UserID,
		snapshot.Source,
		snapshot.Date,
		snapshot.RecoveryScore,
		snapshot.RestingHeartRate,
		snapshot.HRV,
		snapshot.SleepScore,
		snapshot.SleepDurationMs,
		snapshot.DeepSleepMs,
		snapshot.StrainScore,
		snapshot.Calories,
		snapshot.StressScore,
		snapshot.BodyBattery,
		raw,
		snapshot.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// GetByKey retrieves the snapshot for (user, source, date)
func (r *snapshotRepository) GetByKey(ctx context.Context, userID, source string, date time.Time) (*domain.Snapshot, error) {
	query := `
		SELECT id, user_id, source, date,
			recovery_score, resting_heart_rate, hrv,
			sleep_score, sleep_duration_ms, deep_sleep_ms,
			strain_score, calories, stress_score, body_battery,
			raw_payload, updated_at
		FROM snapshots
		WHERE user_id = $1 AND source = $2 AND date = $3
	`

	snapshot := &domain.Snapshot{}
	var raw []byte

	err := r.db.DB.QueryRowContext(ctx, query, userID, source, date).Scan(
		&snapshot.ID,
		&snapshot.UserID,
		&snapshot.Source,
		&snapshot.Date,
		&snapshot.RecoveryScore,
		&snapshot.RestingHeartRate,
		&snapshot.HRV,
		&snapshot.SleepScore,
		&snapshot.SleepDurationMs,
		&snapshot.DeepSleepMs,
		&snapshot.StrainScore,
		&snapshot.Calories,
		&snapshot.StressScore,
		&snapshot.BodyBattery,
		&raw,
		&snapshot.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot for user %s source %s not found: %w", userID, source, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if len(raw) > 0 {
		snapshot.RawPayload = raw
	}

	return snapshot, nil
}

// DeleteByUserSource removes every snapshot a source has written for a user
func (r *snapshotRepository) DeleteByUserSource(ctx context.Context, userID, source string) error {
	query := `DELETE FROM snapshots WHERE user_id = $1 AND source = $2`

	if _, err := r.db.DB.ExecContext(ctx, query, userID, source); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	return nil
}
