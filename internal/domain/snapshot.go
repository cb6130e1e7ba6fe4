package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is the canonical per-user-per-source-per-day biometric record.
// All metric fields are pointers: a nil field was never reported by the
// source and must not clobber a previously stored value on upsert.
type Snapshot struct {
	ID               string          `json:"id" db:"id"`
	UserID           string          `json:"user_id" db:"user_id"`
	Source           string          `json:"source" db:"source"`
	Date             time.Time       `json:"date" db:"date"`
	RecoveryScore    *float64        `json:"recovery_score" db:"recovery_score"`
	RestingHeartRate *float64        `json:"resting_heart_rate" db:"resting_heart_rate"`
	HRV              *float64        `json:"hrv" db:"hrv"`
	SleepScore       *float64        `json:"sleep_score" db:"sleep_score"`
	SleepDurationMs  *int64          `json:"sleep_duration_ms" db:"sleep_duration_ms"`
	DeepSleepMs      *int64          `json:"deep_sleep_ms" db:"deep_sleep_ms"`
	StrainScore      *float64        `json:"strain_score" db:"strain_score"`
	Calories         *float64        `json:"calories" db:"calories"`
	StressScore      *float64        `json:"stress_score" db:"stress_score"`
	BodyBattery      *float64        `json:"body_battery" db:"body_battery"`
	RawPayload       json.RawMessage `json:"raw_payload" db:"raw_payload"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// DayOf truncates an epoch-seconds start time to its UTC calendar day.
func DayOf(epochSeconds int64) time.Time {
	return time.Unix(epochSeconds, 0).UTC().Truncate(24 * time.Hour)
}

// Float returns a pointer to v, for populating optional snapshot fields.
func Float(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
