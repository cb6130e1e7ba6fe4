package dto

// AuthURLResponse carries the provider authorize URL back to the caller, who
// performs the navigation.
type AuthURLResponse struct {
	URL string `json:"url"`
}

// RecoveryMetrics groups recovery-related snapshot fields
type RecoveryMetrics struct {
	Score            *float64 `json:"score"`
	RestingHeartRate *float64 `json:"resting_heart_rate"`
	HRV              *float64 `json:"hrv"`
}

// SleepMetrics groups sleep-related snapshot fields
type SleepMetrics struct {
	Score       *float64 `json:"score"`
	DurationMs  *int64   `json:"duration_ms"`
	DeepSleepMs *int64   `json:"deep_sleep_ms"`
}

// StrainMetrics groups strain-related snapshot fields
type StrainMetrics struct {
	Score    *float64 `json:"score"`
	Calories *float64 `json:"calories"`
}

// StressMetrics groups stress-related snapshot fields
type StressMetrics struct {
	Score       *float64 `json:"score"`
	BodyBattery *float64 `json:"body_battery"`
}

// DataResponse is the pull-path payload. Connected=false means the user has
// no live integration for this provider and all groups are omitted.
type DataResponse struct {
	Connected bool             `json:"connected"`
	Source    string           `json:"source,omitempty"`
	Date      string           `json:"date,omitempty"`
	Recovery  *RecoveryMetrics `json:"recovery,omitempty"`
	Sleep     *SleepMetrics    `json:"sleep,omitempty"`
	Strain    *StrainMetrics   `json:"strain,omitempty"`
	Stress    *StressMetrics   `json:"stress,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
