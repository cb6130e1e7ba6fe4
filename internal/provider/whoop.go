package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/peakform/biometrics-service/internal/config"
	"github.com/peakform/biometrics-service/internal/domain"
	"golang.org/x/oauth2"
)

// whoopScopes is fixed; callers cannot widen it.
const whoopScopes = "read:recovery read:sleep read:cycles"

// Whoop pulls recovery, sleep and cycle collections and projects them into
// snapshot fields. Collections are reverse-chronological, so "today" is the
// most recent record of each.
type Whoop struct {
	oauth   oauth2.Config
	apiBase string
	http    *http.Client
}

// NewWhoop creates a Whoop client
func NewWhoop(cfg config.WhoopConfig) *Whoop {
	return &Whoop{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:recovery", "read:sleep", "read:cycles"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		apiBase: cfg.APIBaseURL,
		http:    newHTTPClient(),
	}
}

// Name returns the provider identifier
func (w *Whoop) Name() string { return "whoop" }

func (w *Whoop) configured() error {
	if w.oauth.ClientID == "" || w.oauth.ClientSecret == "" || w.oauth.RedirectURL == "" {
		return fmt.Errorf("whoop client credentials or redirect URL missing: %w", ErrNotConfigured)
	}
	return nil
}

// AuthCodeURL builds the authorize URL carrying state
func (w *Whoop) AuthCodeURL(state string) (string, error) {
	if err := w.configured(); err != nil {
		return "", err
	}
	return w.oauth.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for tokens. Non-2xx is terminal.
func (w *Whoop) Exchange(ctx context.Context, code string) (*Tokens, error) {
	if err := w.configured(); err != nil {
		return nil, err
	}

	tok, err := w.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("whoop code exchange failed: %w", errors.Join(err, ErrUpstream))
	}

	return fromOAuth2Token(tok, whoopScopes), nil
}

// Refresh trades a refresh token for a new token triple
func (w *Whoop) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if err := w.configured(); err != nil {
		return nil, err
	}

	tok, err := w.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("whoop token refresh failed: %w", errors.Join(err, ErrUpstream))
	}

	return fromOAuth2Token(tok, whoopScopes), nil
}

type whoopRecoveryResponse struct {
	Records []struct {
		Score *struct {
			RecoveryScore    *float64 `json:"recovery_score"`
			RestingHeartRate *float64 `json:"resting_heart_rate"`
			HRVRmssdMilli    *float64 `json:"hrv_rmssd_milli"`
		} `json:"score"`
	} `json:"records"`
}

type whoopSleepResponse struct {
	Records []struct {
		Score *struct {
			SleepPerformancePercentage *float64 `json:"sleep_performance_percentage"`
			StageSummary               *struct {
				TotalLightSleepTimeMilli    *int64 `json:"total_light_sleep_time_milli"`
				TotalSlowWaveSleepTimeMilli *int64 `json:"total_slow_wave_sleep_time_milli"`
				TotalRemSleepTimeMilli      *int64 `json:"total_rem_sleep_time_milli"`
				TotalAwakeTimeMilli         *int64 `json:"total_awake_time_milli"`
			} `json:"stage_summary"`
		} `json:"score"`
	} `json:"records"`
}

type whoopCycleResponse struct {
	Records []struct {
		Score *struct {
			Strain    *float64 `json:"strain"`
			Kilojoule *float64 `json:"kilojoule"`
		} `json:"score"`
	} `json:"records"`
}

// Fetch pulls the three collections concurrently and joins them into one
// partial snapshot. Every numeric field tolerates absence.
func (w *Whoop) Fetch(ctx context.Context, accessToken string, day time.Time) (*domain.Snapshot, error) {
	var (
		recovery whoopRecoveryResponse
		sleep    whoopSleepResponse
		cycle    whoopCycleResponse

		rawRecovery, rawSleep, rawCycle json.RawMessage
	)

	errs := make(chan error, 3)
	go func() {
		var err error
		rawRecovery, err = getJSON(ctx, w.http, w.apiBase+"/v1/recovery?limit=1", accessToken, &recovery)
		errs <- err
	}()
	go func() {
		var err error
		rawSleep, err = getJSON(ctx, w.http, w.apiBase+"/v1/activity/sleep?limit=1", accessToken, &sleep)
		errs <- err
	}()
	go func() {
		var err error
		rawCycle, err = getJSON(ctx, w.http, w.apiBase+"/v1/cycle?limit=1", accessToken, &cycle)
		errs <- err
	}()

	if err := errors.Join(<-errs, <-errs, <-errs); err != nil {
		return nil, fmt.Errorf("whoop fetch failed: %w", err)
	}

	snapshot := &domain.Snapshot{Source: w.Name(), Date: day}

	if len(recovery.Records) > 0 && recovery.Records[0].Score != nil {
		score := recovery.Records[0].Score
		snapshot.RecoveryScore = score.RecoveryScore
		snapshot.RestingHeartRate = score.RestingHeartRate
		snapshot.HRV = score.HRVRmssdMilli
	}

	if len(sleep.Records) > 0 && sleep.Records[0].Score != nil {
		score := sleep.Records[0].Score
		snapshot.SleepScore = score.SleepPerformancePercentage
		if stages := score.StageSummary; stages != nil {
			quality := QualitySleepMs(stages.TotalLightSleepTimeMilli, stages.TotalSlowWaveSleepTimeMilli, stages.TotalRemSleepTimeMilli)
			snapshot.SleepDurationMs = domain.Int64(quality)
			snapshot.DeepSleepMs = stages.TotalSlowWaveSleepTimeMilli
		}
	}

	if len(cycle.Records) > 0 && cycle.Records[0].Score != nil {
		score := cycle.Records[0].Score
		snapshot.StrainScore = score.Strain
		if score.Kilojoule != nil {
			snapshot.Calories = domain.Float(KilojoulesToCalories(*score.Kilojoule))
		}
	}

	raw, err := json.Marshal(map[string]json.RawMessage{
		"recovery": rawRecovery,
		"sleep":    rawSleep,
		"cycle":    rawCycle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retain whoop raw payload: %w", err)
	}
	snapshot.RawPayload = raw

	return snapshot, nil
}

func fromOAuth2Token(tok *oauth2.Token, scopes string) *Tokens {
	tokens := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scopes:       scopes,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		tokens.ExpiresAt = &expiry
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		tokens.Scopes = scope
	}
	return tokens
}
