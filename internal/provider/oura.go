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

const ouraScopes = "daily heartrate"

// Oura pulls daily readiness, daily sleep and sleep-period collections for a
// single calendar day (start_date == end_date) and projects them into
// snapshot fields.
type Oura struct {
	oauth   oauth2.Config
	apiBase string
	http    *http.Client
}

// NewOura creates an Oura client
func NewOura(cfg config.OuraConfig) *Oura {
	return &Oura{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"daily", "heartrate"},
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
func (o *Oura) Name() string { return "oura" }

func (o *Oura) configured() error {
	if o.oauth.ClientID == "" || o.oauth.ClientSecret == "" || o.oauth.RedirectURL == "" {
		return fmt.Errorf("oura client credentials or redirect URL missing: %w", ErrNotConfigured)
	}
	return nil
}

// AuthCodeURL builds the authorize URL carrying state
func (o *Oura) AuthCodeURL(state string) (string, error) {
	if err := o.configured(); err != nil {
		return "", err
	}
	return o.oauth.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for tokens. Non-2xx is terminal.
func (o *Oura) Exchange(ctx context.Context, code string) (*Tokens, error) {
	if err := o.configured(); err != nil {
		return nil, err
	}

	tok, err := o.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oura code exchange failed: %w", errors.Join(err, ErrUpstream))
	}

	return fromOAuth2Token(tok, ouraScopes), nil
}

// Refresh trades a refresh token for a new token triple
func (o *Oura) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if err := o.configured(); err != nil {
		return nil, err
	}

	tok, err := o.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("oura token refresh failed: %w", errors.Join(err, ErrUpstream))
	}

	return fromOAuth2Token(tok, ouraScopes), nil
}

type ouraDailyResponse struct {
	Data []struct {
		Score *float64 `json:"score"`
	} `json:"data"`
}

type ouraSleepResponse struct {
	Data []struct {
		TotalSleepDuration *int64   `json:"total_sleep_duration"`
		DeepSleepDuration  *int64   `json:"deep_sleep_duration"`
		RemSleepDuration   *int64   `json:"rem_sleep_duration"`
		LightSleepDuration *int64   `json:"light_sleep_duration"`
		LowestHeartRate    *float64 `json:"lowest_heart_rate"`
		AverageHRV         *float64 `json:"average_hrv"`
	} `json:"data"`
}

// Fetch pulls the three collections concurrently for one day. Sleep-period
// durations arrive in seconds and are converted to milliseconds.
func (o *Oura) Fetch(ctx context.Context, accessToken string, day time.Time) (*domain.Snapshot, error) {
	dateRange := fmt.Sprintf("start_date=%s&end_date=%s", day.Format("2006-01-02"), day.Format("2006-01-02"))

	var (
		readiness  ouraDailyResponse
		dailySleep ouraDailyResponse
		sleep      ouraSleepResponse

		rawReadiness, rawDailySleep, rawSleep json.RawMessage
	)

	errs := make(chan error, 3)
	go func() {
		var err error
		rawReadiness, err = getJSON(ctx, o.http, o.apiBase+"/v2/usercollection/daily_readiness?"+dateRange, accessToken, &readiness)
		errs <- err
	}()
	go func() {
		var err error
		rawDailySleep, err = getJSON(ctx, o.http, o.apiBase+"/v2/usercollection/daily_sleep?"+dateRange, accessToken, &dailySleep)
		errs <- err
	}()
	go func() {
		var err error
		rawSleep, err = getJSON(ctx, o.http, o.apiBase+"/v2/usercollection/sleep?"+dateRange, accessToken, &sleep)
		errs <- err
	}()

	if err := errors.Join(<-errs, <-errs, <-errs); err != nil {
		return nil, fmt.Errorf("oura fetch failed: %w", err)
	}

	snapshot := &domain.Snapshot{Source: o.Name(), Date: day}

	if len(readiness.Data) > 0 {
		snapshot.RecoveryScore = readiness.Data[0].Score
	}
	if len(dailySleep.Data) > 0 {
		snapshot.SleepScore = dailySleep.Data[0].Score
	}
	if len(sleep.Data) > 0 {
		period := sleep.Data[0]
		if period.TotalSleepDuration != nil {
			snapshot.SleepDurationMs = domain.Int64(SecondsToMilliseconds(*period.TotalSleepDuration))
		}
		if period.DeepSleepDuration != nil {
			snapshot.DeepSleepMs = domain.Int64(SecondsToMilliseconds(*period.DeepSleepDuration))
		}
		snapshot.RestingHeartRate = period.LowestHeartRate
		snapshot.HRV = period.AverageHRV
	}

	raw, err := json.Marshal(map[string]json.RawMessage{
		"daily_readiness": rawReadiness,
		"daily_sleep":     rawDailySleep,
		"sleep":           rawSleep,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retain oura raw payload: %w", err)
	}
	snapshot.RawPayload = raw

	return snapshot, nil
}
