package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/peakform/biometrics-service/internal/config"
)

// Garmin drives the OAuth 1.0a flow: signed request-token call, authorize
// redirect, signed access-token exchange. Metric delivery is push-only via
// webhook batches, so there is no pull client here.
type Garmin struct {
	cfg    config.GarminConfig
	signer OAuth1Signer
	http   *http.Client
	now    func() time.Time
}

// NewGarmin creates a Garmin OAuth1 client
func NewGarmin(cfg config.GarminConfig) *Garmin {
	return &Garmin{
		cfg:    cfg,
		signer: OAuth1Signer{ConsumerKey: cfg.ConsumerKey, ConsumerSecret: cfg.ConsumerSecret},
		http:   newHTTPClient(),
		now:    time.Now,
	}
}

// Name returns the provider identifier
func (g *Garmin) Name() string { return "garmin" }

func (g *Garmin) configured() error {
	if g.cfg.ConsumerKey == "" || g.cfg.ConsumerSecret == "" || g.cfg.CallbackURL == "" {
		return fmt.Errorf("garmin consumer credentials or callback URL missing: %w", ErrNotConfigured)
	}
	return nil
}

// RequestToken performs the signed request-token call and returns the
// temporary token and its secret. The secret must ride through the authorize
// redirect (inside the signed state) to key the access-token exchange.
func (g *Garmin) RequestToken(ctx context.Context) (token, secret string, err error) {
	if err := g.configured(); err != nil {
		return "", "", err
	}

	params, err := g.baseParams()
	if err != nil {
		return "", "", err
	}
	params.Set("oauth_callback", "oob")

	return g.tokenCall(ctx, g.cfg.RequestTokenURL, params, "")
}

// AccessToken exchanges an authorized request token plus verifier for the
// long-lived access token. requestSecret is the secret returned by
// RequestToken and keys this call's signature.
func (g *Garmin) AccessToken(ctx context.Context, requestToken, requestSecret, verifier string) (token, secret string, err error) {
	if err := g.configured(); err != nil {
		return "", "", err
	}

	params, err := g.baseParams()
	if err != nil {
		return "", "", err
	}
	params.Set("oauth_token", requestToken)
	params.Set("oauth_verifier", verifier)

	return g.tokenCall(ctx, g.cfg.AccessTokenURL, params, requestSecret)
}

// AuthorizeURL builds the user-facing authorize location. state is appended
// to the callback so it survives the provider round trip.
func (g *Garmin) AuthorizeURL(requestToken, state string) string {
	callback := g.cfg.CallbackURL + "?state=" + url.QueryEscape(state)

	q := url.Values{}
	q.Set("oauth_token", requestToken)
	q.Set("oauth_callback", callback)
	return g.cfg.AuthorizeURL + "?" + q.Encode()
}

func (g *Garmin) baseParams() (url.Values, error) {
	nonce, err := Nonce()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("oauth_consumer_key", g.cfg.ConsumerKey)
	params.Set("oauth_nonce", nonce)
	params.Set("oauth_signature_method", "HMAC-SHA1")
	params.Set("oauth_timestamp", strconv.FormatInt(g.now().Unix(), 10))
	params.Set("oauth_version", "1.0")
	return params, nil
}

// tokenCall signs params, POSTs them as an Authorization header and parses
// the urlencoded oauth_token / oauth_token_secret response body.
func (g *Garmin) tokenCall(ctx context.Context, endpoint string, params url.Values, tokenSecret string) (string, string, error) {
	params.Set("oauth_signature", g.signer.Sign(http.MethodPost, endpoint, params, tokenSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", g.signer.AuthorizationHeader(params))

	resp, err := g.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("token endpoint returned %d: %w", resp.StatusCode, ErrUpstream)
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse token response: %w", err)
	}

	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return "", "", fmt.Errorf("token response missing oauth_token or oauth_token_secret: %w", ErrUpstream)
	}

	return token, secret, nil
}

// GarminPushBatch is the webhook body: records grouped by type. Every record
// carries the user access token as its only attribution.
type GarminPushBatch struct {
	Dailies       []GarminDailySummary `json:"dailies"`
	Sleeps        []GarminSleepSummary `json:"sleeps"`
	StressDetails []GarminStressDetail `json:"stressDetails"`
}

// GarminDailySummary is one day-level record from a push batch.
type GarminDailySummary struct {
	UserAccessToken                  string   `json:"userAccessToken"`
	StartTimeInSeconds               int64    `json:"startTimeInSeconds"`
	BodyBatteryMostRecentValue       *float64 `json:"bodyBatteryMostRecentValue"`
	RestingHeartRateInBeatsPerMinute *float64 `json:"restingHeartRateInBeatsPerMinute"`
	AverageStressLevel               *float64 `json:"averageStressLevel"`
	ActiveKilocalories               *float64 `json:"activeKilocalories"`
}

// GarminSleepSummary is one sleep record from a push batch. Durations are in
// seconds.
type GarminSleepSummary struct {
	UserAccessToken             string       `json:"userAccessToken"`
	StartTimeInSeconds          int64        `json:"startTimeInSeconds"`
	OverallSleepScore           *GarminScore `json:"overallSleepScore"`
	DurationInSeconds           *int64       `json:"durationInSeconds"`
	DeepSleepDurationInSeconds  *int64       `json:"deepSleepDurationInSeconds"`
	LightSleepDurationInSeconds *int64       `json:"lightSleepDurationInSeconds"`
	RemSleepInSeconds           *int64       `json:"remSleepInSeconds"`
	AwakeDurationInSeconds      *int64       `json:"awakeDurationInSeconds"`
}

// GarminScore is the nested score object on sleep summaries.
type GarminScore struct {
	Value *float64 `json:"value"`
}

// GarminStressDetail is one stress record from a push batch.
type GarminStressDetail struct {
	UserAccessToken         string   `json:"userAccessToken"`
	StartTimeInSeconds      int64    `json:"startTimeInSeconds"`
	AverageStressLevel      *float64 `json:"averageStressLevel"`
	BodyBatteryChargedValue *float64 `json:"bodyBatteryChargedValue"`
}
