package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/peakform/biometrics-service/internal/domain"
)

const defaultHTTPTimeout = 10 * time.Second

// Tokens is the provider-neutral result of a token exchange or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scopes       string
}

// OAuth2Provider is implemented by the authorization-code providers (Whoop,
// Oura). AuthCodeURL and Exchange drive the redirect flow; Refresh trades a
// refresh token for a new triple; Fetch pulls and normalizes one day of
// metrics into partial snapshot fields.
type OAuth2Provider interface {
	Name() string
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	Fetch(ctx context.Context, accessToken string, day time.Time) (*domain.Snapshot, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// getJSON issues a bearer-authenticated GET and decodes the body into out,
// returning the raw bytes for snapshot raw-payload retention.
func getJSON(ctx context.Context, client *http.Client, rawURL, accessToken string, out interface{}) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s: %w", resp.StatusCode, rawURL, ErrUpstream)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", rawURL, err)
	}

	return body, nil
}
