package service

import (
	"context"

	"github.com/peakform/biometrics-service/internal/dto"
	"github.com/peakform/biometrics-service/internal/provider"
)

// CallbackParams carries the query parameters of a provider callback.
// Code/State belong to the OAuth2 flows; OAuthToken/OAuthVerifier/State to
// the OAuth1 flow.
type CallbackParams struct {
	Code          string
	State         string
	OAuthToken    string
	OAuthVerifier string
}

// IntegrationService defines the per-provider authorization and data flows.
type IntegrationService interface {
	// AuthorizeURL validates configuration and returns the provider
	// authorize URL for userID. The caller performs navigation.
	AuthorizeURL(ctx context.Context, providerName, userID string) (string, error)
	// HandleCallback runs the callback state machine. A failure is always a
	// *CallbackError carrying a redirect reason.
	HandleCallback(ctx context.Context, providerName string, params CallbackParams) error
	// FetchData refreshes expired credentials, pulls and normalizes today's
	// metrics, persists the snapshot and returns the grouped fields.
	FetchData(ctx context.Context, providerName, userID string) (*dto.DataResponse, error)
	// Disconnect removes the credential record and the source's snapshots.
	Disconnect(ctx context.Context, providerName, userID string) error
}

// WebhookIngestor consumes provider-pushed metric batches.
type WebhookIngestor interface {
	// IngestGarminPush attributes each record by stored access token and
	// upserts snapshot fields. Per-record failures never abort the batch.
	IngestGarminPush(ctx context.Context, batch *provider.GarminPushBatch)
}
