package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peakform/biometrics-service/internal/domain"
	"github.com/peakform/biometrics-service/internal/dto"
	"github.com/peakform/biometrics-service/internal/provider"
	"github.com/peakform/biometrics-service/internal/repository"
	"github.com/peakform/biometrics-service/internal/utils"
	"go.uber.org/zap"
)

// integrationService implements IntegrationService
type integrationService struct {
	tokens    repository.TokenRepository
	snapshots repository.SnapshotRepository
	oauth2    map[string]provider.OAuth2Provider
	garmin    *provider.Garmin
	states    *utils.StateCodec
	logger    *zap.Logger
	now       func() time.Time
}

// NewIntegrationService creates the integration service
func NewIntegrationService(
	tokens repository.TokenRepository,
	snapshots repository.SnapshotRepository,
	garmin *provider.Garmin,
	oauth2Providers []provider.OAuth2Provider,
	states *utils.StateCodec,
	logger *zap.Logger,
) IntegrationService {
	byName := make(map[string]provider.OAuth2Provider, len(oauth2Providers))
	for _, p := range oauth2Providers {
		byName[p.Name()] = p
	}

	return &integrationService{
		tokens:    tokens,
		snapshots: snapshots,
		oauth2:    byName,
		garmin:    garmin,
		states:    states,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthorizeURL builds the provider authorize URL for userID. For Garmin this
// performs the signed request-token call first and smuggles the returned
// secret through the signed state payload.
func (s *integrationService) AuthorizeURL(ctx context.Context, providerName, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required: %w", ErrValidation)
	}

	if providerName == domain.ProviderGarmin {
		requestToken, requestSecret, err := s.garmin.RequestToken(ctx)
		if err != nil {
			return "", err
		}

		state, err := s.states.SignPayload(userID, requestSecret)
		if err != nil {
			return "", err
		}

		return s.garmin.AuthorizeURL(requestToken, state), nil
	}

	p, ok := s.oauth2[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	return p.AuthCodeURL(s.states.Sign(userID))
}

// HandleCallback runs the callback state machine:
// RECEIVED -> STATE_VERIFIED -> TOKEN_EXCHANGED -> PERSISTED -> DONE.
// Every transition executes at most once; any failure is terminal with a
// redirect reason. A replayed authorization code fails at token exchange.
func (s *integrationService) HandleCallback(ctx context.Context, providerName string, params CallbackParams) error {
	if providerName == domain.ProviderGarmin {
		return s.handleGarminCallback(ctx, params)
	}

	p, ok := s.oauth2[providerName]
	if !ok {
		return callbackErr(ReasonServerConfig, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName))
	}

	if params.Code == "" || params.State == "" {
		return callbackErr(ReasonMissingParams, fmt.Errorf("code and state are required"))
	}

	userID, err := s.states.Verify(params.State)
	if err != nil {
		return callbackErr(ReasonInvalidState, err)
	}

	tokens, err := p.Exchange(ctx, params.Code)
	if err != nil {
		if errors.Is(err, provider.ErrNotConfigured) {
			return callbackErr(ReasonServerConfig, err)
		}
		return callbackErr(ReasonTokenExchange, err)
	}

	if err := s.persistTokens(ctx, userID, providerName, tokens); err != nil {
		return callbackErr(ReasonDBSave, err)
	}

	return nil
}

func (s *integrationService) handleGarminCallback(ctx context.Context, params CallbackParams) error {
	if params.OAuthToken == "" || params.OAuthVerifier == "" || params.State == "" {
		return callbackErr(ReasonMissingParams, fmt.Errorf("oauth_token, oauth_verifier and state are required"))
	}

	userID, requestSecret, err := s.states.VerifyPayload(params.State)
	if err != nil {
		return callbackErr(ReasonInvalidState, err)
	}

	accessToken, accessSecret, err := s.garmin.AccessToken(ctx, params.OAuthToken, requestSecret, params.OAuthVerifier)
	if err != nil {
		if errors.Is(err, provider.ErrNotConfigured) {
			return callbackErr(ReasonServerConfig, err)
		}
		return callbackErr(ReasonTokenExchange, err)
	}

	// OAuth1 tokens never expire; the token secret rides in the refresh
	// column since it plays the analogous re-signing role.
	record := &domain.TokenRecord{
		UserID:       userID,
		Provider:     domain.ProviderGarmin,
		AccessToken:  accessToken,
		RefreshToken: accessSecret,
	}
	if err := s.tokens.Upsert(ctx, record); err != nil {
		return callbackErr(ReasonDBSave, err)
	}

	return nil
}

func (s *integrationService) persistTokens(ctx context.Context, userID, providerName string, tokens *provider.Tokens) error {
	record := &domain.TokenRecord{
		UserID:       userID,
		Provider:     providerName,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Scopes:       tokens.Scopes,
	}
	return s.tokens.Upsert(ctx, record)
}

// FetchData serves the pull path. An expired credential is refreshed
// synchronously before the gated fetch; refresh failure deletes the record
// and reports the integration as disconnected rather than erroring.
func (s *integrationService) FetchData(ctx context.Context, providerName, userID string) (*dto.DataResponse, error) {
	if !domain.KnownProvider(providerName) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	record, err := s.tokens.GetByUserProvider(ctx, userID, providerName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &dto.DataResponse{Connected: false}, nil
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)

	// Garmin is push-fed: serve whatever the webhook path has accumulated.
	if providerName == domain.ProviderGarmin {
		return s.snapshotResponse(ctx, userID, providerName, today)
	}

	p, ok := s.oauth2[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	if record.Expired(s.now()) {
		record, err = s.refreshOrInvalidate(ctx, p, record)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return &dto.DataResponse{Connected: false}, nil
		}
	}

	snapshot, err := p.Fetch(ctx, record.AccessToken, today)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s data: %w", providerName, err)
	}

	snapshot.UserID = userID
	if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
		// The caller still gets the freshly fetched data; the snapshot row
		// just missed this write.
		s.logger.Error("failed to persist snapshot",
			zap.String("provider", providerName),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return snapshotToResponse(snapshot, true), nil
}

// refreshOrInvalidate returns the refreshed record, or (nil, nil) when the
// refresh failed and the credential was deleted to force re-authorization.
func (s *integrationService) refreshOrInvalidate(ctx context.Context, p provider.OAuth2Provider, record *domain.TokenRecord) (*domain.TokenRecord, error) {
	tokens, err := p.Refresh(ctx, record.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed, disconnecting integration",
			zap.String("provider", record.Provider),
			zap.String("user_id", record.UserID),
			zap.Error(err),
		)
		if delErr := s.tokens.Delete(ctx, record.UserID, record.Provider); delErr != nil && !errors.Is(delErr, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to remove stale credentials: %w", delErr)
		}
		return nil, nil
	}

	// Some providers omit the refresh token on renewal; keep the old one.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = record.RefreshToken
	}

	if err := s.persistTokens(ctx, record.UserID, record.Provider, tokens); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	refreshed := *record
	refreshed.AccessToken = tokens.AccessToken
	refreshed.RefreshToken = tokens.RefreshToken
	refreshed.ExpiresAt = tokens.ExpiresAt
	return &refreshed, nil
}

func (s *integrationService) snapshotResponse(ctx context.Context, userID, source string, day time.Time) (*dto.DataResponse, error) {
	snapshot, err := s.snapshots.GetByKey(ctx, userID, source, day)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &dto.DataResponse{Connected: true, Source: source, Date: day.Format("2006-01-02")}, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshotToResponse(snapshot, true), nil
}

// Disconnect deletes the credential record and every snapshot the source has
// written for the user.
func (s *integrationService) Disconnect(ctx context.Context, providerName, userID string) error {
	if !domain.KnownProvider(providerName) {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	if err := s.tokens.Delete(ctx, userID, providerName); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	if err := s.snapshots.DeleteByUserSource(ctx, userID, providerName); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	return nil
}

func snapshotToResponse(snapshot *domain.Snapshot, connected bool) *dto.DataResponse {
	resp := &dto.DataResponse{
		Connected: connected,
		Source:    snapshot.Source,
		Date:      snapshot.Date.Format("2006-01-02"),
	}

	if snapshot.RecoveryScore != nil || snapshot.RestingHeartRate != nil || snapshot.HRV != nil {
		resp.Recovery = &dto.RecoveryMetrics{
			Score:            snapshot.RecoveryScore,
			RestingHeartRate: snapshot.RestingHeartRate,
			HRV:              snapshot.HRV,
		}
	}
	if snapshot.SleepScore != nil || snapshot.SleepDurationMs != nil || snapshot.DeepSleepMs != nil {
		resp.Sleep = &dto.SleepMetrics{
			Score:       snapshot.SleepScore,
			DurationMs:  snapshot.SleepDurationMs,
			DeepSleepMs: snapshot.DeepSleepMs,
		}
	}
	if snapshot.StrainScore != nil || snapshot.Calories != nil {
		resp.Strain = &dto.StrainMetrics{
			Score:    snapshot.StrainScore,
			Calories: snapshot.Calories,
		}
	}
	if snapshot.StressScore != nil || snapshot.BodyBattery != nil {
		resp.Stress = &dto.StressMetrics{
			Score:       snapshot.StressScore,
			BodyBattery: snapshot.BodyBattery,
		}
	}

	return resp
}
