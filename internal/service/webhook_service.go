package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/peakform/biometrics-service/internal/domain"
	"github.com/peakform/biometrics-service/internal/provider"
	"github.com/peakform/biometrics-service/internal/repository"
	"go.uber.org/zap"
)

// WebhookService ingests Garmin push batches. Records are attributed to
// users by exact match on a previously stored access token; unmatched or
// failing records are skipped so one bad record never costs the batch.
type WebhookService struct {
	tokens    repository.TokenRepository
	snapshots repository.SnapshotRepository
	logger    *zap.Logger

	// The proxy conversions are swappable: they are approximations, not
	// measurements, and live behind named functions for that reason.
	hrvProxy    func(averageStressLevel float64) float64
	strainProxy func(activeKilocalories float64) float64
}

// NewWebhookService creates the webhook ingestor with the default proxy
// conversions.
func NewWebhookService(
	tokens repository.TokenRepository,
	snapshots repository.SnapshotRepository,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		tokens:      tokens,
		snapshots:   snapshots,
		logger:      logger,
		hrvProxy:    provider.HRVProxyFromStress,
		strainProxy: provider.StrainProxyFromCalories,
	}
}

// IngestGarminPush processes a batch record-by-record, sequentially. Worst
// case latency is bounded by batch size, which suits at-least-once webhook
// delivery.
func (s *WebhookService) IngestGarminPush(ctx context.Context, batch *provider.GarminPushBatch) {
	for i := range batch.Dailies {
		s.ingestDaily(ctx, &batch.Dailies[i])
	}
	for i := range batch.Sleeps {
		s.ingestSleep(ctx, &batch.Sleeps[i])
	}
	for i := range batch.StressDetails {
		s.ingestStress(ctx, &batch.StressDetails[i])
	}
}

// resolveUser maps a record's access token to its owner. Unknown tokens are
// skipped silently: the provider keeps pushing for users who disconnected.
func (s *WebhookService) resolveUser(ctx context.Context, accessToken, recordType string) (string, bool) {
	if accessToken == "" {
		return "", false
	}

	record, err := s.tokens.GetByAccessToken(ctx, accessToken)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("webhook token lookup failed",
				zap.String("record_type", recordType),
				zap.Error(err),
			)
		}
		return "", false
	}

	return record.UserID, true
}

func (s *WebhookService) ingestDaily(ctx context.Context, daily *provider.GarminDailySummary) {
	userID, ok := s.resolveUser(ctx, daily.UserAccessToken, "daily")
	if !ok {
		return
	}

	snapshot := &domain.Snapshot{
		UserID:           userID,
		Source:           domain.ProviderGarmin,
		Date:             domain.DayOf(daily.StartTimeInSeconds),
		RecoveryScore:    daily.BodyBatteryMostRecentValue,
		BodyBattery:      daily.BodyBatteryMostRecentValue,
		RestingHeartRate: daily.RestingHeartRateInBeatsPerMinute,
		Calories:         daily.ActiveKilocalories,
		StressScore:      daily.AverageStressLevel,
	}

	if daily.AverageStressLevel != nil {
		snapshot.HRV = domain.Float(s.hrvProxy(*daily.AverageStressLevel))
	}
	if daily.ActiveKilocalories != nil {
		snapshot.StrainScore = domain.Float(s.strainProxy(*daily.ActiveKilocalories))
	}

	s.upsert(ctx, snapshot, "daily")
}

func (s *WebhookService) ingestSleep(ctx context.Context, sleep *provider.GarminSleepSummary) {
	userID, ok := s.resolveUser(ctx, sleep.UserAccessToken, "sleep")
	if !ok {
		return
	}

	snapshot := &domain.Snapshot{
		UserID: userID,
		Source: domain.ProviderGarmin,
		Date:   domain.DayOf(sleep.StartTimeInSeconds),
	}

	if sleep.OverallSleepScore != nil {
		snapshot.SleepScore = sleep.OverallSleepScore.Value
	}
	if sleep.DurationInSeconds != nil {
		snapshot.SleepDurationMs = domain.Int64(provider.SecondsToMilliseconds(*sleep.DurationInSeconds))
	}
	if sleep.DeepSleepDurationInSeconds != nil {
		snapshot.DeepSleepMs = domain.Int64(provider.SecondsToMilliseconds(*sleep.DeepSleepDurationInSeconds))
	}

	snapshot.RawPayload = annotatedSleepPayload(sleep)

	s.upsert(ctx, snapshot, "sleep")
}

func (s *WebhookService) ingestStress(ctx context.Context, stress *provider.GarminStressDetail) {
	userID, ok := s.resolveUser(ctx, stress.UserAccessToken, "stress")
	if !ok {
		return
	}

	snapshot := &domain.Snapshot{
		UserID:      userID,
		Source:      domain.ProviderGarmin,
		Date:        domain.DayOf(stress.StartTimeInSeconds),
		StressScore: stress.AverageStressLevel,
		BodyBattery: stress.BodyBatteryChargedValue,
	}

	s.upsert(ctx, snapshot, "stress")
}

func (s *WebhookService) upsert(ctx context.Context, snapshot *domain.Snapshot, recordType string) {
	if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
		s.logger.Error("webhook snapshot upsert failed",
			zap.String("record_type", recordType),
			zap.String("user_id", snapshot.UserID),
			zap.Time("date", snapshot.Date),
			zap.Error(err),
		)
	}
}

// annotatedSleepPayload stores the original record plus the computed light
// and REM millisecond durations the summary only carries in seconds.
func annotatedSleepPayload(sleep *provider.GarminSleepSummary) json.RawMessage {
	payload := map[string]interface{}{"record": sleep}
	if sleep.LightSleepDurationInSeconds != nil {
		payload["lightSleepMs"] = provider.SecondsToMilliseconds(*sleep.LightSleepDurationInSeconds)
	}
	if sleep.RemSleepInSeconds != nil {
		payload["remSleepMs"] = provider.SecondsToMilliseconds(*sleep.RemSleepInSeconds)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}
