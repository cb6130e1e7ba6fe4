package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/peakform/biometrics-service/internal/domain"
	"github.com/peakform/biometrics-service/internal/provider"
	"github.com/peakform/biometrics-service/internal/repository"
)

// fakeTokenRepo is an in-memory TokenRepository keyed by (user, provider)
// with a secondary access-token index, mirroring the table's unique indexes.
type fakeTokenRepo struct {
	mu      sync.Mutex
	records map[string]*domain.TokenRecord
	failAll bool
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{records: make(map[string]*domain.TokenRecord)}
}

func tokenKey(userID, provider string) string { return userID + "|" + provider }

func (r *fakeTokenRepo) Upsert(_ context.Context, token *domain.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return fmt.Errorf("store unavailable")
	}
	clone := *token
	r.records[tokenKey(token.UserID, token.Provider)] = &clone
	return nil
}

func (r *fakeTokenRepo) GetByUserProvider(_ context.Context, userID, provider string) (*domain.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[tokenKey(userID, provider)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *fakeTokenRepo) GetByAccessToken(_ context.Context, accessToken string) (*domain.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.AccessToken == accessToken {
			clone := *record
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTokenRepo) Delete(_ context.Context, userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tokenKey(userID, provider)
	if _, ok := r.records[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, key)
	return nil
}

// fakeSnapshotRepo is an in-memory SnapshotRepository that applies the same
// merge rule as the SQL upsert: a non-nil incoming field wins, a nil one
// keeps the stored value.
type fakeSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[string]*domain.Snapshot
	upserts   int
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{snapshots: make(map[string]*domain.Snapshot)}
}

func snapshotKey(userID, source string, date time.Time) string {
	return userID + "|" + source + "|" + date.Format("2006-01-02")
}

func (r *fakeSnapshotRepo) Upsert(_ context.Context, snapshot *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++

	key := snapshotKey(snapshot.UserID, snapshot.Source, snapshot.Date)
	existing, ok := r.snapshots[key]
	if !ok {
		clone := *snapshot
		r.snapshots[key] = &clone
		return nil
	}

	mergeFloat(&existing.RecoveryScore, snapshot.RecoveryScore)
	mergeFloat(&existing.RestingHeartRate, snapshot.RestingHeartRate)
	mergeFloat(&existing.HRV, snapshot.HRV)
	mergeFloat(&existing.SleepScore, snapshot.SleepScore)
	mergeInt64(&existing.SleepDurationMs, snapshot.SleepDurationMs)
	mergeInt64(&existing.DeepSleepMs, snapshot.DeepSleepMs)
	mergeFloat(&existing.StrainScore, snapshot.StrainScore)
	mergeFloat(&existing.Calories, snapshot.Calories)
	mergeFloat(&existing.StressScore, snapshot.StressScore)
	mergeFloat(&existing.BodyBattery, snapshot.BodyBattery)
	if snapshot.RawPayload != nil {
		existing.RawPayload = snapshot.RawPayload
	}
	return nil
}

func mergeFloat(dst **float64, src *float64) {
	if src != nil {
		*dst = src
	}
}

func mergeInt64(dst **int64, src *int64) {
	if src != nil {
		*dst = src
	}
}

func (r *fakeSnapshotRepo) GetByKey(_ context.Context, userID, source string, date time.Time) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[snapshotKey(userID, source, date)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *snapshot
	return &clone, nil
}

func (r *fakeSnapshotRepo) DeleteByUserSource(_ context.Context, userID, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, snapshot := range r.snapshots {
		if snapshot.UserID == userID && snapshot.Source == source {
			delete(r.snapshots, key)
		}
	}
	return nil
}

// fakeOAuth2Provider scripts the provider interactions for one test.
type fakeOAuth2Provider struct {
	name string

	authURL string

	exchangeTokens *provider.Tokens
	exchangeErr    error

	refreshTokens *provider.Tokens
	refreshErr    error
	refreshCalls  int

	fetchSnapshot *domain.Snapshot
	fetchErr      error
	fetchedWith   string
}

func (f *fakeOAuth2Provider) Name() string { return f.name }

func (f *fakeOAuth2Provider) AuthCodeURL(state string) (string, error) {
	return f.authURL + "?state=" + state, nil
}

func (f *fakeOAuth2Provider) Exchange(_ context.Context, code string) (*provider.Tokens, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeTokens, nil
}

func (f *fakeOAuth2Provider) Refresh(_ context.Context, refreshToken string) (*provider.Tokens, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshTokens, nil
}

func (f *fakeOAuth2Provider) Fetch(_ context.Context, accessToken string, day time.Time) (*domain.Snapshot, error) {
	f.fetchedWith = accessToken
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snapshot := *f.fetchSnapshot
	snapshot.Date = day
	return &snapshot, nil
}
