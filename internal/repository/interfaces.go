package repository

import (
	"context"
	"time"

	"github.com/peakform/biometrics-service/internal/domain"
)

// TokenRepository defines persistence for provider OAuth credentials.
type TokenRepository interface {
	// Upsert creates or replaces the record for (user, provider).
	Upsert(ctx context.Context, token *domain.TokenRecord) error
	GetByUserProvider(ctx context.Context, userID, provider string) (*domain.TokenRecord, error)
	// GetByAccessToken resolves the owning connection for a webhook record.
	GetByAccessToken(ctx context.Context, accessToken string) (*domain.TokenRecord, error)
	Delete(ctx context.Context, userID, provider string) error
}

// SnapshotRepository defines persistence for daily biometric snapshots.
type SnapshotRepository interface {
	// Upsert merges the non-nil fields of snapshot into the row keyed by
	// (user, source, date), creating it when absent. Nil fields never
	// overwrite stored values.
	Upsert(ctx context.Context, snapshot *domain.Snapshot) error
	GetByKey(ctx context.Context, userID, source string, date time.Time) (*domain.Snapshot, error)
	DeleteByUserSource(ctx context.Context, userID, source string) error
}
