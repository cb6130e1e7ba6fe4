package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/peakform/biometrics-service/internal/domain"
	"github.com/peakform/biometrics-service/pkg/database"
)

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *database.Postgres
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *database.Postgres) TokenRepository {
	return &tokenRepository{db: db}
}

// Upsert creates or replaces the credential record for (user, provider).
// A callback or refresh always carries the full new triple, so the conflict
// branch overwrites rather than merges.
func (r *tokenRepository) Upsert(ctx context.Context, token *domain.TokenRecord) error {
	query := `
		INSERT INTO provider_tokens (id, user_id, provider, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at
	`

	if token.ID == "" {
		token.ID = uuid.New().String()
	}

	now := time.Now()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	var expiresAt sql.NullTime
	if token.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *token.ExpiresAt, Valid: true}
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Provider,
		token.AccessToken,
		token.RefreshToken,
		expiresAt,
		token.Scopes,
		token.CreatedAt,
		token.UpdatedAt,
	)

	if err != nil {
		// The access-token column carries its own unique index: the webhook
		// join by token value must stay unambiguous.
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("access token collision for provider %s: %w", token.Provider, ErrDuplicateToken)
			}
		}
		return fmt.Errorf("failed to upsert provider token: %w", err)
	}

	return nil
}

// GetByUserProvider retrieves the credential record for (user, provider)
func (r *tokenRepository) GetByUserProvider(ctx context.Context, userID, provider string) (*domain.TokenRecord, error) {
	query := `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, scopes, created_at, updated_at
		FROM provider_tokens
		WHERE user_id = $1 AND provider = $2
	`

	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, userID, provider),
		fmt.Sprintf("token for user %s provider %s", userID, provider))
}

// GetByAccessToken retrieves the credential record holding accessToken
func (r *tokenRepository) GetByAccessToken(ctx context.Context, accessToken string) (*domain.TokenRecord, error) {
	query := `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, scopes, created_at, updated_at
		FROM provider_tokens
		WHERE access_token = $1
	`

	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, accessToken), "token by access token")
}

func (r *tokenRepository) scanOne(row *sql.Row, what string) (*domain.TokenRecord, error) {
	token := &domain.TokenRecord{}
	var expiresAt sql.NullTime

	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Provider,
		&token.AccessToken,
		&token.RefreshToken,
		&expiresAt,
		&token.Scopes,
		&token.CreatedAt,
		&token.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s not found: %w", what, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}

	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}

	return token, nil
}

// Delete removes the credential record for (user, provider)
func (r *tokenRepository) Delete(ctx context.Context, userID, provider string) error {
	query := `DELETE FROM provider_tokens WHERE user_id = $1 AND provider = $2`

	result, err := r.db.DB.ExecContext(ctx, query, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete provider token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("token for user %s provider %s not found: %w", userID, provider, ErrNotFound)
	}

	return nil
}
