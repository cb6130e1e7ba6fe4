package domain

import "time"

// Provider identifiers for the supported wearable integrations.
const (
	ProviderGarmin = "garmin"
	ProviderWhoop  = "whoop"
	ProviderOura   = "oura"
)

// KnownProvider reports whether name is one of the supported providers.
func KnownProvider(name string) bool {
	switch name {
	case ProviderGarmin, ProviderWhoop, ProviderOura:
		return true
	}
	return false
}

// TokenRecord is the persisted OAuth credential pair for one (user, provider).
// The access token doubles as the join key for webhook attribution, since the
// push path carries no user id of its own.
type TokenRecord struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Provider     string     `json:"provider" db:"provider"`
	AccessToken  string     `json:"-" db:"access_token"`
	RefreshToken string     `json:"-" db:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at" db:"expires_at"`
	Scopes       string     `json:"scopes" db:"scopes"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the access token has passed its expiry. OAuth 1.0a
// tokens carry no expiry and never report expired.
func (t *TokenRecord) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// SessionClaims is the verified content of an inbound bearer session token.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// IsExpired checks if the session is expired
func (c SessionClaims) IsExpired() bool {
	return time.Now().Unix() > c.Exp
}
