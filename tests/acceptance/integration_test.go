package acceptance

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/peakform/biometrics-service/internal/dto"
)

func (s *Suite) seedWhoopToken(userID, accessToken, refreshToken string, expiresAt *time.Time) {
	s.seedToken(userID, "whoop", accessToken, refreshToken, expiresAt)
}

func (s *Suite) seedToken(userID, provider, accessToken, refreshToken string, expiresAt *time.Time) {
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	_, err := s.Postgres.DB.Exec(`
		INSERT INTO provider_tokens (id, user_id, provider, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '', now(), now())
	`, uuid.New().String(), userID, provider, accessToken, refreshToken, expiry)
	s.Require().NoError(err)
}

func (s *Suite) TestGarminAuthRequiresUserIDParam() {
	resp, err := http.Get(s.BaseURL + "/api/v1/integrations/garmin/auth")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestWhoopAuthRequiresSession() {
	resp, err := http.Get(s.BaseURL + "/api/v1/integrations/whoop/auth")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestWhoopAuthReturnsSignedAuthorizeURL() {
	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/api/v1/integrations/whoop/auth", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-1"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body dto.AuthURLResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))

	parsed, err := url.Parse(body.URL)
	s.Require().NoError(err)

	state := parsed.Query().Get("state")
	userID, err := s.States.Verify(state)
	s.Require().NoError(err)
	s.Equal("user-1", userID)
	s.Equal("whoop-client-id", parsed.Query().Get("client_id"))
}

func (s *Suite) TestWhoopCallbackPersistsConnection() {
	state := s.States.Sign("user-1")

	resp, err := noRedirectClient().Get(s.BaseURL + "/api/v1/integrations/whoop/callback?code=auth-code&state=" + url.QueryEscape(state))
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusFound, resp.StatusCode)
	s.Equal(appBaseURL+"/?whoop=connected", resp.Header.Get("Location"))

	var accessToken, refreshToken string
	err = s.Postgres.DB.QueryRow(`
		SELECT access_token, refresh_token FROM provider_tokens
		WHERE user_id = $1 AND provider = 'whoop'
	`, "user-1").Scan(&accessToken, &refreshToken)
	s.Require().NoError(err)
	s.Equal("whoop-access", accessToken)
	s.Equal("whoop-refresh", refreshToken)
}

func (s *Suite) TestWhoopCallbackRejectsTamperedState() {
	resp, err := noRedirectClient().Get(s.BaseURL + "/api/v1/integrations/whoop/callback?code=auth-code&state=user-2.deadbeefdeadbeef")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusFound, resp.StatusCode)
	s.Equal(appBaseURL+"/?whoop=error&reason=invalid_state", resp.Header.Get("Location"))

	var count int
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM provider_tokens`).Scan(&count))
	s.Equal(0, count)
}

func (s *Suite) TestWhoopCallbackMissingParams() {
	resp, err := noRedirectClient().Get(s.BaseURL + "/api/v1/integrations/whoop/callback")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusFound, resp.StatusCode)
	s.Equal(appBaseURL+"/?whoop=error&reason=missing_params", resp.Header.Get("Location"))
}

func (s *Suite) TestWhoopDataReturnsNormalizedMetrics() {
	expiry := time.Now().Add(time.Hour).UTC()
	s.seedWhoopToken("user-1", "whoop-access", "whoop-refresh", &expiry)

	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/api/v1/integrations/whoop/data", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-1"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body dto.DataResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))

	s.True(body.Connected)
	s.Equal("whoop", body.Source)
	s.Require().NotNil(body.Recovery)
	s.Equal(85.0, *body.Recovery.Score)
	s.Require().NotNil(body.Sleep)
	s.Equal(int64(4500), *body.Sleep.DurationMs)
	s.Require().NotNil(body.Strain)
	s.Equal(14.2, *body.Strain.Score)

	// The fetch also lands in the snapshots table.
	var count int
	s.Require().NoError(s.Postgres.DB.QueryRow(`
		SELECT COUNT(*) FROM snapshots WHERE user_id = $1 AND source = 'whoop'
	`, "user-1").Scan(&count))
	s.Equal(1, count)
}

func (s *Suite) TestWhoopDataExpiredTokenIsRefreshed() {
	expired := time.Now().Add(-time.Hour).UTC()
	s.seedWhoopToken("user-1", "stale-access", "whoop-refresh", &expired)

	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/api/v1/integrations/whoop/data", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-1"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body dto.DataResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.True(body.Connected)

	var accessToken string
	s.Require().NoError(s.Postgres.DB.QueryRow(`
		SELECT access_token FROM provider_tokens WHERE user_id = $1 AND provider = 'whoop'
	`, "user-1").Scan(&accessToken))
	s.Equal("whoop-access", accessToken)
}

func (s *Suite) TestWhoopDataWithoutConnection() {
	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/api/v1/integrations/whoop/data", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-without-connection"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body dto.DataResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.False(body.Connected)
	s.Nil(body.Recovery)
}

func (s *Suite) TestDisconnectRemovesConnectionAndSnapshots() {
	expiry := time.Now().Add(time.Hour).UTC()
	s.seedWhoopToken("user-1", "whoop-access", "whoop-refresh", &expiry)

	// Pull once so a snapshot row exists.
	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/api/v1/integrations/whoop/data", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-1"))
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, s.BaseURL+"/api/v1/integrations/whoop/disconnect", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-1"))
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var tokens, snapshots int
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM provider_tokens WHERE user_id = 'user-1'`).Scan(&tokens))
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE user_id = 'user-1'`).Scan(&snapshots))
	s.Equal(0, tokens)
	s.Equal(0, snapshots)
}

func (s *Suite) TestDisconnectWithoutConnection() {
	req, err := http.NewRequest(http.MethodPost, s.BaseURL+"/api/v1/integrations/whoop/disconnect", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-never-connected"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}
