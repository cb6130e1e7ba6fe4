package acceptance

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/peakform/biometrics-service/internal/dto"
)

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Suite) postWebhook(body []byte, signature string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, s.BaseURL+"/api/v1/webhooks/garmin", bytes.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) TestGarminWebhookIngestsBatch() {
	s.seedToken("user-1", "garmin", "garmin-access-token", "garmin-token-secret", nil)

	now := time.Now().UTC().Unix()
	body := []byte(fmt.Sprintf(`{
		"dailies": [{
			"userAccessToken": "garmin-access-token",
			"startTimeInSeconds": %d,
			"bodyBatteryMostRecentValue": 60,
			"restingHeartRateInBeatsPerMinute": 55,
			"averageStressLevel": 30,
			"activeKilocalories": 450
		}],
		"sleeps": [{
			"userAccessToken": "garmin-access-token",
			"startTimeInSeconds": %d,
			"overallSleepScore": {"value": 81},
			"durationInSeconds": 27000,
			"deepSleepDurationInSeconds": 5400
		}]
	}`, now, now))

	resp := s.postWebhook(body, signWebhookBody(body))
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	// The push lands in one merged per-day snapshot and the pull endpoint
	// serves it back.
	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/api/v1/integrations/garmin/data", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.bearerFor("user-1"))

	dataResp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer dataResp.Body.Close()
	s.Require().Equal(http.StatusOK, dataResp.StatusCode)

	var data dto.DataResponse
	s.Require().NoError(json.NewDecoder(dataResp.Body).Decode(&data))

	s.True(data.Connected)
	s.Require().NotNil(data.Recovery)
	s.Equal(60.0, *data.Recovery.Score)
	s.Equal(70.0, *data.Recovery.HRV)
	s.Require().NotNil(data.Sleep)
	s.Equal(81.0, *data.Sleep.Score)
	s.Equal(int64(27000000), *data.Sleep.DurationMs)
	s.Require().NotNil(data.Strain)
	s.Equal(5.0, *data.Strain.Score)
	s.Require().NotNil(data.Stress)
	s.Equal(30.0, *data.Stress.Score)
}

func (s *Suite) TestGarminWebhookSkipsUnknownTokens() {
	s.seedToken("user-1", "garmin", "garmin-access-token", "garmin-token-secret", nil)

	now := time.Now().UTC().Unix()
	body := []byte(fmt.Sprintf(`{
		"dailies": [
			{"userAccessToken": "token-of-disconnected-user", "startTimeInSeconds": %d, "averageStressLevel": 50},
			{"userAccessToken": "garmin-access-token", "startTimeInSeconds": %d, "averageStressLevel": 30}
		]
	}`, now, now))

	resp := s.postWebhook(body, signWebhookBody(body))
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var count int
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count))
	s.Equal(1, count)
}

func (s *Suite) TestGarminWebhookRejectsBadSignature() {
	body := []byte(`{"dailies":[]}`)

	resp := s.postWebhook(body, "deadbeef")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestGarminWebhookRejectsMalformedBody() {
	body := []byte("not json")

	resp := s.postWebhook(body, signWebhookBody(body))
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
