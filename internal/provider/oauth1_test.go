package provider

import (
	"net/url"
	"strings"
	"testing"
)

func TestBaseStringSortsParameters(t *testing.T) {
	signer := OAuth1Signer{ConsumerKey: "key", ConsumerSecret: "secret"}

	params := url.Values{}
	params.Set("oauth_timestamp", "1700000000")
	params.Set("oauth_consumer_key", "key")
	params.Set("oauth_nonce", "abc123")

	base := signer.BaseString("post", "https://example.com/oauth/request_token", params)

	if !strings.HasPrefix(base, "POST&") {
		t.Errorf("Expected method to be upper-cased, got '%s'", base)
	}

	decoded, err := url.QueryUnescape(strings.SplitN(base, "&", 3)[2])
	if err != nil {
		t.Fatalf("Failed to decode parameter string: %v", err)
	}
	expected := "oauth_consumer_key=key&oauth_nonce=abc123&oauth_timestamp=1700000000"
	if decoded != expected {
		t.Errorf("Expected sorted parameter string '%s', got '%s'", expected, decoded)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	signer := OAuth1Signer{ConsumerKey: "key", ConsumerSecret: "secret"}

	params := url.Values{}
	params.Set("oauth_consumer_key", "key")
	params.Set("oauth_nonce", "abc123")
	params.Set("oauth_timestamp", "1700000000")

	first := signer.Sign("POST", "https://example.com/oauth/request_token", params, "")
	second := signer.Sign("POST", "https://example.com/oauth/request_token", params, "")

	if first != second {
		t.Errorf("Expected identical signatures for identical inputs, got '%s' and '%s'", first, second)
	}
}

func TestSignChangesWithAnyParameter(t *testing.T) {
	signer := OAuth1Signer{ConsumerKey: "key", ConsumerSecret: "secret"}

	params := url.Values{}
	params.Set("oauth_consumer_key", "key")
	params.Set("oauth_nonce", "abc123")
	params.Set("oauth_timestamp", "1700000000")

	base := signer.Sign("POST", "https://example.com/oauth/request_token", params, "")

	params.Set("oauth_nonce", "abc124")
	changed := signer.Sign("POST", "https://example.com/oauth/request_token", params, "")

	if base == changed {
		t.Error("Expected signature to change when a parameter changes")
	}
}

func TestSignChangesWithTokenSecret(t *testing.T) {
	signer := OAuth1Signer{ConsumerKey: "key", ConsumerSecret: "secret"}

	params := url.Values{}
	params.Set("oauth_consumer_key", "key")

	without := signer.Sign("POST", "https://example.com/oauth/access_token", params, "")
	with := signer.Sign("POST", "https://example.com/oauth/access_token", params, "token-secret")

	if without == with {
		t.Error("Expected signature to change with token secret in the key")
	}
}

func TestPercentEncode(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"with space", "with%20space"},
		{"a+b", "a%2Bb"},
		{"unreserved-._~", "unreserved-._~"},
		{"slash/and?query=1", "slash%2Fand%3Fquery%3D1"},
	}

	for _, tc := range cases {
		if got := percentEncode(tc.in); got != tc.expected {
			t.Errorf("percentEncode(%q): expected '%s', got '%s'", tc.in, tc.expected, got)
		}
	}
}

func TestNonce(t *testing.T) {
	first, err := Nonce()
	if err != nil {
		t.Fatalf("Failed to generate nonce: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("Expected 32 hex characters, got %d", len(first))
	}

	second, err := Nonce()
	if err != nil {
		t.Fatalf("Failed to generate nonce: %v", err)
	}
	if first == second {
		t.Error("Expected distinct nonces")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	signer := OAuth1Signer{}

	params := url.Values{}
	params.Set("oauth_token", "tok")
	params.Set("oauth_consumer_key", "key")

	header := signer.AuthorizationHeader(params)

	if !strings.HasPrefix(header, "OAuth ") {
		t.Errorf("Expected header to start with 'OAuth ', got '%s'", header)
	}
	if !strings.Contains(header, `oauth_consumer_key="key"`) {
		t.Errorf("Expected header to carry consumer key, got '%s'", header)
	}
	if strings.Index(header, "oauth_consumer_key") > strings.Index(header, "oauth_token") {
		t.Errorf("Expected parameters in sorted order, got '%s'", header)
	}
}
