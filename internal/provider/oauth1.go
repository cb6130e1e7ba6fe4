package provider

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Errors shared by the provider clients.
var (
	// ErrNotConfigured is returned when required provider credentials or
	// URLs are missing. It is checked before any network call.
	ErrNotConfigured = fmt.Errorf("provider is not configured")

	// ErrUpstream is returned for a non-2xx provider response.
	ErrUpstream = fmt.Errorf("provider request failed")
)

// OAuth1Signer produces HMAC-SHA1 signatures for OAuth 1.0a requests.
// Signing is deterministic for fixed inputs; nonce and timestamp are supplied
// by the caller as ordinary parameters.
type OAuth1Signer struct {
	ConsumerKey    string
	ConsumerSecret string
}

// BaseString builds the signature base string:
// METHOD&enc(url)&enc(sortedParamString). Parameter sorting is lexicographic
// by encoded key and part of the provider contract.
func (s OAuth1Signer) BaseString(method, rawURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(params))
	for _, k := range keys {
		for _, v := range params[k] {
			pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
		}
	}

	return strings.ToUpper(method) + "&" + percentEncode(rawURL) + "&" + percentEncode(strings.Join(pairs, "&"))
}

// Sign returns the base64 HMAC-SHA1 signature over the base string, keyed by
// enc(consumerSecret)&enc(tokenSecret). tokenSecret is empty for the
// request-token call.
func (s OAuth1Signer) Sign(method, rawURL string, params url.Values, tokenSecret string) string {
	key := percentEncode(s.ConsumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(s.BaseString(method, rawURL, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// AuthorizationHeader renders params as an OAuth Authorization header value.
func (s OAuth1Signer) AuthorizationHeader(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%q", percentEncode(k), percentEncode(params.Get(k))))
	}

	return "OAuth " + strings.Join(pairs, ", ")
}

// Nonce returns 16 random bytes, hex encoded.
func Nonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// percentEncode implements the strict RFC 3986 encoding OAuth 1.0a requires.
// url.QueryEscape is close but encodes spaces as '+'.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
