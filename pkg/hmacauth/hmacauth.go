// Package hmacauth signs and verifies internal service-to-service requests.
//
// A request is signed over a canonical message made of five newline-joined
// fields: the upper-cased method, the path with a single leading slash, the
// raw body, the caller's service id and the unix timestamp. The signature is
// the hex-encoded HMAC-SHA256 of that message under a shared secret.
package hmacauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Headers carrying the caller identity and signature.
const (
	HeaderServiceID = "x-service-id"
	HeaderTimestamp = "x-service-timestamp"
	HeaderSignature = "x-service-signature"
)

// DefaultTolerance is the accepted clock distance between caller and receiver.
const DefaultTolerance = 300 * time.Second

// CanonicalMessage builds the exact string that is signed.
func CanonicalMessage(method, path string, body []byte, serviceID, timestamp string) string {
	return strings.Join([]string{
		strings.ToUpper(method),
		"/" + strings.TrimLeft(path, "/"),
		string(body),
		serviceID,
		timestamp,
	}, "\n")
}

// Sign returns the hex-encoded HMAC-SHA256 of the canonical message.
func Sign(method, path string, body []byte, serviceID, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalMessage(method, path, body, serviceID, timestamp)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Signer attaches authentication headers to outgoing requests.
type Signer struct {
	ServiceID string
	Secret    string
	Now       func() time.Time
}

// SignRequest computes the signature for req with the given body and sets
// the three authentication headers on it.
func (s Signer) SignRequest(req *http.Request, body []byte) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	timestamp := strconv.FormatInt(now().Unix(), 10)

	req.Header.Set(HeaderServiceID, s.ServiceID)
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, Sign(req.Method, req.URL.Path, body, s.ServiceID, timestamp, s.Secret))
}

// Verifier authenticates incoming internal requests.
type Verifier struct {
	allowed   map[string]struct{}
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier returns a Verifier accepting the given caller ids. A
// non-positive tolerance falls back to DefaultTolerance.
func NewVerifier(allowedServiceIDs []string, secret string, tolerance time.Duration) *Verifier {
	allowed := make(map[string]struct{}, len(allowedServiceIDs))
	for _, id := range allowedServiceIDs {
		allowed[id] = struct{}{}
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		allowed:   allowed,
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for the timestamp window.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Credentials are the values a caller supplies in the authentication headers.
type Credentials struct {
	ServiceID string
	Timestamp string
	Signature string
}

// CredentialsFromHeader reads the authentication headers.
func CredentialsFromHeader(h http.Header) Credentials {
	return Credentials{
		ServiceID: h.Get(HeaderServiceID),
		Timestamp: h.Get(HeaderTimestamp),
		Signature: h.Get(HeaderSignature),
	}
}

// Verify checks the credentials against the request method, path and raw
// body. The checks run in a fixed order and the first failure is returned.
func (v *Verifier) Verify(method, path string, body []byte, cred Credentials) error {
	if cred.ServiceID == "" || cred.Timestamp == "" || cred.Signature == "" {
		return ErrMissingHeaders
	}

	if _, ok := v.allowed[cred.ServiceID]; !ok {
		return ErrUnknownService
	}

	ts, err := strconv.ParseInt(cred.Timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	drift := v.now().Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(v.tolerance/time.Second) {
		return ErrStaleTimestamp
	}

	if v.secret == "" {
		return ErrBadSignature
	}
	expected := Sign(method, path, body, cred.ServiceID, cred.Timestamp, v.secret)
	if !hmac.Equal([]byte(expected), []byte(cred.Signature)) {
		return ErrBadSignature
	}

	return nil
}
