package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Credentials holds the static credential pair and signing scope for the
// upstream MinIO endpoint. The secret key must never be logged or echoed
// downstream.
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string
}

// Request is the immutable input to a signing operation. Path is the
// resolved signing path without query; RawQuery is the raw query string as
// received, possibly empty.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Headers  http.Header
	Body     []byte
}

// Signer produces SigV4-signed header sets for outbound requests. It holds
// no mutable state; a single Signer may be shared across goroutines.
type Signer struct {
	creds Credentials
	now   func() time.Time
}

// New creates a signer using the wall clock.
func New(creds Credentials) *Signer {
	return &Signer{creds: creds, now: time.Now}
}

// NewWithClock creates a signer with an injected time source for tests.
func NewWithClock(creds Credentials, now func() time.Time) *Signer {
	return &Signer{creds: creds, now: now}
}

// Sign computes the SigV4 signature for the request and returns the full
// outbound header set: the caller's headers (minus any inbound
// Authorization and Host), the Host for the upstream target, X-Amz-Date,
// X-Amz-Content-Sha256 and Authorization. The timestamp and date stamp are
// taken from a single instant so they can never disagree.
func (s *Signer) Sign(req Request, upstreamHost string) http.Header {
	t := s.now().UTC()
	amzDate := t.Format(amzDateFormat)
	dateStamp := t.Format(dateStampFormat)
	scope := strings.Join([]string{dateStamp, s.creds.Region, s.creds.Service, "aws4_request"}, "/")

	payloadSum := sha256.Sum256(req.Body)
	payloadHash := hex.EncodeToString(payloadSum[:])

	headers := make(http.Header, len(req.Headers)+4)
	for name, values := range req.Headers {
		switch textproto.CanonicalMIMEHeaderKey(name) {
		case "Authorization", "Host":
			continue
		}
		headers[textproto.CanonicalMIMEHeaderKey(name)] = append([]string(nil), values...)
	}
	headers.Set("X-Amz-Date", amzDate)
	headers.Set("X-Amz-Content-Sha256", payloadHash)

	canonical, signedHeaders := canonicalRequest(req.Method, req.Path, req.RawQuery, headers, upstreamHost, payloadHash)
	canonicalSum := sha256.Sum256([]byte(canonical))

	// Format: Algorithm + "\n" + RequestDateTime + "\n" + CredentialScope + "\n" + HashedCanonicalRequest
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hex.EncodeToString(canonicalSum[:]),
	}, "\n")

	signingKey := deriveSigningKey(s.creds.SecretKey, dateStamp, s.creds.Region, s.creds.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	headers.Set("Host", upstreamHost)
	headers.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, s.creds.AccessKey, scope, signedHeaders, signature))

	logrus.WithFields(logrus.Fields{
		"method":                 req.Method,
		"path":                   req.Path,
		"signed_headers":         signedHeaders,
		"canonical_request_hash": hex.EncodeToString(canonicalSum[:]),
	}).Debug("Signed upstream request")

	return headers
}
