package signer

import (
	"net/http"
	"sort"
	"strings"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	amzDateFormat    = "20060102T150405Z"
	dateStampFormat  = "20060102"
)

// uriEncode percent-encodes a query component according to AWS SigV4
// requirements (RFC 3986): A-Z, a-z, 0-9, hyphen, underscore, period and
// tilde pass through, every other byte becomes %XX with uppercase hex.
func uriEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"

	var encoded strings.Builder
	encoded.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			encoded.WriteByte(c)
		} else {
			encoded.WriteByte('%')
			encoded.WriteByte(hexDigits[c>>4])
			encoded.WriteByte(hexDigits[c&0x0F])
		}
	}
	return encoded.String()
}

// canonicalQueryString builds the sorted canonical query string from the
// raw query. Pairs are split on the first '=', a missing value is treated
// as empty rather than rejected, and ordering is by encoded key.
func canonicalQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	type pair struct {
		key   string
		value string
	}

	segments := strings.Split(rawQuery, "&")
	pairs := make([]pair, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		pairs = append(pairs, pair{key: uriEncode(key), value: uriEncode(value)})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, "&")
}

// signedHeaderNames returns the lowercase, sorted header names included in
// the signature: always host, x-amz-content-sha256 and x-amz-date, plus
// content-type when the request carries one.
func signedHeaderNames(headers http.Header) []string {
	names := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	if headers.Get("Content-Type") != "" {
		names = append(names, "content-type")
	}
	sort.Strings(names)
	return names
}

// canonicalHeaders renders the "name:value" lines for the signed headers.
// The host value comes from the upstream target, not the header set. Lines
// are sorted and the result carries a trailing newline per the SigV4 spec.
func canonicalHeaders(headers http.Header, host string, names []string) string {
	lines := make([]string, 0, len(names))
	for _, name := range names {
		var value string
		if name == "host" {
			value = host
		} else {
			value = headers.Get(name)
		}
		lines = append(lines, name+":"+strings.TrimSpace(value))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}

// canonicalRequest assembles the SigV4 canonical request string:
//
//	HTTPMethod + "\n" +
//	CanonicalURI + "\n" +
//	CanonicalQueryString + "\n" +
//	CanonicalHeaders + "\n" +
//	SignedHeaders + "\n" +
//	HashedPayload
//
// The canonical URI is the resolved signing path used verbatim; it must be
// byte-identical to the path of the outbound request or the upstream will
// reject the signature. Returns the canonical request and the
// semicolon-joined signed headers string.
func canonicalRequest(method, path, rawQuery string, headers http.Header, host, payloadHash string) (string, string) {
	names := signedHeaderNames(headers)
	signedHeaders := strings.Join(names, ";")

	canonical := strings.Join([]string{
		method,
		path,
		canonicalQueryString(rawQuery),
		canonicalHeaders(headers, host, names),
		signedHeaders,
		payloadHash,
	}, "\n")

	return canonical, signedHeaders
}
