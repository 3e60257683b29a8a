package signer

import (
	"crypto/hmac"
	"crypto/sha256"
)

// hmacSHA256 helper function
func hmacSHA256(key, data []byte) []byte {
	hash := hmac.New(sha256.New, key)
	hash.Write(data)
	return hash.Sum(nil)
}

// deriveSigningKey derives the scoped signing key via the SigV4 HMAC chain
// Reference: https://docs.aws.amazon.com/general/latest/gr/signature-v4-examples.html
func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	// Step 1: DateKey = HMAC-SHA256("AWS4" + Secret, Date)
	dateKey := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))

	// Step 2: DateRegionKey = HMAC-SHA256(DateKey, Region)
	dateRegionKey := hmacSHA256(dateKey, []byte(region))

	// Step 3: DateRegionServiceKey = HMAC-SHA256(DateRegionKey, Service)
	dateRegionServiceKey := hmacSHA256(dateRegionKey, []byte(service))

	// Step 4: SigningKey = HMAC-SHA256(DateRegionServiceKey, "aws4_request")
	return hmacSHA256(dateRegionServiceKey, []byte("aws4_request"))
}
