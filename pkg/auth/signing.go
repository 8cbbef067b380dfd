// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// signedSignInBody is the only crypto primitive this module
// implements directly (spec §1 Non-goals): a canonical string of
// credentials key, timestamp and a nonce, HMAC-SHA256 signed with the
// credentials secret. Everything else about transport security is
// delegated to TLS.
func signedSignInBody(creds AuthenticationCredentials, now int64, nonce string) []byte {
	canonical := canonicalString(creds.Key, now, nonce)
	sig := sign(creds.Secret, canonical)
	return []byte(fmt.Sprintf(
		`{"grantType":"client_credentials","key":%q,"timestamp":%d,"nonce":%q,"signatureMethod":"HmacSHA256","signature":%q}`,
		creds.Key, now, nonce, sig,
	))
}

func canonicalString(key string, timestamp int64, nonce string) string {
	return fmt.Sprintf("%s:%d:%s", key, timestamp, nonce)
}

func sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// newNonce generates a fresh per-request nonce. A UUID is more than
// enough entropy and avoids hand-rolling a random-byte encoder.
func newNonce() string {
	return uuid.NewString()
}
