// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package auth implements the OAuth2 token provider (component H):
// signed sign-in requests, a single-flight refresh, and a
// minimum-validity cache shared safely across concurrent callers.
package auth

import (
	"time"

	"github.com/zeebo/errs"
)

// Error is the class for auth failures.
var Error = errs.Class("auth")

// AuthenticationCredentials identifies the caller to the token
// endpoint. Secret is never logged.
type AuthenticationCredentials struct {
	Key    string
	Secret string
}

// OauthToken is a bearer token with its absolute expiry.
type OauthToken struct {
	AccessToken        string
	ExpiryEpochSeconds int64
}

// ExpiresIn returns how long until the token expires, relative to now.
// A negative or zero result means the token is already stale.
func (t OauthToken) ExpiresIn(now time.Time) time.Duration {
	return time.Unix(t.ExpiryEpochSeconds, 0).Sub(now)
}
