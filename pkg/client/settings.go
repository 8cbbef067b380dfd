// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package client

import (
	"time"

	"go.uber.org/zap"
)

// ProxyType identifies the proxy protocol for NetworkProxySettings.
type ProxyType int

// Supported proxy types.
const (
	ProxyNone ProxyType = iota
	ProxyHTTP
	ProxySOCKS4
	ProxySOCKS5
)

// NetworkProxySettings configures an optional upstream proxy for all
// outbound requests, per spec §6 settings table.
type NetworkProxySettings struct {
	Type     ProxyType
	Host     string
	Port     int
	Username string
	Password string
}

// NetworkSettings configures timeouts, proxying and retry policy for
// the HTTP client facade (component D).
type NetworkSettings struct {
	TimeoutSeconds      int
	RetryMax            int
	RetryInitialBackoff time.Duration
	RetryJitter         time.Duration
	// MaxInFlight caps concurrent requests; Send rejects further
	// requests synchronously once it is reached. 0 means unlimited.
	MaxInFlight int
	Proxy       NetworkProxySettings
}

// DefaultNetworkSettings mirrors the spec's documented defaults.
func DefaultNetworkSettings() NetworkSettings {
	return NetworkSettings{
		TimeoutSeconds:      60,
		RetryMax:            3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryJitter:         100 * time.Millisecond,
		MaxInFlight:         64,
	}
}

// CacheSettings configures the two-tier cache (component E).
type CacheSettings struct {
	MemoryLimitBytes     int64
	DiskLimitBytes       int64
	DiskPath             string
	DefaultExpirySeconds int64
}

// DefaultCacheSettings mirrors the spec's documented defaults.
func DefaultCacheSettings() CacheSettings {
	return CacheSettings{
		MemoryLimitBytes:     32 * 1024 * 1024,
		DiskLimitBytes:       512 * 1024 * 1024,
		DiskPath:             "./olp-cache",
		DefaultExpirySeconds: 24 * 60 * 60,
	}
}

// AuthSettings configures the OAuth token provider (component H).
type AuthSettings struct {
	Key                 string
	Secret              string
	EndpointURL         string
	Environment         string
	TokenMinValiditySec int64
}

// DefaultAuthSettings mirrors the spec's documented defaults.
func DefaultAuthSettings() AuthSettings {
	return AuthSettings{TokenMinValiditySec: 300, Environment: "prod"}
}

// SchedulerSettings configures the task scheduler (component B).
type SchedulerSettings struct {
	// Threads is the worker pool size. 0 selects inline (no-op)
	// scheduling, executing submitted closures on the caller thread.
	Threads int
}

// Settings is the single bundle every client is constructed from.
// There are no process-wide mutable singletons (spec §6, §9): every
// piece of configuration lives here, owned by the caller.
type Settings struct {
	Network   NetworkSettings
	Cache     CacheSettings
	Auth      AuthSettings
	Scheduler SchedulerSettings
	Logger    *zap.Logger
}

// NewDefaultSettings returns a Settings with every sub-setting at its
// documented default and a no-op logger; callers typically override
// Auth and Logger at minimum.
func NewDefaultSettings() Settings {
	return Settings{
		Network:   DefaultNetworkSettings(),
		Cache:     DefaultCacheSettings(),
		Auth:      DefaultAuthSettings(),
		Scheduler: SchedulerSettings{Threads: 4},
		Logger:    zap.NewNop(),
	}
}
