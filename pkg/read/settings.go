// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"time"

	"go.uber.org/zap"

	"github.com/heremaps/here-data-sdk-go/pkg/apilookup"
	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

// Settings bundles everything the read-path clients need: the
// catalog they operate on, the collaborators the standard pipeline
// threads through (API lookup, cache, network, tokens), and the TTLs
// each cached artifact is written with.
type Settings struct {
	CatalogHRN string

	Lookup  *apilookup.Client
	Cache   *cache.Cache
	Network olpclient.Network
	Tokens  olpclient.TokenProvider
	Logger  *zap.Logger

	CatalogTTL       time.Duration
	LatestVersionTTL time.Duration
	LayerTTL         time.Duration
	ApiLookupVersion string
}

func (s Settings) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// httpClient builds an OlpClient attaching the shared TokenProvider,
// if one is configured, so every lower-layer GET carries a bearer
// token without each call site repeating the wiring.
func (s Settings) httpClient() *olpclient.OlpClient {
	opts := []olpclient.Option{olpclient.WithLogger(s.logger())}
	if s.Tokens != nil {
		opts = append(opts, olpclient.WithTokenProvider(s.Tokens))
	}
	return olpclient.New(s.Network, opts...)
}
