// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package apilookup resolves {catalog, api name, version} triples to
// base URLs against a platform-wide lookup service, caching results
// (component I).
package apilookup

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

var mon = monkit.Package()

// ApiEndpoint is a resolved base URL for one API of one catalog, plus
// any static query parameters the platform wants attached to every
// call against it. It is an immutable value.
type ApiEndpoint struct {
	Name       string
	Version    string
	BaseURL    string
	Parameters map[string]string
}

// Settings configures a Client.
type Settings struct {
	LookupBaseURL string
	Cache         *cache.Cache
	CacheTTL      time.Duration
	Network       olpclient.Network
	TokenProvider olpclient.TokenProvider
	Logger        *zap.Logger
}

// Client resolves and caches ApiEndpoint lookups.
type Client struct {
	settings Settings
	http     *olpclient.OlpClient
	log      *zap.Logger
}

// New builds a Client.
func New(settings Settings) *Client {
	log := settings.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts := []olpclient.Option{}
	if settings.TokenProvider != nil {
		opts = append(opts, olpclient.WithTokenProvider(settings.TokenProvider))
	}
	return &Client{
		settings: settings,
		http:     olpclient.New(settings.Network, opts...),
		log:      log,
	}
}

type lookupEntry struct {
	API        string            `json:"api"`
	Version    string            `json:"version"`
	BaseURL    string            `json:"baseURL"`
	Parameters map[string]string `json:"parameters"`
}

// LookupAPI resolves apiName/version for catalogHrn: a cache hit
// returns immediately; a miss issues a GET against the platform
// lookup service, selects the matching entry, and writes it back to
// cache under a configurable TTL.
func (c *Client) LookupAPI(ctx context.Context, catalogHrn, apiName, version string) (result client.Result[ApiEndpoint]) {
	var err error
	defer mon.Task()(&ctx)(&err)

	key := cache.CatalogAPIEndpointKey(catalogHrn, apiName, version)

	if raw, found := c.settings.Cache.Get(ctx, key); found {
		var ep ApiEndpoint
		if jsonErr := json.Unmarshal(raw, &ep); jsonErr == nil {
			return client.Ok(ep)
		}
	}

	select {
	case <-ctx.Done():
		return client.Failed[ApiEndpoint](client.Cancelled())
	default:
	}

	resp, callErr := c.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL: c.settings.LookupBaseURL,
		Path:    "/api-lookup/v1/resources/" + catalogHrn + "/apis",
		Method:  olpclient.GET,
	})
	if callErr != nil {
		err = callErr
		if ctx.Err() != nil {
			return client.Failed[ApiEndpoint](client.Cancelled())
		}
		return client.Failed[ApiEndpoint](client.NewError(client.KindNetworkError, callErr.Error()))
	}

	if resp.Status >= 400 {
		return client.Failed[ApiEndpoint](client.ErrorFromHTTPStatus(resp.Status, "api lookup failed"))
	}

	var entries []lookupEntry
	if jsonErr := json.Unmarshal(resp.Body, &entries); jsonErr != nil {
		err = jsonErr
		return client.Failed[ApiEndpoint](client.NewError(client.KindServiceUnavailable, "malformed lookup response: "+jsonErr.Error()))
	}

	for _, e := range entries {
		if e.API != apiName || e.Version != version {
			continue
		}
		ep := ApiEndpoint{Name: e.API, Version: e.Version, BaseURL: e.BaseURL, Parameters: e.Parameters}
		if encoded, jsonErr := json.Marshal(ep); jsonErr == nil {
			ttl := time.Now().Add(c.settings.CacheTTL).Unix()
			if _, putErr := c.settings.Cache.Put(ctx, key, encoded, ttl); putErr != nil {
				c.log.Warn("failed to cache api lookup entry", zap.Error(putErr))
			}
		}
		return client.Ok(ep)
	}

	return client.Failed[ApiEndpoint](client.NewError(client.KindServiceUnavailable, "no matching api/version entry for "+apiName+"/"+version))
}
