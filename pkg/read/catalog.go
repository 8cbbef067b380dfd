// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

var monRead = monkit.Package()

// CatalogClient implements the catalog/version client (component L):
// GetCatalog, GetLatestVersion, ListVersions, and the supplemented
// GetCompatibleVersions. GetCatalog and GetLatestVersion follow the
// standard pipeline (TokenProvider -> ApiLookup -> HTTP GET -> JSON
// parse -> cache-write); ListVersions stops after the JSON parse and
// writes nothing to the cache, and GetCompatibleVersions issues no
// request at all.
type CatalogClient struct {
	settings Settings
	http     *olpclient.OlpClient
}

// NewCatalogClient builds a CatalogClient.
func NewCatalogClient(settings Settings) *CatalogClient {
	return &CatalogClient{settings: settings, http: settings.httpClient()}
}

// GetCatalog resolves the catalog metadata document, consulting the
// cache first under policy and writing the result back with the
// configured CatalogTTL.
func (c *CatalogClient) GetCatalog(ctx context.Context, billingTag string, policy FetchPolicy) (result client.Result[Catalog]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	key := cache.CatalogMetadataKey(c.settings.CatalogHRN)

	if policy != OnlineOnly {
		if raw, found := c.settings.Cache.Get(ctx, key); found {
			var cat Catalog
			if jsonErr := json.Unmarshal(raw, &cat); jsonErr == nil {
				if policy != CacheWithUpdate {
					return client.Ok(cat)
				}
			}
		}
	}
	if policy == CacheOnly {
		return client.Failed[Catalog](client.NewError(client.KindNotFound, "catalog not in cache"))
	}

	ep := c.settings.Lookup.LookupAPI(ctx, c.settings.CatalogHRN, "config", c.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[Catalog](ep.Err)
	}

	resp, callErr := c.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL:     ep.Value.BaseURL,
		Path:        "/config/v1/catalogs/" + c.settings.CatalogHRN,
		Method:      olpclient.GET,
		QueryParams: billingTagParam(billingTag),
	})
	if callErr != nil {
		err = callErr
		return client.Failed[Catalog](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[Catalog](apiErr)
	}

	var cat Catalog
	if jsonErr := json.Unmarshal(resp.Body, &cat); jsonErr != nil {
		err = jsonErr
		return client.Failed[Catalog](parseErr(jsonErr))
	}

	if encoded, jsonErr := json.Marshal(cat); jsonErr == nil {
		_, _ = c.settings.Cache.Put(ctx, key, encoded, expiryFromTTL(c.settings.CatalogTTL))
	}

	return client.Ok(cat)
}

// GetLatestVersion returns the most recent catalog version at or
// after startVersion. It is cached only for LatestVersionTTL, a short
// window, since the value is inherently volatile.
func (c *CatalogClient) GetLatestVersion(ctx context.Context, startVersion int64, billingTag string, policy FetchPolicy) (result client.Result[int64]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	key := cache.LatestVersionKey(c.settings.CatalogHRN)

	if policy != OnlineOnly {
		if raw, found := c.settings.Cache.Get(ctx, key); found {
			if v, convErr := strconv.ParseInt(string(raw), 10, 64); convErr == nil {
				return client.Ok(v)
			}
		}
	}
	if policy == CacheOnly {
		return client.Failed[int64](client.NewError(client.KindNotFound, "latest version not in cache"))
	}

	ep := c.settings.Lookup.LookupAPI(ctx, c.settings.CatalogHRN, "metadata", c.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[int64](ep.Err)
	}

	params := billingTagParam(billingTag)
	params["startVersion"] = strconv.FormatInt(startVersion, 10)

	resp, callErr := c.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL:     ep.Value.BaseURL,
		Path:        "/metadata/v1/catalogs/" + c.settings.CatalogHRN + "/versions/latest",
		Method:      olpclient.GET,
		QueryParams: params,
	})
	if callErr != nil {
		err = callErr
		return client.Failed[int64](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[int64](apiErr)
	}

	var parsed struct {
		Version int64 `json:"version"`
	}
	if jsonErr := json.Unmarshal(resp.Body, &parsed); jsonErr != nil {
		err = jsonErr
		return client.Failed[int64](parseErr(jsonErr))
	}

	if c.settings.LatestVersionTTL > 0 {
		_, _ = c.settings.Cache.Put(ctx, key, []byte(strconv.FormatInt(parsed.Version, 10)), expiryFromTTL(c.settings.LatestVersionTTL))
	}

	return client.Ok(parsed.Version)
}

// ListVersions returns every catalog version in [startVersion, endVersion].
func (c *CatalogClient) ListVersions(ctx context.Context, startVersion, endVersion int64) (result client.Result[Versions]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	ep := c.settings.Lookup.LookupAPI(ctx, c.settings.CatalogHRN, "metadata", c.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[Versions](ep.Err)
	}

	resp, callErr := c.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL: ep.Value.BaseURL,
		Path:    "/metadata/v1/catalogs/" + c.settings.CatalogHRN + "/versions",
		Method:  olpclient.GET,
		QueryParams: map[string]string{
			"startVersion": strconv.FormatInt(startVersion, 10),
			"endVersion":   strconv.FormatInt(endVersion, 10),
		},
	})
	if callErr != nil {
		err = callErr
		return client.Failed[Versions](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[Versions](apiErr)
	}

	var versions Versions
	if jsonErr := json.Unmarshal(resp.Body, &versions); jsonErr != nil {
		err = jsonErr
		return client.Failed[Versions](parseErr(jsonErr))
	}
	return client.Ok(versions)
}

// GetCompatibleVersions resolves, for a list of catalog dependencies
// each with a [min, max] version window, the highest version of this
// catalog that falls within every dependency's window simultaneously.
// Supplemented from the original SDK's CompatibleVersionsRequest,
// dropped by the distilled spec but not excluded by its Non-goals.
func (c *CatalogClient) GetCompatibleVersions(ctx context.Context, deps []VersionDependency) (result client.Result[int64]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	if len(deps) == 0 {
		return client.Failed[int64](client.NewError(client.KindInvalidArgument, "no dependencies supplied"))
	}

	best := deps[0].MaxVersion
	for _, d := range deps {
		if d.MaxVersion < best {
			best = d.MaxVersion
		}
	}
	for _, d := range deps {
		if best < d.MinVersion {
			return client.Failed[int64](client.NewError(client.KindPreconditionFailed, "no version satisfies every dependency window"))
		}
	}
	return client.Ok(best)
}

func (s Settings) apiVersion() string {
	if s.ApiLookupVersion != "" {
		return s.ApiLookupVersion
	}
	return "v1"
}

func billingTagParam(tag string) map[string]string {
	if tag == "" {
		return map[string]string{}
	}
	return map[string]string{"billingTag": tag}
}

func expiryFromTTL(ttl time.Duration) int64 {
	if ttl <= 0 {
		return cache.NeverExpire
	}
	return time.Now().Add(ttl).Unix()
}

func statusError(status int) *client.ApiError {
	if status >= 400 {
		return client.ErrorFromHTTPStatus(status, "request failed")
	}
	return nil
}

func parseErr(err error) *client.ApiError {
	return client.NewError(client.KindServiceUnavailable, "malformed response: "+err.Error())
}

func networkErr(ctx context.Context, err error) *client.ApiError {
	if ctx.Err() != nil {
		return client.Cancelled()
	}
	return client.NewError(client.KindNetworkError, err.Error())
}
