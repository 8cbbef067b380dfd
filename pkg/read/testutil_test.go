// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/apilookup"
	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
	"github.com/heremaps/here-data-sdk-go/pkg/read"
	"github.com/heremaps/here-data-sdk-go/private/kvstore/memkv"
)

const testHRN = "hrn:here:data::org:catalog"

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(context.Background(), memkv.New(), cache.Options{MemoryCapacityBytes: 1 << 20, DiskCapacityBytes: 1 << 20})
	require.NoError(t, err)
	return c
}

// newTestSettings builds a read.Settings whose API-lookup resolves
// every apiName against srv, so one httptest server can stand in for
// both the lookup service and every downstream API it points at.
func newTestSettings(t *testing.T, srv *httptest.Server, apiNames ...string) read.Settings {
	t.Helper()

	lookupMux := http.NewServeMux()
	lookupMux.HandleFunc("/api-lookup/v1/resources/", func(w http.ResponseWriter, r *http.Request) {
		var body string
		for i, name := range apiNames {
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(`{"api":%q,"version":"v1","baseURL":%q,"parameters":{}}`, name, srv.URL)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("[" + body + "]"))
	})
	lookupSrv := httptest.NewServer(lookupMux)
	t.Cleanup(lookupSrv.Close)

	lookup := apilookup.New(apilookup.Settings{
		LookupBaseURL: lookupSrv.URL,
		Cache:         newTestCache(t),
		CacheTTL:      time.Hour,
		Network:       olpclient.NewHTTPNetwork(nil),
	})

	return read.Settings{
		CatalogHRN:       testHRN,
		Lookup:           lookup,
		Cache:            newTestCache(t),
		Network:          olpclient.NewHTTPNetwork(nil),
		CatalogTTL:       time.Hour,
		LatestVersionTTL: time.Hour,
		LayerTTL:         time.Hour,
	}
}

func int64Ptr(v int64) *int64 { return &v }
