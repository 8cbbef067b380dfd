// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// optionalVersion renders "::<version>" or "" when version is absent,
// per the §4.6 rule that <version> is omitted with no trailing "::".
func optionalVersion(version *int64) string {
	if version == nil {
		return ""
	}
	return "::" + strconv.FormatInt(*version, 10)
}

// CatalogAPIEndpointKey is the cache key for a resolved API endpoint.
func CatalogAPIEndpointKey(hrnStr, service string, version string) string {
	return strings.Join([]string{hrnStr, service, version, "api"}, "::")
}

// CatalogMetadataKey is the cache key for catalog metadata.
func CatalogMetadataKey(hrnStr string) string {
	return hrnStr + "::catalog"
}

// LatestVersionKey is the cache key for a catalog's latest version.
func LatestVersionKey(hrnStr string) string {
	return hrnStr + "::latestVersion"
}

// PartitionKey is the cache key for one partition's metadata.
func PartitionKey(hrnStr, layer, partition string, version *int64) string {
	return fmt.Sprintf("%s::%s::%s%s::partition", hrnStr, layer, partition, optionalVersion(version))
}

// AllPartitionsKey is the cache key for a layer's full partition list.
func AllPartitionsKey(hrnStr, layer string, version *int64) string {
	return fmt.Sprintf("%s::%s%s::partitions", hrnStr, layer, optionalVersion(version))
}

// LayerVersionsKey is the cache key for a catalog version's layer list.
func LayerVersionsKey(hrnStr string, version int64) string {
	return fmt.Sprintf("%s::%d::layerVersions", hrnStr, version)
}

// QuadTreeKey is the cache key for a quadtree metadata page.
func QuadTreeKey(hrnStr, layer, rootHereTile string, version *int64, depth int) string {
	return fmt.Sprintf("%s::%s::%s%s::%d::quadtree", hrnStr, layer, rootHereTile, optionalVersion(version), depth)
}

// DataBlobKey is the cache key for a fetched data blob.
func DataBlobKey(hrnStr, layer, dataHandle string) string {
	return fmt.Sprintf("%s::%s::%s::Data", hrnStr, layer, dataHandle)
}
