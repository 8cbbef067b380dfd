// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package read implements every user-facing read operation: the
// catalog/version client, the partitions and blob repositories, the
// versioned/volatile layer clients, the prefetch engine, and the
// stream client (components L through Q).
package read

import "github.com/zeebo/errs"

// Error is the class for read-path failures.
var Error = errs.Class("read")

// FetchPolicy controls whether an operation may hit the network and
// whether it updates the cache.
type FetchPolicy int

// Fetch policies (spec §4.12).
const (
	// OnlineIfNotFound reads the cache first, falling back to the
	// network on a miss; it is the default for metadata.
	OnlineIfNotFound FetchPolicy = iota
	// CacheOnly never issues a network request.
	CacheOnly
	// CacheWithUpdate makes GetCatalog skip a cache hit, fetch online
	// and write the result back; GetLatestVersion treats it like
	// OnlineIfNotFound. No background refresh request is issued.
	CacheWithUpdate
	// OnlineOnly bypasses the cache read but still writes the result.
	OnlineOnly
)

// Catalog is the top-level metadata document describing a catalog's
// layers and configuration.
type Catalog struct {
	HRN         string  `json:"hrn"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Layers      []Layer `json:"layers"`
	Version     int64   `json:"version"`
}

// Layer describes one layer of a catalog.
type Layer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"layerType"`
	Summary string `json:"summary"`
}

// Partition is one uniquely-addressed chunk of data within a layer.
type Partition struct {
	PartitionID string `json:"partition"`
	DataHandle  string `json:"dataHandle"`
	Version     int64  `json:"version"`
	DataSize    int64  `json:"dataSize"`
	Checksum    string `json:"checksum,omitempty"`
}

// Partitions is the response shape of the query API's partitions
// listing.
type Partitions struct {
	Partitions []Partition `json:"partitions"`
}

// SubQuadTreeEntry is one data-handle entry within a quadtree
// response, keyed by the sub-quadkey relative to the requested root.
type SubQuadTreeEntry struct {
	SubQuadKey string `json:"subQuadKey"`
	DataHandle string `json:"dataHandle"`
	Version    int64  `json:"version"`
}

// QuadTreeIndex is a metadata page listing data handles for the
// descendants of a root tile, up to a requested depth.
type QuadTreeIndex struct {
	SubQuads []SubQuadTreeEntry `json:"subQuads"`
}

// VersionInfo is one element of a ListVersions response.
type VersionInfo struct {
	Version        int64   `json:"version"`
	Dependencies   []int64 `json:"dependencies"`
	Timestamp      int64   `json:"timestamp"`
	PartitionCount int64   `json:"partitionCount"`
}

// Versions wraps a ListVersions response.
type Versions struct {
	Versions []VersionInfo `json:"versions"`
}

// VersionDependency names the version bounds one catalog dependency
// must satisfy, the input to GetCompatibleVersions.
type VersionDependency struct {
	HRN        string
	MinVersion int64
	MaxVersion int64
}

// BlobRange requests a partial blob fetch; a zero value means "whole
// object". Set Length to a negative value to mean "to end of object".
type BlobRange struct {
	Offset int64
	Length int64
}

// HasRange reports whether r requests a partial fetch.
func (r BlobRange) HasRange() bool { return r.Offset != 0 || r.Length != 0 }

// ConsumerProperties is a string/int/bool option bag forwarded
// verbatim to the stream subscribe call (e.g. enable_auto_commit).
type ConsumerProperties map[string]any

// GetBool reads a bool-valued property, defaulting to def if absent
// or of the wrong type.
func (p ConsumerProperties) GetBool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// GetString reads a string-valued property, defaulting to def if
// absent or of the wrong type.
func (p ConsumerProperties) GetString(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// StreamOffset marks a consumer's position within one partition of a
// stream layer.
type StreamOffset struct {
	Partition int32 `json:"partition"`
	Offset    int64 `json:"offset"`
}

// MessageMetadata describes one stream message's envelope; exactly
// one of DataHandle or InlineData is populated, per GetData's
// resolution rule.
type MessageMetadata struct {
	Partition          int32  `json:"partition"`
	DataHandle         string `json:"dataHandle,omitempty"`
	DataSize           int64  `json:"dataSize,omitempty"`
	CompressedDataSize int64  `json:"compressedDataSize,omitempty"`
	Checksum           string `json:"checksum,omitempty"`
	Timestamp          int64  `json:"timestamp"`
	InlineData         []byte `json:"inlineData,omitempty"`
}

// Message is one record returned by Poll.
type Message struct {
	Metadata MessageMetadata `json:"metadata"`
	Offset   StreamOffset    `json:"offset"`
}

// Publication groups write-side modifications to one or more layers.
// Write-side clients are out of scope (spec §4.17); this marker type
// exists only so Publication has a producer in tests.
type Publication struct {
	ID     string
	Layers []string
}

// PublishStub is the minimal out-of-scope write-side producer: it
// exists to give Publication a constructor without implementing any
// of the write-side wire formats (publish-data, publish-index,
// publish-sdii, start-batch) spec.md leaves out of scope.
type PublishStub struct{}

// NewPublication builds a Publication referencing the given layers.
func (PublishStub) NewPublication(id string, layers ...string) Publication {
	return Publication{ID: id, Layers: layers}
}
