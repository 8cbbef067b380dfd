// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package hrn parses and formats Here Resource Names, the catalog,
// schema and pipeline identifiers used throughout the client runtime.
package hrn

import (
	"strings"

	"github.com/zeebo/errs"
)

// Error is the class for all HRN parsing failures.
var Error = errs.Class("hrn")

// ServiceType tags which resource variant an HRN addresses.
type ServiceType int

// Known service variants. Unknown is the zero value so a zero HRN is
// always "is-null" until successfully parsed.
const (
	ServiceUnknown ServiceType = iota
	ServiceData
	ServiceSchema
	ServicePipeline
)

func (s ServiceType) String() string {
	switch s {
	case ServiceData:
		return "data"
	case ServiceSchema:
		return "schema"
	case ServicePipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

// HRN is an immutable Here Resource Name. The zero value is the
// "is-null" HRN produced by a failed Parse.
type HRN struct {
	Service   ServiceType
	Partition string
	Region    string
	Account   string

	// Data
	CatalogID string

	// Schema
	GroupID    string
	SchemaName string
	Version    string

	// Pipeline
	PipelineID string

	valid bool
}

// IsNull reports whether this HRN failed to parse (or is the zero value).
func (h HRN) IsNull() bool { return !h.valid }

// Parse parses s into an HRN. On any grammar violation it returns the
// is-null HRN together with a descriptive error; callers that only
// care about validity may ignore the error and check IsNull.
func Parse(s string) (HRN, error) {
	const prefix = "hrn:"
	if !strings.HasPrefix(s, prefix) {
		return HRN{}, Error.New("missing hrn: prefix in %q", s)
	}

	// hrn:<partition>:<service>:<region>:<account>:<tail>
	parts := strings.SplitN(s, ":", 6)
	if len(parts) != 6 {
		return HRN{}, Error.New("expected 6 colon-delimited fields, got %d in %q", len(parts), s)
	}

	partition, serviceStr, region, account, tail := parts[1], parts[2], parts[3], parts[4], parts[5]
	if partition == "" {
		return HRN{}, Error.New("empty partition in %q", s)
	}

	h := HRN{Partition: partition, Region: region, Account: account}

	switch serviceStr {
	case "data":
		if tail == "" {
			return HRN{}, Error.New("empty catalogId in %q", s)
		}
		h.Service = ServiceData
		h.CatalogID = tail
	case "schema":
		tailParts := strings.SplitN(tail, ":", 3)
		if len(tailParts) != 3 || tailParts[0] == "" || tailParts[1] == "" || tailParts[2] == "" {
			return HRN{}, Error.New("schema hrn requires non-empty groupId:schemaName:version in %q", s)
		}
		h.Service = ServiceSchema
		h.GroupID, h.SchemaName, h.Version = tailParts[0], tailParts[1], tailParts[2]
	case "pipeline":
		if tail == "" {
			return HRN{}, Error.New("empty pipelineId in %q", s)
		}
		h.Service = ServicePipeline
		h.PipelineID = tail
	default:
		return HRN{}, Error.New("unknown service %q in %q", serviceStr, s)
	}

	h.valid = true
	return h, nil
}

// MustParse parses s and panics on failure; intended for tests and
// compile-time-known constants, never for user input.
func MustParse(s string) HRN {
	h, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String renders the HRN back to its canonical form. The is-null HRN
// formats as the empty string.
func (h HRN) String() string {
	if h.IsNull() {
		return ""
	}

	var tail string
	switch h.Service {
	case ServiceData:
		tail = h.CatalogID
	case ServiceSchema:
		tail = strings.Join([]string{h.GroupID, h.SchemaName, h.Version}, ":")
	case ServicePipeline:
		tail = h.PipelineID
	}

	return strings.Join([]string{"hrn", h.Partition, h.Service.String(), h.Region, h.Account, tail}, ":")
}

// Equal reports field-wise equality. Two is-null HRNs are not equal
// to each other or to anything else.
func (h HRN) Equal(other HRN) bool {
	if h.IsNull() || other.IsNull() {
		return false
	}
	return h == other
}
