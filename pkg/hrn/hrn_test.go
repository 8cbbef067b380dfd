// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package hrn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/hrn"
)

func TestParse_RoundTrip(t *testing.T) {
	valid := []string{
		"hrn:here:data:::hereos-internal-test-v2",
		"hrn:here-dev:data:eu:12345:my-catalog",
		"hrn:here:schema:::group:name:1.0.0",
		"hrn:here:pipeline:::pipeline-id-1",
	}

	for _, s := range valid {
		s := s
		t.Run(s, func(t *testing.T) {
			h, err := hrn.Parse(s)
			require.NoError(t, err)
			require.False(t, h.IsNull())
			assert.Equal(t, s, h.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"not-an-hrn",
		"hrn::data:::catalog",
		"hrn:here:data:::",
		"hrn:here:schema:::group:name",
		"hrn:here:weird:::tail",
	}

	for _, s := range invalid {
		s := s
		t.Run(s, func(t *testing.T) {
			h, err := hrn.Parse(s)
			require.Error(t, err)
			assert.True(t, h.IsNull())
		})
	}
}

func TestEqual(t *testing.T) {
	a := hrn.MustParse("hrn:here:data:::cat")
	b := hrn.MustParse("hrn:here:data:::cat")
	c := hrn.MustParse("hrn:here:data:::other")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, hrn.HRN{}.Equal(hrn.HRN{}))
}
