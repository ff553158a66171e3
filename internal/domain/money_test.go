package domain_test

import (
	"encoding/json"
	"testing"

	"payment-relay/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnitsTruncatesTowardZero(t *testing.T) {
	tests := map[string]domain.MinorUnits{
		`1000`:     1000,
		`1000.9`:   1000,
		`"1000.9"`: 1000,
		`-3.7`:     -3,
		`"abc"`:    0,
		`null`:     0,
		`true`:     0,
		`"  250 "`: 250,
	}
	for raw, want := range tests {
		var got domain.MinorUnits
		require.NoError(t, json.Unmarshal([]byte(raw), &got), raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1500), domain.ParseMinorUnits("1500.7"))
	assert.Equal(t, int64(12), domain.ParseMinorUnits(12.99))
	assert.Equal(t, int64(0), domain.ParseMinorUnits(nil))
	assert.Equal(t, int64(0), domain.ParseMinorUnits(map[string]any{}))
}

func TestFlexString(t *testing.T) {
	var v struct {
		A domain.FlexString `json:"a"`
		B domain.FlexString `json:"b"`
		C domain.FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": "07", "c": null}`), &v))
	assert.Equal(t, domain.FlexString("12"), v.A)
	assert.Equal(t, domain.FlexString("07"), v.B)
	assert.Empty(t, v.C)
}

func TestDocumentAcceptsString(t *testing.T) {
	var c domain.Customer
	require.NoError(t, json.Unmarshal([]byte(`{"document": "123"}`), &c))
	require.NotNil(t, c.Document)
	assert.Equal(t, "123", c.Document.Number)
}

func TestAttributionPairsOrder(t *testing.T) {
	sck := "x"
	a := domain.DefaultAttribution()
	a.Sck = &sck

	assert.Equal(t, [][2]string{{"utm_source", "direct"}, {"utm_medium", "none"}, {"sck", "x"}}, a.Pairs())
}
