package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// MinorUnits is an amount in the settlement currency's smallest unit.
//
// Inbound values may be JSON numbers or numeric strings. They are parsed as
// exact decimals and truncated toward zero, so 1000.9 becomes 1000 and -3.7
// becomes -3. Anything that does not parse becomes 0.
type MinorUnits int64

func (m *MinorUnits) UnmarshalJSON(data []byte) error {
	*m = MinorUnits(truncateJSONNumber(data))
	return nil
}

// Count is a tolerant integer used for quantities and installments.
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	*c = Count(truncateJSONNumber(data))
	return nil
}

// FlexString accepts JSON strings, numbers and booleans.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = ""
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	if n, ok := v.(float64); ok {
		// keep integers like 12 as "12", not "12.0"
		*f = FlexString(decimal.NewFromFloat(n).String())
		return nil
	}
	*f = FlexString(cast.ToString(v))
	return nil
}

// ParseMinorUnits applies the amount rule to an arbitrary decoded value.
func ParseMinorUnits(v any) int64 {
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.Truncate(0).IntPart()
}

func truncateJSONNumber(data []byte) int64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0
		}
		return ParseMinorUnits(s)
	}
	return ParseMinorUnits(string(data))
}
