package normalizer

import (
	"encoding/json"
	"net/url"
	"strings"

	"payment-relay/internal/domain"

	"github.com/spf13/cast"
)

var attributionKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term", "src", "sck"}

// ExtractAttribution resolves the attribution parameters of a request. Query
// string values win over the "utm" object embedded in metadata. Metadata may
// be a decoded object, a JSON document, a JSON-encoded string or garbage;
// anything unreadable contributes nothing and the defaults apply.
func ExtractAttribution(query url.Values, metadata any) domain.Attribution {
	fromMeta := utmFromMetadata(metadata)
	values := make(map[string]string, len(attributionKeys))
	for _, k := range attributionKeys {
		if v := strings.TrimSpace(query.Get(k)); v != "" {
			values[k] = v
			continue
		}
		if v := fromMeta[k]; v != "" {
			values[k] = v
		}
	}
	return attributionFromValues(values)
}

func attributionFromValues(values map[string]string) domain.Attribution {
	a := domain.DefaultAttribution()
	if v := values["utm_source"]; v != "" {
		a.UTMSource = v
	}
	if v := values["utm_medium"]; v != "" {
		a.UTMMedium = v
	}
	a.UTMCampaign = optional(values["utm_campaign"])
	a.UTMContent = optional(values["utm_content"])
	a.UTMTerm = optional(values["utm_term"])
	a.Src = optional(values["src"])
	a.Sck = optional(values["sck"])
	return a
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func utmFromMetadata(metadata any) map[string]string {
	obj := decodeMetadata(metadata)
	if obj == nil {
		return nil
	}
	utm, ok := obj["utm"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(utm))
	for _, k := range attributionKeys {
		if v, ok := utm[k]; ok && v != nil {
			out[k] = strings.TrimSpace(cast.ToString(v))
		}
	}
	return out
}

// decodeMetadata returns the metadata as an object, or nil when it is not one.
func decodeMetadata(metadata any) map[string]any {
	switch m := metadata.(type) {
	case nil:
		return nil
	case map[string]any:
		return m
	case json.RawMessage:
		return decodeMetadataBytes(m)
	case []byte:
		return decodeMetadataBytes(m)
	case string:
		return decodeMetadataBytes([]byte(m))
	default:
		return nil
	}
}

func decodeMetadataBytes(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		// metadata that was itself JSON-encoded into a string
		var obj map[string]any
		if err := json.Unmarshal([]byte(t), &obj); err != nil {
			return nil
		}
		return obj
	}
	return nil
}
