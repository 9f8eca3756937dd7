package telemetry

import (
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Keys containing any of these never become span attributes. Counters such
// as "mailsieve.text_len" are allowed through by the suffix check below.
var deniedFragments = []string{
	"text",
	"body",
	"subject",
	"reasoning",
	"prompt",
	"content",
	"authorization",
	"api_key",
	"token",
	"email",
}

var countSuffixes = []string{"_len", "_count", "_bytes"}

const (
	maxStringAttr = 256
	maxSliceAttr  = 32
)

// SafeAttributes converts values to OTel attributes, dropping anything that
// could carry message text or credentials. Output is sorted by key.
func SafeAttributes(values map[string]interface{}) []attribute.KeyValue {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if allowedKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var attrs []attribute.KeyValue
	for _, k := range keys {
		switch val := values[k].(type) {
		case string:
			if len(val) > maxStringAttr {
				continue
			}
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case []float64:
			attrs = append(attrs, attribute.Float64Slice(k, val[:min(len(val), maxSliceAttr)]))
		case []string:
			attrs = append(attrs, attribute.StringSlice(k, val[:min(len(val), maxSliceAttr)]))
		}
	}
	return attrs
}

func allowedKey(k string) bool {
	lk := strings.ToLower(k)
	for _, s := range countSuffixes {
		if strings.HasSuffix(lk, s) {
			return true
		}
	}
	for _, bad := range deniedFragments {
		if strings.Contains(lk, bad) {
			return false
		}
	}
	return true
}
