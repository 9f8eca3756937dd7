package telemetry

import (
	"strings"
	"testing"
)

func TestSafeAttributesDropsTextAndSecrets(t *testing.T) {
	attrs := SafeAttributes(map[string]interface{}{
		"mailsieve.text":      "Dear customer, claim your prize",
		"mailsieve.reasoning": "Looks like a lottery scam.",
		"email_subject":       "hello",
		"api_key":             "sk-123",
		"authorization":       "Bearer abc",
		"mailsieve.text_len":  31,
		"mailsieve.provider":  "ollama-mxbai-embed-large",
		"mailsieve.scores":    []float64{0.1, 0.9},
		"long_string":         strings.Repeat("x", 600),
		"unsupported":         struct{}{},
	})

	got := map[string]bool{}
	for _, a := range attrs {
		got[string(a.Key)] = true
	}
	for _, k := range []string{"mailsieve.text", "mailsieve.reasoning", "email_subject", "api_key", "authorization", "long_string", "unsupported"} {
		if got[k] {
			t.Fatalf("attribute %s should have been dropped", k)
		}
	}
	for _, k := range []string{"mailsieve.text_len", "mailsieve.provider", "mailsieve.scores"} {
		if !got[k] {
			t.Fatalf("attribute %s should have been kept", k)
		}
	}
	for i := 1; i < len(attrs); i++ {
		if attrs[i-1].Key > attrs[i].Key {
			t.Fatalf("attributes not sorted: %s before %s", attrs[i-1].Key, attrs[i].Key)
		}
	}
}

func TestSafeAttributesTruncatesSlices(t *testing.T) {
	scores := make([]float64, 50)
	attrs := SafeAttributes(map[string]interface{}{"mailsieve.scores": scores})
	if len(attrs) != 1 || len(attrs[0].Value.AsFloat64Slice()) != maxSliceAttr {
		t.Fatalf("expected slice truncated to %d, got %+v", maxSliceAttr, attrs)
	}
	if SafeAttributes(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
}
