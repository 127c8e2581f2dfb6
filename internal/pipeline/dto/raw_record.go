package dto

// RawRecord is an adapter-specific payload as fetched from a source. It is
// kept schemaless so every adapter can attach source-native fields; the
// normalizer only reads the keys it understands and retains the rest.
type RawRecord map[string]interface{}

// String returns the first non-empty string value among the given keys.
func (r RawRecord) String(keys ...string) string {
	for _, key := range keys {
		if v, ok := r[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Float returns the float value for key, or fallback when absent or untyped.
func (r RawRecord) Float(key string, fallback float64) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// Strings returns the string-slice value for key, tolerating []interface{}
// payloads produced by JSON decoding.
func (r RawRecord) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
