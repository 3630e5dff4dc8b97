// Package attrs reads values back out of slog-style key/value argument lists.
package attrs

// Extract returns the value paired with key when it has type T. Later pairs
// do not override earlier ones.
func Extract[T any](kv []any, key string) (T, bool) {
	var zero T
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		v, ok := kv[i+1].(T)
		return v, ok
	}
	return zero, false
}

// ExtractString is Extract for string values, returning "" when absent.
func ExtractString(kv []any, key string) string {
	v, _ := Extract[string](kv, key)
	return v
}
