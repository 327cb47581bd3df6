package domain

// FilterMetadata returns a copy of m without keys whose value is nil or an
// empty string. Stored metadata must never contain such entries.
func FilterMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// MergeMetadata overlays updates onto base and returns the merged copy.
// Keys absent from updates survive untouched; nil and empty-string values
// in updates are dropped rather than stored.
func MergeMetadata(base, updates map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range FilterMetadata(updates) {
		out[k] = v
	}
	return out
}
