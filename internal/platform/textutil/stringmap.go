package textutil

import "strings"

// CompactAttributes trims keys and values and drops entries where either side is empty.
// It returns nil when nothing remains, matching what message attributes expect.
func CompactAttributes(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
