package logger

import (
	"strings"
)

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"authorization",
}

// MaskAuthorization masks bearer tokens, keeping the scheme
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return "Bearer " + maskLast4(parts[1])
	}
	return maskLast4(value)
}

// MaskJSON returns a deep copy with password/token style fields masked
func MaskJSON(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		if isSensitiveKey(key) {
			out[key] = maskValue(value)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = MaskJSON(nested)
			continue
		}
		out[key] = value
	}
	return out
}

func maskValue(value any) any {
	if s, ok := value.(string); ok {
		return maskLast4(s)
	}
	return "****"
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

func maskLast4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
