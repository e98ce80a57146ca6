package logutil

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

// IsSensitiveLogField returns true when a key likely contains sensitive data.
// Keys are normalized first, so "customer.ssn", "repeatedPassword" and
// "Set-Cookie" all match.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")
	if i := strings.LastIndex(normalized, "."); i >= 0 {
		normalized = normalized[i+1:]
	}

	switch {
	case normalized == "authorization":
		return true
	case normalized == "ssn", normalized == "taxid":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	case strings.Contains(normalized, "sessionid"):
		return true
	default:
		return false
	}
}

// RedactValue redacts a value when the key looks sensitive.
func RedactValue(key, value string) string {
	if IsSensitiveLogField(key) {
		return redacted
	}
	return value
}

// FormatFormForLog returns stable, redacted form text for logs.
func FormatFormForLog(form url.Values) string {
	if len(form) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := form[k]
		if len(values) == 0 {
			parts = append(parts, fmt.Sprintf("%s=<empty>", k))
			continue
		}
		safe := make([]string, len(values))
		for i, v := range values {
			safe[i] = RedactValue(k, v)
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, strings.Join(safe, ", ")))
	}
	return strings.Join(parts, "; ")
}

// RedactFields returns a copy of fields with sensitive values replaced.
func RedactFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = RedactValue(k, v)
	}
	return out
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}
