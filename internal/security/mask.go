// Package security provides masking utilities so credentials never reach
// logs or tool output.
package security

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskToken masks a token or API key, showing only the first 4 and last 4
// characters. Short values are fully masked.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// MaskURLCredentials removes userinfo and sensitive query parameters from a
// URL. Unparseable inputs fall back to pattern masking.
func MaskURLCredentials(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return MaskSensitiveData(rawURL)
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "REDACTED")
		}
	}
	return maskQueryParams(u.String())
}

func maskQueryParams(rawURL string) string {
	sensitiveParams := []string{
		"api_key", "apikey", "api-key",
		"token", "access_token", "auth_token",
		"password", "passwd", "pwd",
		"secret", "key",
	}

	result := rawURL
	for _, param := range sensitiveParams {
		pattern := regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(param) + `=)([^&\s]+)`)
		result = pattern.ReplaceAllString(result, "${1}***REDACTED***")
	}
	return result
}

// MaskSensitiveHeaders masks sensitive values in HTTP headers.
func MaskSensitiveHeaders(headers map[string][]string) map[string]string {
	masked := make(map[string]string)
	sensitiveHeaders := map[string]bool{ // pragma: allowlist secret
		"authorization":    true,
		"x-api-key":        true,
		"api-key":          true,
		"apikey":           true, // pragma: allowlist secret
		"x-auth-token":     true,
		"cookie":           true,
		"set-cookie":       true,
		"x-csrf-token":     true,
		"x-request-id":     false, // Not sensitive, don't mask
		"x-trace-id":       false,
		"x-correlation-id": false,
	}

	for key, values := range headers {
		keyLower := strings.ToLower(key)
		if sensitiveHeaders[keyLower] {
			masked[key] = "***REDACTED***"
		} else if len(values) > 0 {
			masked[key] = values[0]
			if len(values) > 1 {
				masked[key] += "..."
			}
		}
	}

	return masked
}

// SensitivePatterns contains regex patterns for sensitive data.
var SensitivePatterns = []*regexp.Regexp{
	// API keys (various formats)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)[=:]["']?([a-zA-Z0-9_-]{20,})["']?`),
	// Bearer tokens
	regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_.-]{20,})`),
	// Passwords in URLs or config
	regexp.MustCompile(`(?i)(password|passwd|pwd)[=:]["']?([^"'\s&]+)["']?`),
	// Secrets
	regexp.MustCompile(`(?i)(secret|token)[=:]["']?([a-zA-Z0-9_-]{16,})["']?`),
}

// MaskSensitiveData masks sensitive data in a string using pattern matching.
func MaskSensitiveData(data string) string {
	result := data

	for _, pattern := range SensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			// Keep the key name, mask the value
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 3 {
				return parts[1] + "***REDACTED***"
			}
			return "***REDACTED***"
		})
	}

	return result
}

// IsSensitiveField checks if a field name indicates sensitive data.
func IsSensitiveField(fieldName string) bool {
	sensitiveNames := []string{
		"password", "passwd", "pwd",
		"secret", "token", "key", "apikey", "api_key",
		"authorization", "auth", "credential",
		"private", "ssh", "certificate", "cert",
	}

	fieldLower := strings.ToLower(fieldName)
	for _, name := range sensitiveNames {
		if strings.Contains(fieldLower, name) {
			return true
		}
	}

	return false
}

// SanitizeError removes sensitive data from error messages.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return MaskSensitiveData(err.Error())
}
