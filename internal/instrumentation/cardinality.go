package instrumentation

import "strings"

// ExtractUserDomain reduces an email to its domain for use as a metric label.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}

	return "unknown"
}

// NormalizePath maps request paths onto the fixed route table so unmatched
// paths cannot inflate label cardinality.
func NormalizePath(path string, known []string) string {
	for _, k := range known {
		if path == k {
			return path
		}
	}
	return "other"
}
