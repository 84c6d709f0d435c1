package httpmetrics

import (
	"regexp"
	"strings"
)

const upgradePrefix = "/ws/community"

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// NormalizePath maps a request path to a bounded label value. Every upgrade
// path form collapses to one of two labels since room names are free text.
func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}

	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == upgradePrefix {
		return upgradePrefix
	}
	if strings.HasPrefix(trimmed, upgradePrefix+"/") {
		return upgradePrefix + "/{room}"
	}

	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if isNumeric(part) || uuidRegex.MatchString(part) {
			parts[i] = "{param}"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
