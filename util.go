package matchpoint

import (
	"strings"
)

// JoinURL joins a base URL and a relative path with exactly one slash between them.
// The query string and fragment of rel are kept as-is, and an empty rel returns base.
func JoinURL(base, rel string) string {
	if rel == "" {
		return base
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}

// IsAbsoluteURL reports whether u carries its own scheme or authority,
// in which case it must not be joined to a base URL.
func IsAbsoluteURL(u string) bool {
	if strings.HasPrefix(u, "//") {
		return true
	}

	i := strings.Index(u, "://")
	if i <= 0 {
		return false
	}

	// scheme = ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )
	for n, r := range u[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case n > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}

	return true
}
