package fingerprint

import (
	"path"
	"strings"
)

const keyPrefix = "owners"

// StorageKey derives the blob key for one content revision:
//
//	owners/<email>/<hash>/<filename>
//
// The hash makes keys unique per content, the email and filename keep them
// readable. Both are sanitized so the key is a safe object name.
func StorageKey(email string, h Hash, filename string) string {
	return path.Join(keyPrefix, sanitize(strings.ToLower(email), "owner"), h.String(), sanitize(path.Base(filename), "file"))
}

func sanitize(s, fallback string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_' || r == '@' || r == '+':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return fallback
	}
	return out
}
