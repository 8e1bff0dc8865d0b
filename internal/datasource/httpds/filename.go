package httpds

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
)

var nonWord = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// HashString returns the SHA1 hex digest of s. Used as a deterministic
// artifact name when a URL carries no usable one.
func HashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SafeFilenameFromURL derives a filesystem-safe name from a URL. The query
// string usually carries the distinguishing parameters, so it becomes the
// name with non-alphanumeric runs collapsed to "_". Unparseable URLs and
// empty queries fall back to hashing the whole URL.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	name := nonWord.ReplaceAllString(u.RawQuery, "_")
	if name == "" {
		return HashString(rawURL)
	}
	return name
}
