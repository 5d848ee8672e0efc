// Package docid provides deterministic keys for legislative document URLs.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

const prefix = "doc/"

// Normalize canonicalizes a document URL: scheme and host are lowercased, the
// path is cleaned, and the fragment is dropped. Unparseable input is only trimmed.
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path != "" {
		u.Path = path.Clean(u.Path)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Key returns a stable key for the document at rawURL.
// Equivalent URLs always yield the same key.
func Key(rawURL string) string {
	hash := sha256.Sum256([]byte(Normalize(rawURL)))
	return prefix + hex.EncodeToString(hash[:])
}
