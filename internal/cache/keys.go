package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// GenerateKey generates a cache key from a URL
// The key is a SHA256 hash of the normalized URL
func GenerateKey(rawURL string) string {
	normalized := normalizeForKey(rawURL)
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// GenerateKeyWithPrefix generates a cache key with a prefix
func GenerateKeyWithPrefix(prefix, rawURL string) string {
	key := GenerateKey(rawURL)
	return prefix + ":" + key
}

// normalizeForKey normalizes a URL for consistent key generation
func normalizeForKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}

	u.Host = strings.ToLower(u.Host)

	// Remove default ports
	if (u.Scheme == "http" && u.Port() == "80") ||
		(u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	if u.Path == "" {
		u.Path = "/"
	} else {
		u.Path = path.Clean(u.Path)
	}

	// Trees and blobs are addressed by path alone
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// Key prefixes for the stored value kinds
const (
	PrefixTree = "tree"
)

// TreeKey generates a cache key for a tree snapshot. variant distinguishes
// reads of the same URL with different filters.
func TreeKey(rawURL, variant string) string {
	key := GenerateKeyWithPrefix(PrefixTree, rawURL)
	if variant == "" {
		return key
	}
	sum := sha256.Sum256([]byte(variant))
	return key + ":" + hex.EncodeToString(sum[:8])
}
