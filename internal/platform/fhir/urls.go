package fhir

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseURLVersion splits a canonical URL of the form "url|version" into its
// parts. A URL without the version suffix returns an empty version.
func ParseURLVersion(canonical string) (string, string) {
	if idx := strings.LastIndex(canonical, "|"); idx != -1 {
		return canonical[:idx], canonical[idx+1:]
	}
	return canonical, ""
}

// StripVersion removes the "|version" suffix from a canonical URL.
func StripVersion(canonical string) string {
	u, _ := ParseURLVersion(canonical)
	return u
}

// Authority extracts the network authority (host) from a resource URL.
func Authority(resourceURL string) (string, error) {
	u, err := url.Parse(resourceURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", resourceURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no authority", resourceURL)
	}
	return u.Host, nil
}
