package terminology

import (
	"fmt"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

// baseURLPerDomain maps a value set URL's authority to the terminology
// server that can expand it. Fixed at build time; never mutated.
var baseURLPerDomain = map[string]string{
	"hl7.org":             "https://tx.fhir.org/r4/",
	"terminology.hl7.org": "https://tx.fhir.org/r4/",
	"loinc.org":           "https://fhir.loinc.org",
}

// UnknownDomainError reports a value set URL whose authority has no
// configured terminology server.
type UnknownDomainError struct {
	Domain string
}

func (e *UnknownDomainError) Error() string {
	return fmt.Sprintf("unknown domain %q: no terminology server configured for it", e.Domain)
}

// ResolveBaseURL returns the terminology server base URL responsible for the
// given value set URL, based on the URL's authority.
func ResolveBaseURL(valueSetURL string) (string, error) {
	domain, err := fhir.Authority(valueSetURL)
	if err != nil {
		return "", err
	}
	base, ok := baseURLPerDomain[domain]
	if !ok {
		return "", &UnknownDomainError{Domain: domain}
	}
	return base, nil
}

// KnownServers returns the set of configured terminology server base URLs.
func KnownServers() map[string]bool {
	servers := make(map[string]bool, len(baseURLPerDomain))
	for _, base := range baseURLPerDomain {
		servers[base] = true
	}
	return servers
}
