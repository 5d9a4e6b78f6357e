// Package valueset resolves value sets from loaded FHIR packages and
// materializes expanded code lists into the valueset_codes table.
package valueset

import (
	"errors"
	"fmt"
	"iter"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

// ErrNotFound reports a value set URL absent from every registered package.
// Lookups are closed-world: there is no network fallback.
var ErrNotFound = errors.New("value set not found in resolver packages")

// NotValueSetError reports a URL that resolved to a resource of another type.
type NotValueSetError struct {
	URL      string
	Resource any
}

func (e *NotValueSetError) Error() string {
	return fmt.Sprintf("url %s does not refer to a value set, found %T", e.URL, e.Resource)
}

// ResourceLookup finds a resource definition by canonical URL.
type ResourceLookup interface {
	GetResource(url string) (any, bool)
}

// Resolver retrieves value set definitions from a package manager and walks
// structure definitions for the value sets their element bindings reference.
// The resolver only reads through the lookup; it owns nothing.
type Resolver struct {
	packages ResourceLookup
}

// NewResolver creates a resolver over the given package lookup.
func NewResolver(packages ResourceLookup) *Resolver {
	return &Resolver{packages: packages}
}

// ValueSetFromURL retrieves the value set definition for the given URL from
// the registered packages.
func (r *Resolver) ValueSetFromURL(url string) (*fhir.ValueSet, error) {
	resource, ok := r.packages.GetResource(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	vs, ok := resource.(*fhir.ValueSet)
	if !ok {
		return nil, &NotValueSetError{URL: url, Resource: resource}
	}
	return vs, nil
}

// ValueSetsFromStructureDefinition yields every value set bound to an
// element of the structure definition, across the union of its differential
// and snapshot, deduplicated by URL with the first occurrence winning.
// Iteration is restartable; each range re-runs resolution. A resolution
// failure is yielded once and terminates the sequence.
func (r *Resolver) ValueSetsFromStructureDefinition(sd *fhir.StructureDefinition) iter.Seq2[*fhir.ValueSet, error] {
	return func(yield func(*fhir.ValueSet, error) bool) {
		seen := make(map[string]bool)
		for _, url := range sd.BindingValueSets() {
			vs, err := r.ValueSetFromURL(url)
			if err != nil {
				yield(nil, err)
				return
			}
			if seen[vs.URL] {
				continue
			}
			seen[vs.URL] = true
			if !yield(vs, nil) {
				return
			}
		}
	}
}

// ValueSetsFromFHIRPackage yields every value set referenced by the package:
// the package's own value sets first, then the discoveries from each of its
// structure definitions in order, deduplicated by URL across the whole
// sequence. The package's own copy wins over later discoveries.
func (r *Resolver) ValueSetsFromFHIRPackage(pkg *fhir.Package) iter.Seq2[*fhir.ValueSet, error] {
	return func(yield func(*fhir.ValueSet, error) bool) {
		seen := make(map[string]bool)
		for _, vs := range pkg.ValueSets {
			if seen[vs.URL] {
				continue
			}
			seen[vs.URL] = true
			if !yield(vs, nil) {
				return
			}
		}
		for _, sd := range pkg.StructureDefinitions {
			for vs, err := range r.ValueSetsFromStructureDefinition(sd) {
				if err != nil {
					yield(nil, err)
					return
				}
				if seen[vs.URL] {
					continue
				}
				seen[vs.URL] = true
				if !yield(vs, nil) {
					return
				}
			}
		}
	}
}
