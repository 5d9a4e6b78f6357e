// Package fhir holds the lenient FHIR resource subset used by the
// terminology client and the value set resolver. Resources are decoded with
// encoding/json and unknown fields are ignored; no schema validation is
// performed, so malformed but well-typed payloads pass through as-is.
package fhir

// ValueSet is a FHIR ValueSet resource. A value set is unexpanded when its
// Expansion carries no Contains entries; after expansion, Expansion.Contains
// is the complete code list as of retrieval time.
type ValueSet struct {
	ResourceType string    `json:"resourceType,omitempty"`
	ID           string    `json:"id,omitempty"`
	URL          string    `json:"url,omitempty"`
	Version      string    `json:"version,omitempty"`
	Name         string    `json:"name,omitempty"`
	Status       string    `json:"status,omitempty"`
	Expansion    Expansion `json:"expansion,omitempty"`
}

// Expansion is the computed code list of a ValueSet. Total is a pointer so
// that a paginating server's total can be distinguished from an absent field.
type Expansion struct {
	Identifier string     `json:"identifier,omitempty"`
	Timestamp  string     `json:"timestamp,omitempty"`
	Total      *int       `json:"total,omitempty"`
	Offset     *int       `json:"offset,omitempty"`
	Contains   []Contains `json:"contains,omitempty"`
}

// Contains is a single expanded code.
type Contains struct {
	System  string `json:"system,omitempty"`
	Version string `json:"version,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Expanded reports whether the value set carries at least one expanded code.
func (vs *ValueSet) Expanded() bool {
	return len(vs.Expansion.Contains) > 0
}

// StructureDefinition is a FHIR StructureDefinition resource, reduced to the
// element lists that can carry value set bindings.
type StructureDefinition struct {
	ResourceType string      `json:"resourceType,omitempty"`
	ID           string      `json:"id,omitempty"`
	URL          string      `json:"url,omitempty"`
	Name         string      `json:"name,omitempty"`
	Type         string      `json:"type,omitempty"`
	Differential ElementList `json:"differential,omitempty"`
	Snapshot     ElementList `json:"snapshot,omitempty"`
}

// ElementList is an ordered element collection (differential or snapshot).
type ElementList struct {
	Element []Element `json:"element,omitempty"`
}

// Element is a single element definition.
type Element struct {
	Path    string   `json:"path,omitempty"`
	Binding *Binding `json:"binding,omitempty"`
}

// Binding constrains an element to codes from a referenced value set.
type Binding struct {
	Strength string `json:"strength,omitempty"`
	ValueSet string `json:"valueSet,omitempty"`
}

// BindingValueSets returns every non-empty binding value set URL across the
// union of the differential and snapshot elements, in element order.
// Duplicates are preserved; callers dedup when projecting.
func (sd *StructureDefinition) BindingValueSets() []string {
	var urls []string
	for _, list := range []ElementList{sd.Differential, sd.Snapshot} {
		for _, el := range list.Element {
			if el.Binding != nil && el.Binding.ValueSet != "" {
				urls = append(urls, el.Binding.ValueSet)
			}
		}
	}
	return urls
}
