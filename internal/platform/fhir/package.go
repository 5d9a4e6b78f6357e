package fhir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Package is an immutable bundle of FHIR definitions loaded together, for
// instance one implementation guide or a core specification package.
type Package struct {
	Name                 string
	ValueSets            []*ValueSet
	StructureDefinitions []*StructureDefinition
}

// PackageManager is a closed-world, lookup-only directory over loaded
// packages. It never falls back to the network: a resource is either in one
// of the registered packages or it is not found.
type PackageManager struct {
	packages []*Package
	byURL    map[string]any
}

// NewPackageManager creates a package manager over the given packages.
// Packages registered earlier take priority for duplicate URLs.
func NewPackageManager(packages ...*Package) *PackageManager {
	m := &PackageManager{byURL: make(map[string]any)}
	for _, pkg := range packages {
		m.Add(pkg)
	}
	return m
}

// Add registers a package. Resources whose URL is already known keep the
// earlier registration.
func (m *PackageManager) Add(pkg *Package) {
	m.packages = append(m.packages, pkg)
	for _, vs := range pkg.ValueSets {
		if vs.URL != "" {
			if _, ok := m.byURL[vs.URL]; !ok {
				m.byURL[vs.URL] = vs
			}
		}
	}
	for _, sd := range pkg.StructureDefinitions {
		if sd.URL != "" {
			if _, ok := m.byURL[sd.URL]; !ok {
				m.byURL[sd.URL] = sd
			}
		}
	}
}

// Packages returns the registered packages in registration order.
func (m *PackageManager) Packages() []*Package {
	return m.packages
}

// GetResource looks up a resource by canonical URL. A "url|version" suffix
// is stripped before lookup. The second return is false when no package
// contains the URL.
func (m *PackageManager) GetResource(url string) (any, bool) {
	res, ok := m.byURL[StripVersion(url)]
	return res, ok
}

// LoadPackageDir reads every .json file in dir and collects the ValueSet and
// StructureDefinition resources found there into a Package. Files holding
// other resource types, or files that fail to parse, are skipped.
func LoadPackageDir(dir string) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read package directory %s: %w", dir, err)
	}

	pkg := &Package{Name: filepath.Base(dir)}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read resource file %s: %w", entry.Name(), err)
		}

		var peek struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(data, &peek); err != nil {
			continue
		}

		switch peek.ResourceType {
		case "ValueSet":
			var vs ValueSet
			if err := json.Unmarshal(data, &vs); err != nil {
				continue
			}
			pkg.ValueSets = append(pkg.ValueSets, &vs)
		case "StructureDefinition":
			var sd StructureDefinition
			if err := json.Unmarshal(data, &sd); err != nil {
				continue
			}
			pkg.StructureDefinitions = append(pkg.StructureDefinitions, &sd)
		}
	}

	return pkg, nil
}
