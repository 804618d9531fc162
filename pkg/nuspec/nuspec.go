package nuspec

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/matzehuels/setupdb/pkg/errors"
)

// Namespace is written by [Marshal]. [Parse] accepts any namespace.
const Namespace = "http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd"

// Manifest is the subset of a .nuspec document the resolver needs.
type Manifest struct {
	ID               string
	Version          string
	ReferenceFiles   []string
	DependencyGroups []DependencyGroup
}

// DependencyGroup is a set of dependencies for one target framework. An empty
// TargetFramework means the group had no targetFramework attribute, or the
// dependencies were declared directly under <dependencies>.
type DependencyGroup struct {
	TargetFramework string
	Dependencies    []Dependency
}

// Dependency is a declared dependency. Version is the raw declared string,
// which may use interval notation; see [PinnedVersion].
type Dependency struct {
	ID      string
	Version string
}

// Parse decodes a .nuspec document.
func Parse(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New(errors.ErrCodeManifestParse, "empty manifest")
	}

	var doc xmlPackage
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestParse, err, "malformed manifest")
	}

	md := doc.Metadata
	m := &Manifest{
		ID:      strings.TrimSpace(md.ID),
		Version: strings.TrimSpace(md.Version),
	}
	if m.ID == "" {
		return nil, errors.New(errors.ErrCodeManifestParse, "manifest has no package id")
	}
	if m.Version == "" {
		return nil, errors.New(errors.ErrCodeManifestParse, "manifest for %s has no version", m.ID)
	}

	if md.References != nil {
		m.ReferenceFiles = appendFiles(m.ReferenceFiles, md.References.References)
		for _, g := range md.References.Groups {
			m.ReferenceFiles = appendFiles(m.ReferenceFiles, g.References)
		}
	}

	if md.Dependencies != nil {
		if flat := toDependencies(md.Dependencies.Dependencies); len(flat) > 0 {
			m.DependencyGroups = append(m.DependencyGroups, DependencyGroup{Dependencies: flat})
		}
		for _, g := range md.Dependencies.Groups {
			m.DependencyGroups = append(m.DependencyGroups, DependencyGroup{
				TargetFramework: strings.TrimSpace(g.TargetFramework),
				Dependencies:    toDependencies(g.Dependencies),
			})
		}
	}

	return m, nil
}

// Marshal encodes m as a .nuspec document. Every dependency group is written
// as a <group> element so [Parse] returns the groups in the same order.
func Marshal(m *Manifest) ([]byte, error) {
	doc := xmlPackageOut{
		Xmlns: Namespace,
		Metadata: xmlMetadataOut{
			ID:      m.ID,
			Version: m.Version,
		},
	}
	if len(m.ReferenceFiles) > 0 {
		refs := &xmlReferencesOut{}
		for _, f := range m.ReferenceFiles {
			refs.References = append(refs.References, xmlReference{File: f})
		}
		doc.Metadata.References = refs
	}
	if len(m.DependencyGroups) > 0 {
		deps := &xmlDependenciesOut{}
		for _, g := range m.DependencyGroups {
			og := xmlGroupOut{TargetFramework: g.TargetFramework}
			for _, d := range g.Dependencies {
				og.Dependencies = append(og.Dependencies, xmlDependency{ID: d.ID, Version: d.Version})
			}
			deps.Groups = append(deps.Groups, og)
		}
		doc.Metadata.Dependencies = deps
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode manifest")
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func appendFiles(dst []string, refs []xmlReference) []string {
	for _, r := range refs {
		if f := strings.TrimSpace(r.File); f != "" {
			dst = append(dst, f)
		}
	}
	return dst
}

func toDependencies(in []xmlDependency) []Dependency {
	var out []Dependency
	for _, d := range in {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			continue
		}
		out = append(out, Dependency{ID: id, Version: strings.TrimSpace(d.Version)})
	}
	return out
}

// Decoding types carry no namespace so they match any nuspec schema version.

type xmlPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata xmlMetadata `xml:"metadata"`
}

type xmlMetadata struct {
	ID           string           `xml:"id"`
	Version      string           `xml:"version"`
	References   *xmlReferences   `xml:"references"`
	Dependencies *xmlDependencies `xml:"dependencies"`
}

type xmlReferences struct {
	References []xmlReference `xml:"reference"`
	Groups     []xmlRefGroup  `xml:"group"`
}

type xmlRefGroup struct {
	References []xmlReference `xml:"reference"`
}

type xmlReference struct {
	File string `xml:"file,attr"`
}

type xmlDependencies struct {
	Dependencies []xmlDependency `xml:"dependency"`
	Groups       []xmlDepGroup   `xml:"group"`
}

type xmlDepGroup struct {
	TargetFramework string          `xml:"targetFramework,attr"`
	Dependencies    []xmlDependency `xml:"dependency"`
}

type xmlDependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr,omitempty"`
}

type xmlPackageOut struct {
	XMLName  xml.Name       `xml:"package"`
	Xmlns    string         `xml:"xmlns,attr"`
	Metadata xmlMetadataOut `xml:"metadata"`
}

type xmlMetadataOut struct {
	ID           string              `xml:"id"`
	Version      string              `xml:"version"`
	References   *xmlReferencesOut   `xml:"references,omitempty"`
	Dependencies *xmlDependenciesOut `xml:"dependencies,omitempty"`
}

type xmlReferencesOut struct {
	References []xmlReference `xml:"reference"`
}

type xmlDependenciesOut struct {
	Groups []xmlGroupOut `xml:"group"`
}

type xmlGroupOut struct {
	TargetFramework string          `xml:"targetFramework,attr,omitempty"`
	Dependencies    []xmlDependency `xml:"dependency"`
}
