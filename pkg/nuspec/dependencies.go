package nuspec

import "strings"

// excludedFrameworkPrefix marks dependency groups that target .NET Standard.
// Those dependencies are provided by the runtime.
const excludedFrameworkPrefix = ".NETStandard"

// excludedIDPrefix marks framework packages that ship with the runtime.
const excludedIDPrefix = "System."

var platformIDs = map[string]bool{
	"NETStandard.Library":   true,
	"Microsoft.NETCore.App": true,
}

// References returns the declared reference files, or the synthetic
// "{name}.dll" when the manifest declares none. name is the package name the
// caller requested, which may differ in case from m.ID.
func (m *Manifest) References(name string) []string {
	if len(m.ReferenceFiles) > 0 {
		return m.ReferenceFiles
	}
	return []string{name + ".dll"}
}

// RetainedDependencies returns the dependencies the resolver must follow:
// groups targeting .NET Standard are skipped, as are System.* packages and
// the platform meta-packages. Duplicates across groups collapse to the first
// declaration, compared case-insensitively.
func (m *Manifest) RetainedDependencies() []Dependency {
	var out []Dependency
	seen := make(map[string]bool)
	for _, g := range m.DependencyGroups {
		if strings.HasPrefix(g.TargetFramework, excludedFrameworkPrefix) {
			continue
		}
		for _, d := range g.Dependencies {
			if Excluded(d.ID) {
				continue
			}
			key := strings.ToLower(d.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, d)
		}
	}
	return out
}

// Excluded reports whether a dependency id is provided by the runtime and
// must never be downloaded.
func Excluded(id string) bool {
	return strings.HasPrefix(id, excludedIDPrefix) || platformIDs[id]
}

// PinnedVersion reduces a declared version to the version the resolver
// requests. A bare version ("4.5.0") is returned as is. In interval notation
// the inclusive lower bound is used ("[4.5.0, )" and "[4.5.0]" both give
// "4.5.0"). An exclusive or missing lower bound gives "", meaning latest.
func PinnedVersion(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	switch v[0] {
	case '(':
		return ""
	case '[':
		inner := strings.TrimPrefix(v, "[")
		inner = strings.TrimRight(inner, ")]")
		lower, _, _ := strings.Cut(inner, ",")
		return strings.TrimSpace(lower)
	}
	return v
}
