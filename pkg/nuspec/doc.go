// Package nuspec reads and writes NuGet package manifests (.nuspec files).
//
// A manifest names the package, its version, the assembly files a consumer
// should reference, and the dependency groups per target framework. Parsing
// is namespace-agnostic: the nuspec schema has changed namespace several
// times and all published variants are accepted.
//
//	m, err := nuspec.Parse(data)
//	if err != nil {
//	    return err
//	}
//	for _, d := range m.RetainedDependencies() {
//	    fmt.Println(d.ID, nuspec.PinnedVersion(d.Version))
//	}
package nuspec
