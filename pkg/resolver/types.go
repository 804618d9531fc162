package resolver

import (
	"context"
	"strings"
)

// Index is the remote package feed.
type Index interface {
	LatestVersion(ctx context.Context, name string) (version, downloadURL string, err error)
	FetchManifest(ctx context.Context, name, version string) ([]byte, error)
	FetchArchive(ctx context.Context, name, version, downloadURL string) ([]byte, error)
}

// Store is the local package directory.
type Store interface {
	HasManifest(name, version string) bool
	ReadManifest(name, version string) ([]byte, error)
	WriteManifest(name, version string, data []byte) error
	HasArtifact(name, fileName string) bool
	WriteArtifact(name, fileName string, data []byte) error
	ArtifactPath(fileName string) string
}

// PackageRef identifies a package. An empty Version means the latest one.
type PackageRef struct {
	Name    string
	Version string
}

// String returns "name@version", or "name@latest" when unpinned.
func (r PackageRef) String() string {
	if r.Version == "" {
		return r.Name + "@latest"
	}
	return r.Name + "@" + r.Version
}

// key is the case-insensitive identity of a pinned package.
func (r PackageRef) key() string {
	return strings.ToLower(r.Name) + "@" + strings.ToLower(r.Version)
}

// ResolvedPackage is the outcome of resolving one package.
type ResolvedPackage struct {
	Name                string
	Version             string
	PrimaryArtifactPath string       // first declared reference, inside the package directory
	References          []string     // every declared reference file name
	Dependencies        []PackageRef // retained dependencies, pinned to the versions resolved
}

// Ref returns the pinned identity of p.
func (p *ResolvedPackage) Ref() PackageRef {
	return PackageRef{Name: p.Name, Version: p.Version}
}
