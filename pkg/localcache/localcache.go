// Package localcache manages the flat package directory the resolver fills.
//
// The directory holds two kinds of files side by side:
//
//	{name}.{version}.nuspec   raw manifest of a resolved package
//	{name}.nuspec             manifest of the latest version, for unpinned requests
//	{fileName}                extracted library, named as the manifest declares it
//
// Presence is the only signal of completeness: a file that exists is never
// fetched again. Writes go to a temporary file in the same directory and are
// renamed into place, so a reader never sees a partial file even when several
// processes share the directory.
package localcache

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/matzehuels/setupdb/pkg/errors"
)

// ManifestExt is the extension of cached manifests.
const ManifestExt = ".nuspec"

// DefaultDir is the package directory used when none is configured.
const DefaultDir = ".pkg"

// Dir is a package directory. Nothing is created until the first write.
type Dir struct {
	root string
}

// New returns a cache rooted at dir. An empty dir selects [DefaultDir].
func New(dir string) *Dir {
	if dir == "" {
		dir = DefaultDir
	}
	return &Dir{root: dir}
}

// Dir returns the directory path.
func (d *Dir) Dir() string { return d.root }

// ManifestPath returns the path of the manifest of name at version. An empty
// version names the latest-version alias.
func (d *Dir) ManifestPath(name, version string) string {
	base := filepath.Base(name)
	if version != "" {
		base += "." + filepath.Base(version)
	}
	return filepath.Join(d.root, base+ManifestExt)
}

// ArtifactPath returns the path a reference file is stored under. Only the
// base name of fileName is used.
func (d *Dir) ArtifactPath(fileName string) string {
	return filepath.Join(d.root, filepath.Base(fileName))
}

// HasManifest reports whether the manifest of name at version is present.
func (d *Dir) HasManifest(name, version string) bool {
	return isFile(d.ManifestPath(name, version))
}

// ReadManifest returns the cached manifest bytes.
func (d *Dir) ReadManifest(name, version string) ([]byte, error) {
	data, err := os.ReadFile(d.ManifestPath(name, version))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCache, err, "read manifest %s %s", name, version)
	}
	return data, nil
}

// WriteManifest stores manifest bytes for name at version.
func (d *Dir) WriteManifest(name, version string, data []byte) error {
	if err := errors.ValidateFileName(name); err != nil {
		return err
	}
	if err := d.writeFile(d.ManifestPath(name, version), data); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "write manifest %s %s", name, version)
	}
	return nil
}

// HasArtifact reports whether fileName is present. name is the owning
// package; the layout is flat, so it does not affect the path.
func (d *Dir) HasArtifact(name, fileName string) bool {
	return isFile(d.ArtifactPath(fileName))
}

// WriteArtifact stores an extracted library under fileName.
func (d *Dir) WriteArtifact(name, fileName string, data []byte) error {
	if err := errors.ValidateFileName(filepath.Base(fileName)); err != nil {
		return err
	}
	if err := d.writeFile(d.ArtifactPath(fileName), data); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "write %s for %s", fileName, name)
	}
	return nil
}

func (d *Dir) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Entry describes one file in the package directory.
type Entry struct {
	Name     string
	Manifest bool
	Size     int64
	ModTime  time.Time
}

// Entries lists the files in the directory sorted by name. A missing
// directory has no entries.
func (d *Dir) Entries() ([]Entry, error) {
	des, err := os.ReadDir(d.root)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCache, err, "list %s", d.root)
	}
	var out []Entry
	for _, de := range des {
		if !de.Type().IsRegular() || strings.HasPrefix(de.Name(), ".tmp-") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:     de.Name(),
			Manifest: strings.HasSuffix(de.Name(), ManifestExt),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Clear removes every regular file in the directory and returns how many
// were removed. Subdirectories are left alone.
func (d *Dir) Clear() (int, error) {
	des, err := os.ReadDir(d.root)
	if stderrors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCache, err, "list %s", d.root)
	}
	count := 0
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, de.Name())); err == nil {
			count++
		}
	}
	return count, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
