// Package nupkg reads library binaries out of NuGet package archives.
//
// A .nupkg file is a zip archive. Libraries live under lib/{framework}/; only
// .NET Standard and .NET Core builds are considered, since those are the
// ones a modern runtime can load.
package nupkg

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/matzehuels/setupdb/pkg/errors"
)

// libPrefixes are the accepted library folders, matched against the entry path.
var libPrefixes = []string{"lib/netstandard", "lib/netcoreapp"}

// maxEntrySize bounds a single extracted entry.
const maxEntrySize = 256 << 20

// Archive is an opened package archive.
type Archive struct {
	zr *zip.Reader
}

// Open reads a package archive from memory. A corrupt archive fails with
// ARTIFACT_NOT_FOUND.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifactNotFound, err, "read package archive")
	}
	return &Archive{zr: zr}, nil
}

// ExtractPrimaryBinary opens data and returns its primary binary.
func ExtractPrimaryBinary(data []byte) (entryName string, payload []byte, err error) {
	a, err := Open(data)
	if err != nil {
		return "", nil, err
	}
	return a.Primary()
}

// Primary returns the first entry, in archive order, that lives under an
// accepted library folder and ends in ".dll". entryName is the full path
// inside the archive.
func (a *Archive) Primary() (entryName string, payload []byte, err error) {
	for _, f := range a.zr.File {
		if isLibrary(f.Name) {
			payload, err := readEntry(f)
			if err != nil {
				return "", nil, err
			}
			return f.Name, payload, nil
		}
	}
	return "", nil, errors.New(errors.ErrCodeArtifactNotFound,
		"no %s*/*.dll entry in package archive", strings.Join(libPrefixes, "* or "))
}

// Lookup returns the library entry whose base name equals fileName, compared
// case-insensitively, searching the same folders as [Archive.Primary].
func (a *Archive) Lookup(fileName string) (entryName string, payload []byte, err error) {
	for _, f := range a.zr.File {
		if !isLibrary(f.Name) || !strings.EqualFold(path.Base(f.Name), fileName) {
			continue
		}
		payload, err := readEntry(f)
		if err != nil {
			return "", nil, err
		}
		return f.Name, payload, nil
	}
	return "", nil, errors.New(errors.ErrCodeArtifactNotFound, "%s not found in package archive", fileName)
}

// Entries lists every entry path in archive order.
func (a *Archive) Entries() []string {
	names := make([]string, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		names = append(names, f.Name)
	}
	return names
}

func isLibrary(name string) bool {
	if !strings.HasSuffix(name, ".dll") {
		return false
	}
	for _, p := range libPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, errors.New(errors.ErrCodeArtifactNotFound, "%s is too large (%d bytes)", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifactNotFound, err, "open %s", f.Name)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifactNotFound, err, "read %s", f.Name)
	}
	if len(data) > maxEntrySize {
		return nil, errors.New(errors.ErrCodeArtifactNotFound, "%s exceeds %d bytes", f.Name, maxEntrySize)
	}
	return data, nil
}
