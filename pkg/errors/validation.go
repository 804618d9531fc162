package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxPackageIDLength is the longest package id the NuGet gallery accepts.
const maxPackageIDLength = 100

// packageIDRegex matches valid NuGet package ids: word characters separated
// by single dots, dashes or underscores.
var packageIDRegex = regexp.MustCompile(`^\w+([_.-]\w+)*$`)

// ValidatePackageName validates a package id for safety and correctness.
// It rejects names that could escape the package directory when used in
// cache file names, and names the registry would never accept.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > maxPackageIDLength {
		return New(ErrCodeInvalidPackage, "package name too long (max %d characters)", maxPackageIDLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	if !packageIDRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid package name: %q", name)
	}

	return nil
}

// versionRegex matches a pinned NuGet version: one to four numeric
// components with optional pre-release and build metadata suffixes.
var versionRegex = regexp.MustCompile(`^\d+(\.\d+){0,3}(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

// ValidateVersion validates a pinned package version. The empty string is
// valid and means "latest".
func ValidateVersion(version string) error {
	if version == "" {
		return nil
	}
	if !versionRegex.MatchString(version) {
		return New(ErrCodeInvalidVersion, "invalid package version: %q", version)
	}
	return nil
}

// ValidateFileName validates a reference file name declared by a manifest.
// It must be a plain base name so it cannot point outside the package directory.
func ValidateFileName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "file name cannot be empty")
	}

	for _, r := range name {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "file name contains invalid characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "file name cannot contain path separators")
	}

	if name == "." || name == ".." {
		return New(ErrCodeInvalidPath, "file name cannot be %q", name)
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
