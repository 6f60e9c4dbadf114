package resource

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	furl "github.com/viant/afs/url"
)

// ToLocator turns a file system path or URL into an absolute locator.
// Strings that already carry a scheme are returned unchanged.
func ToLocator(pathOrURL string) (string, error) {
	pathOrURL = strings.TrimSpace(pathOrURL)
	if pathOrURL == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(pathOrURL, "://") {
		return pathOrURL, nil
	}
	abs, err := filepath.Abs(pathOrURL)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// WorkingDirLocator returns the directory locator used as the base for
// imports whose containing descriptor has no known source.
func WorkingDirLocator() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	loc, err := ToLocator(cwd)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(loc, "/") + "/", nil
}

// ResolveReference joins a location relative to base. base is the locator of
// the containing descriptor (a file) or a directory locator ending in "/".
// Absolute locations are returned as locators without consulting base.
// Locators are never percent-encoded, so names with spaces or '#' stay as
// they are on disk.
func ResolveReference(base, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("empty location")
	}
	if strings.Contains(location, "://") || filepath.IsAbs(location) {
		return ToLocator(location)
	}
	prefix, p, err := splitLocator(base)
	if err != nil {
		return "", err
	}
	dir := p
	if !strings.HasSuffix(p, "/") {
		dir = path.Dir(p)
	}
	return prefix + path.Join(dir, filepath.ToSlash(location)), nil
}

// splitLocator separates "scheme://host" from the slash-rooted path.
func splitLocator(locator string) (string, string, error) {
	i := strings.Index(locator, "://")
	if i <= 0 {
		return "", "", fmt.Errorf("malformed base locator %q", locator)
	}
	rest := locator[i+3:]
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return locator, "/", nil
	}
	return locator[:i+3+slash], rest[slash:], nil
}

// JoinDir appends a slash-separated relative file name to a directory locator.
func JoinDir(dir, name string) string {
	return furl.Join(strings.TrimRight(dir, "/"), name)
}
