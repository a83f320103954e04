// Package dotdir locates the default per-user configuration directory a
// known-hosts file is stored under when a caller doesn't override the
// path explicitly.
package dotdir

import (
	"os"
	"path/filepath"
)

// appDirName is the subdirectory created under the user's configuration
// directory.
const appDirName = "corebolt"

// KnownHostsFileName is the default known-hosts file name within Dir().
const KnownHostsFileName = "neo4j_known_certs"

// Dir returns the per-user configuration directory for this module,
// creating it (mode 0700) if it doesn't already exist.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultKnownHostsPath returns the path Dir()/KnownHostsFileName, creating
// Dir() if necessary.
func DefaultKnownHostsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, KnownHostsFileName), nil
}
