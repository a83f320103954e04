// Package tofu implements trust-on-first-use host verification: a
// persistent, atomically-updated mapping from "hostname:port" to a
// server's certificate fingerprint, used to detect a man-in-the-middle
// after the first successful connection.
//
// The package has two layers: Lookup/Replace (store.go) manage the
// on-disk known-hosts file directly, and CheckKnownHost (verify.go)
// implements the trust decision algorithm on top of them.
package tofu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxKnownHostsLineLength bounds how much of a known-hosts line this
// package will treat as a potential match. A line longer than this is
// still copied verbatim during Replace (it's opaque pass-through data, not
// this store's concern), but Lookup only matches it if the host label and
// its trailing whitespace fall entirely inside the first
// maxKnownHostsLineLength bytes.
const maxKnownHostsLineLength = 1024

// maxFingerprintLength bounds a matched fingerprint field. The file format
// this package is modeled on silently truncated an overlong fingerprint at
// the caller's buffer size; this implementation instead treats that case
// as a parse error; see DESIGN.md's note on the open question. The bound
// leaves room for a colon-separated SHA-256 hex digest (95 characters), the
// form internal/bolt presents.
const maxFingerprintLength = 128

// ErrFingerprintTooLong is returned by Lookup when a matching entry's
// fingerprint field exceeds maxFingerprintLength. The source this package
// is modeled on silently truncated such values; this package refuses to.
var ErrFingerprintTooLong = errors.New("tofu: stored fingerprint exceeds maximum length")

// Lookup scans the known-hosts file at path for an entry keyed by
// hostLabel (a "hostname:port" string). It returns the stored fingerprint
// and true on a match, or ("", false, nil) if the file doesn't exist or
// has no matching entry — a lookup miss is not an error.
func Lookup(path, hostLabel string) (string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("tofu: opening known-hosts file %s: %w", path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			if fingerprint, ok, matchErr := matchHostLine(line, hostLabel); matchErr != nil {
				return "", false, fmt.Errorf("tofu: %s: %w", path, matchErr)
			} else if ok {
				return fingerprint, true, nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return "", false, nil
			}
			return "", false, fmt.Errorf("tofu: reading known-hosts file %s: %w", path, readErr)
		}
	}
}

// Replace atomically rewrites the known-hosts file at path so that it
// contains exactly one entry for hostLabel, set to fingerprint, leaving
// every other entry untouched. It creates the containing directory if
// necessary, writes to a sibling temp file, and renames it over path —
// the whole-file-rewrite-via-rename discipline required for crash safety
// and for concurrent readers to always observe either the old or the new
// file. The temp file must live on the same filesystem as path for the
// final rename to be atomic; Replace relies on the directory already being
// on that filesystem rather than verifying it.
//
// Any failure leaves the original file untouched and removes the
// partially-written temp file.
func Replace(path, hostLabel, fingerprint string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("tofu: creating known-hosts directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("tofu: creating temp known-hosts file: %w", err)
	}
	tmpPath := tmp.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	writer := bufio.NewWriter(tmp)

	if existing, openErr := os.Open(path); openErr == nil {
		if err := copyExcludingHost(writer, existing, hostLabel); err != nil {
			existing.Close()
			return fmt.Errorf("tofu: rewriting known-hosts file %s: %w", path, err)
		}
		if err := existing.Close(); err != nil {
			return fmt.Errorf("tofu: closing known-hosts file %s: %w", path, err)
		}
	} else if !errors.Is(openErr, os.ErrNotExist) {
		return fmt.Errorf("tofu: opening known-hosts file %s: %w", path, openErr)
	}

	if _, err := fmt.Fprintf(writer, "%s %s\n", hostLabel, fingerprint); err != nil {
		return fmt.Errorf("tofu: appending entry to temp known-hosts file: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("tofu: flushing temp known-hosts file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tofu: closing temp known-hosts file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tofu: renaming temp known-hosts file into place: %w", err)
	}
	succeeded = true
	return nil
}

// copyExcludingHost copies every line from src to dst except lines whose
// prefix matches hostLabel followed by whitespace. Lines too long to
// evaluate a match against are still copied verbatim (opaque pass-through).
func copyExcludingHost(dst *bufio.Writer, src io.Reader, hostLabel string) error {
	reader := bufio.NewReader(src)
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			_, matched, matchErr := matchHostLine(line, hostLabel)
			// matchErr only arises on a line keyed by hostLabel whose
			// fingerprint is overlong; it is still this host's entry, so it
			// is dropped like any other match and replaced by the new one.
			if matchErr != nil {
				matched = true
			}
			if !matched {
				if _, err := dst.WriteString(line); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// matchHostLine reports whether line is a known-hosts record keyed by
// hostLabel, and if so returns its fingerprint field. A line longer than
// maxKnownHostsLineLength is only matched if hostLabel and its separating
// whitespace fit within the first maxKnownHostsLineLength bytes.
func matchHostLine(line, hostLabel string) (fingerprint string, matched bool, err error) {
	if len(hostLabel)+1 > maxKnownHostsLineLength {
		return "", false, nil
	}
	if !strings.HasPrefix(line, hostLabel) {
		return "", false, nil
	}
	rest := line[len(hostLabel):]
	if rest == "" || !isHostLineSpace(rest[0]) {
		return "", false, nil
	}
	fingerprint = strings.TrimSpace(rest)
	if len(fingerprint) > maxFingerprintLength {
		return "", false, fmt.Errorf("%w: %q", ErrFingerprintTooLong, hostLabel)
	}
	return fingerprint, true, nil
}

func isHostLineSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
