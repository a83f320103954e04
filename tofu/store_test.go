package tofu

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLookup_MissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	fp, found, err := Lookup(path, "db.example.com:7687")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatalf("expected no entry, got %q", fp)
	}
}

func TestReplaceThenLookup_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	if err := Replace(path, "db.example.com:7687", "aa:bb:cc"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	fp, found, err := Lookup(path, "db.example.com:7687")
	if err != nil || !found {
		t.Fatalf("Lookup after Replace: %q, %v, %v", fp, found, err)
	}
	if fp != "aa:bb:cc" {
		t.Fatalf("fingerprint = %q, want aa:bb:cc", fp)
	}
}

func TestReplace_OverwritesOnlyMatchingHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	if err := Replace(path, "a.example.com:7687", "fp-a"); err != nil {
		t.Fatalf("Replace a: %v", err)
	}
	if err := Replace(path, "b.example.com:7687", "fp-b"); err != nil {
		t.Fatalf("Replace b: %v", err)
	}
	if err := Replace(path, "a.example.com:7687", "fp-a-new"); err != nil {
		t.Fatalf("Replace a again: %v", err)
	}

	fpA, found, err := Lookup(path, "a.example.com:7687")
	if err != nil || !found || fpA != "fp-a-new" {
		t.Fatalf("a.example.com = %q, %v, %v, want fp-a-new", fpA, found, err)
	}
	fpB, found, err := Lookup(path, "b.example.com:7687")
	if err != nil || !found || fpB != "fp-b" {
		t.Fatalf("b.example.com = %q, %v, %v, want fp-b untouched", fpB, found, err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Count(string(contents), "a.example.com:7687") != 1 {
		t.Fatalf("expected exactly one entry for a.example.com, got:\n%s", contents)
	}
}

func TestLookup_PrefixMustBeFollowedByWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	if err := Replace(path, "db.example.com:7687", "fp-short"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	// "db.example.com:76870" is not a whitespace-delimited match against
	// the stored "db.example.com:7687" host label, even though it shares
	// the prefix.
	_, found, err := Lookup(path, "db.example.com:76870")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected no match on a host label that merely shares a prefix")
	}
}

func TestLookup_OverlongFingerprintIsAParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	overlong := strings.Repeat("a", maxFingerprintLength+1)
	if err := os.WriteFile(path, []byte("db.example.com:7687 "+overlong+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, _, err := Lookup(path, "db.example.com:7687")
	if err == nil {
		t.Fatal("expected a parse error for an overlong fingerprint, got nil")
	}
}

func TestReplace_CreatesContainingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "known_hosts")
	if err := Replace(path, "h:1", "fp"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Stat: %v", err)
	}
}

func TestReplace_LeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	if err := Replace(path, "h:1", "fp"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "known_hosts" {
		t.Fatalf("expected only known_hosts in %s, got %v", dir, entries)
	}
}
