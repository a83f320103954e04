package tofu

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestCheckKnownHost_FirstContactTrustAndStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	ctx := context.Background()

	var seen VerificationStatus
	verify := func(_ context.Context, status VerificationStatus) (Decision, error) {
		seen = status
		return TrustAndStore, nil
	}

	if err := CheckKnownHost(ctx, path, "db:7687", "fp-1", verify); err != nil {
		t.Fatalf("CheckKnownHost: %v", err)
	}
	if seen.Reason != ReasonUnrecognized {
		t.Fatalf("reason = %v, want ReasonUnrecognized", seen.Reason)
	}

	fp, found, err := Lookup(path, "db:7687")
	if err != nil || !found || fp != "fp-1" {
		t.Fatalf("Lookup after trust: %q, %v, %v", fp, found, err)
	}

	// Second connection: already known, verifier must not be consulted.
	called := false
	noCall := func(context.Context, VerificationStatus) (Decision, error) {
		called = true
		return Reject, nil
	}
	if err := CheckKnownHost(ctx, path, "db:7687", "fp-1", noCall); err != nil {
		t.Fatalf("CheckKnownHost second call: %v", err)
	}
	if called {
		t.Fatal("verifier should not be consulted for an already-trusted fingerprint")
	}
}

func TestCheckKnownHost_AcceptOnceDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	ctx := context.Background()

	if err := CheckKnownHost(ctx, path, "db:7687", "fp-1", StaticVerifier(AcceptOnce)); err != nil {
		t.Fatalf("CheckKnownHost: %v", err)
	}
	_, found, err := Lookup(path, "db:7687")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("accept-once must not write a known-hosts entry")
	}
}

func TestCheckKnownHost_MismatchRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	ctx := context.Background()

	if err := Replace(path, "db:7687", "fp-original"); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	var seen VerificationStatus
	verify := func(_ context.Context, status VerificationStatus) (Decision, error) {
		seen = status
		return Reject, nil
	}
	err := CheckKnownHost(ctx, path, "db:7687", "fp-different", verify)
	if !IsMismatch(err) {
		t.Fatalf("expected a mismatch error, got %v", err)
	}
	if seen.Reason != ReasonMismatch || seen.Known != "fp-original" {
		t.Fatalf("status = %+v, want mismatch against fp-original", seen)
	}

	fp, _, _ := Lookup(path, "db:7687")
	if fp != "fp-original" {
		t.Fatalf("rejected mismatch must not overwrite the stored fingerprint, got %q", fp)
	}
}

func TestCheckKnownHost_UnrecognizedRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	err := CheckKnownHost(context.Background(), path, "db:7687", "fp-1", StaticVerifier(Reject))
	if !IsUnrecognizedHost(err) {
		t.Fatalf("expected an unrecognized-host error, got %v", err)
	}
}

func TestCheckKnownHost_RejectedWrapsErrRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	err := CheckKnownHost(context.Background(), path, "db:7687", "fp-1", StaticVerifier(Reject))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected err to wrap ErrRejected, got %v", err)
	}
}

func TestCheckKnownHost_VerifierErrorWraps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	cause := errors.New("prompt aborted")
	verify := func(context.Context, VerificationStatus) (Decision, error) {
		return Reject, cause
	}
	err := CheckKnownHost(context.Background(), path, "db:7687", "fp-1", verify)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestCheckKnownHost_MismatchThenTrustAndStoreOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	ctx := context.Background()

	if err := Replace(path, "db:7687", "fp-old"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := CheckKnownHost(ctx, path, "db:7687", "fp-new", StaticVerifier(TrustAndStore)); err != nil {
		t.Fatalf("CheckKnownHost: %v", err)
	}
	fp, found, err := Lookup(path, "db:7687")
	if err != nil || !found || fp != "fp-new" {
		t.Fatalf("Lookup after re-trust: %q, %v, %v", fp, found, err)
	}
}
