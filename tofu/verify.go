package tofu

import (
	"context"
	"fmt"
)

// Decision is the action a Verifier takes in response to a host whose
// fingerprint isn't already trusted.
type Decision int

const (
	// Reject aborts the connection attempt.
	Reject Decision = iota
	// TrustAndStore accepts the fingerprint and persists it to the
	// known-hosts file, so future connections to this host trust it
	// without prompting again.
	TrustAndStore
	// AcceptOnce accepts the fingerprint for this connection only; nothing
	// is written to the known-hosts file.
	AcceptOnce
)

func (d Decision) String() string {
	switch d {
	case TrustAndStore:
		return "trust-and-store"
	case AcceptOnce:
		return "accept-once"
	default:
		return "reject"
	}
}

// VerificationStatus describes a host presenting a fingerprint that
// CheckKnownHost could not trust outright, and is handed to a Verifier so
// it can decide what to do about it.
type VerificationStatus struct {
	HostLabel   string
	Fingerprint string
	// Known is the previously-stored fingerprint. Empty when Reason is
	// ReasonUnrecognized.
	Known  string
	Reason MismatchReason
}

// Verifier decides whether to trust a host presenting an unrecognized or
// mismatched fingerprint — typically by prompting an operator, but tests
// and unattended deployments may supply a static decision instead. An
// error from Verifier aborts the connection and is wrapped in a
// VerificationError.
type Verifier func(ctx context.Context, status VerificationStatus) (Decision, error)

// StaticVerifier returns a Verifier that always returns decision, ignoring
// the status. Useful for tests and for unattended deployments that pin a
// single fixed policy (e.g. always AcceptOnce, or always Reject).
func StaticVerifier(decision Decision) Verifier {
	return func(context.Context, VerificationStatus) (Decision, error) {
		return decision, nil
	}
}

// CheckKnownHost implements the trust-on-first-use decision: it looks up
// hostLabel in the known-hosts file at path, and if the stored fingerprint
// (if any) doesn't already match fingerprint, defers to verify to decide
// whether to trust it. A nil return means the connection may proceed.
func CheckKnownHost(ctx context.Context, path, hostLabel, fingerprint string, verify Verifier) error {
	known, found, err := Lookup(path, hostLabel)
	if err != nil {
		return fmt.Errorf("tofu: checking known hosts: %w", err)
	}
	if found && known == fingerprint {
		return nil
	}

	status := VerificationStatus{HostLabel: hostLabel, Fingerprint: fingerprint}
	if found {
		status.Known = known
		status.Reason = ReasonMismatch
	} else {
		status.Reason = ReasonUnrecognized
	}

	decision, err := verify(ctx, status)
	if err != nil {
		return &VerificationError{
			HostLabel:   hostLabel,
			Fingerprint: fingerprint,
			Known:       status.Known,
			Reason:      status.Reason,
			Cause:       err,
		}
	}

	switch decision {
	case TrustAndStore:
		if err := Replace(path, hostLabel, fingerprint); err != nil {
			return fmt.Errorf("tofu: storing trusted fingerprint for %s: %w", hostLabel, err)
		}
		return nil
	case AcceptOnce:
		return nil
	default:
		return &VerificationError{
			HostLabel:   hostLabel,
			Fingerprint: fingerprint,
			Known:       status.Known,
			Reason:      status.Reason,
		}
	}
}
