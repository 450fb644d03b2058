package authvault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup resolves to no stored entity.
	ErrNotFound = errors.New("not found")
	// ErrStorageUnavailable wraps key-value store read, write, and clear failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidNotification is returned when a raw push message cannot be
	// parsed into a valid notification, or when a decision targets an expired
	// challenge.
	ErrInvalidNotification = errors.New("invalid notification")
	// ErrAccountLocked is returned when a decision is rejected because the
	// mechanism's owning account is locked.
	ErrAccountLocked = errors.New("account locked")
	// ErrPolicyViolation is returned when enrollment or a decision is rejected
	// by a policy evaluator.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrVerificationFailed is returned when signing or submitting a decision
	// to the remote verifier fails. The notification stays pending and the
	// decision may be retried.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrClientNotReady is returned when an operation is invoked on a nil or
	// incompletely built client.
	ErrClientNotReady = errors.New("client not initialized")
)

// DuplicateMechanismError reports an enrollment conflict with an already
// registered mechanism. The conflicting mechanism is carried so callers can
// offer replacement or removal.
type DuplicateMechanismError struct {
	Existing *Mechanism
}

func (e *DuplicateMechanismError) Error() string {
	if e == nil || e.Existing == nil {
		return "duplicate mechanism"
	}
	return fmt.Sprintf("duplicate mechanism: %s already registered", e.Existing.ID)
}

// IsDuplicateMechanism reports whether err is a [DuplicateMechanismError] and
// returns the conflicting mechanism when it is.
func IsDuplicateMechanism(err error) (*Mechanism, bool) {
	var dup *DuplicateMechanismError
	if errors.As(err, &dup) {
		return dup.Existing, true
	}
	return nil, false
}
