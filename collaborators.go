package authvault

import "context"

// DecisionOptions carries the optional proof material for an approval.
// ChallengeResponse answers a numbers challenge ([PushTypeChallenge]);
// BiometricProof accompanies a biometric approval ([PushTypeBiometric]).
type DecisionOptions struct {
	ChallengeResponse string
	BiometricProof    []byte
}

// Enroller creates mechanisms from enrollment URIs. It is the external
// enrollment collaborator: URI parsing, key exchange, and remote registration
// happen behind this contract.
//
// CreateMechanismFromURI returns a [*DuplicateMechanismError] when a
// conflicting mechanism is already registered, [ErrPolicyViolation] when an
// external policy evaluator rejects the enrollment, and other errors verbatim.
type Enroller interface {
	CreateMechanismFromURI(ctx context.Context, uri string) (*Mechanism, error)
}

// Responder signs and submits decision outcomes to the remote verifier. It is
// the external crypto/verification collaborator; this package never sees the
// signing keys.
//
// Approve and Deny report [ErrAccountLocked] when the verifier rejects the
// decision because the account is locked, and [ErrVerificationFailed] when
// signing or submission fails. A failed call leaves the notification pending
// so the decision can be retried.
type Responder interface {
	Approve(ctx context.Context, notification *PushNotification, mechanism *Mechanism, opts DecisionOptions) error
	Deny(ctx context.Context, notification *PushNotification, mechanism *Mechanism) error
}

// MessageParser turns a raw transport payload into a validated pending
// notification. Parse returns [ErrInvalidNotification] (possibly wrapped) for
// malformed payloads, unknown mechanisms, or expired timestamps, and
// (nil, nil) when the payload is not an authentication message at all.
type MessageParser interface {
	Parse(ctx context.Context, messageID, rawMessage string) (*PushNotification, error)
}

// PushTransport is the boundary to the push-messaging provider. The core
// calls back into it only to register a device token for future messages.
type PushTransport interface {
	RegisterToken(ctx context.Context, token string) error
}
