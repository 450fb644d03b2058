package authvault

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
)

// NotificationState is the decision state of a push-authentication challenge.
type NotificationState string

const (
	// StatePending means the challenge is stored and awaiting a decision.
	StatePending NotificationState = "pending"
	// StateApproved means the user approved and the verifier accepted it.
	StateApproved NotificationState = "approved"
	// StateDenied means the user denied and the denial was submitted.
	StateDenied NotificationState = "denied"
	// StateExpired means the challenge outlived its TTL before a decision.
	StateExpired NotificationState = "expired"
	// StateInvalid means the message parsed but failed validation.
	StateInvalid NotificationState = "invalid"
)

// Terminal reports whether the state permits no further transitions.
// Re-delivery of a message or a duplicate decision on a terminal notification
// returns the stored record unchanged.
func (s NotificationState) Terminal() bool {
	return s != StatePending
}

// PushType selects how a challenge is presented and answered.
type PushType string

const (
	// PushTypeDefault is a plain approve/deny challenge.
	PushTypeDefault PushType = "default"
	// PushTypeChallenge requires the user to pick a displayed number.
	PushTypeChallenge PushType = "challenge"
	// PushTypeBiometric requires a biometric proof with the approval.
	PushTypeBiometric PushType = "biometric"
)

// PushNotification is one push-authentication challenge instance.
//
// ID is the local primary key. MessageID is the external correlation ID and
// the deduplication key: retries of the same logical message reuse it, so it
// is not unique across deliveries. ReceivedAt (milliseconds since epoch) is
// the ordering key, most recent first.
type PushNotification struct {
	ID                 string            `json:"id"`
	MessageID          string            `json:"messageId"`
	MechanismUID       string            `json:"mechanismUID"`
	PushType           PushType          `json:"pushType"`
	ReceivedAt         int64             `json:"receivedAt"`
	ExpiresAt          int64             `json:"expiresAt,omitempty"`
	State              NotificationState `json:"state"`
	Challenge          string            `json:"challenge,omitempty"`
	NumbersChallenge   string            `json:"numbersChallenge,omitempty"`
	LoadBalancerCookie string            `json:"loadBalancerCookie,omitempty"`
	ChallengeResponse  string            `json:"challengeResponse,omitempty"`

	// mechanism is a lazily resolved back-reference, never persisted.
	mechanism *Mechanism
}

// lastReceivedAt tracks the most recently issued arrival time so IDs derived
// from it never collide within a process.
var lastReceivedAt atomic.Int64

// notificationReceivedAt returns the current time in milliseconds, bumped
// past the previously issued value when two challenges arrive within the same
// millisecond. The ID layout stays uid-millis; only uniqueness is enforced.
func notificationReceivedAt() int64 {
	for {
		now := nowMillis()
		last := lastReceivedAt.Load()
		if now <= last {
			now = last + 1
		}
		if lastReceivedAt.CompareAndSwap(last, now) {
			return now
		}
	}
}

// NewPushNotification creates a pending notification for the given mechanism
// and message. The local ID is derived from the mechanism UID and arrival
// time, matching the legacy key layout.
func NewPushNotification(mechanismUID, messageID string) *PushNotification {
	receivedAt := notificationReceivedAt()
	return &PushNotification{
		ID:           mechanismUID + "-" + strconv.FormatInt(receivedAt, 10),
		MessageID:    messageID,
		MechanismUID: mechanismUID,
		PushType:     PushTypeDefault,
		ReceivedAt:   receivedAt,
		State:        StatePending,
	}
}

// Expired reports whether the challenge TTL has elapsed.
func (n *PushNotification) Expired() bool {
	return n.ExpiresAt > 0 && nowMillis() > n.ExpiresAt
}

// Mechanism returns the back-filled mechanism reference, or nil when it has
// not been resolved.
func (n *PushNotification) Mechanism() *Mechanism {
	return n.mechanism
}

// SetMechanism back-fills the mechanism reference. The repository uses this to
// denormalize mechanism-scoped queries so callers avoid a second lookup per
// notification.
func (n *PushNotification) SetMechanism(m *Mechanism) {
	n.mechanism = m
}

// Serialize encodes the notification as its stable JSON record.
func (n *PushNotification) Serialize() (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializePushNotification decodes a notification from its stored JSON
// record.
func DeserializePushNotification(data string) (*PushNotification, error) {
	var notification PushNotification
	if err := json.Unmarshal([]byte(data), &notification); err != nil {
		return nil, err
	}
	if notification.State == "" {
		notification.State = StatePending
	}
	if notification.PushType == "" {
		notification.PushType = PushTypeDefault
	}
	return &notification, nil
}
