package authvault

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MechanismType is the tagged variant over the supported factor kinds. Every
// switch over a MechanismType must handle all three values.
type MechanismType uint8

const (
	// TypeHOTP is a counter-based OATH one-time-password generator.
	TypeHOTP MechanismType = iota
	// TypeTOTP is a time-based OATH one-time-password generator.
	TypeTOTP
	// TypePush is a push-approval channel.
	TypePush
)

// Key suffixes used in stored mechanism IDs. The -hotp, -totp and -push forms
// are legacy variants that older stores wrote before the suffixes were
// consolidated.
const (
	suffixOATH = "-otpauth"
	suffixPush = "-pushauth"
)

// String returns the wire name of the mechanism type.
func (t MechanismType) String() string {
	switch t {
	case TypeHOTP:
		return "hotp"
	case TypeTOTP:
		return "totp"
	case TypePush:
		return "push"
	}
	return "unknown"
}

func (t MechanismType) keySuffix() string {
	switch t {
	case TypeHOTP, TypeTOTP:
		return suffixOATH
	case TypePush:
		return suffixPush
	}
	return suffixOATH
}

// Mechanism is a single enrolled authentication factor. The ID is a
// deterministic key derived from issuer, account name, and the normalized type
// suffix; MechanismUID is globally unique and stable across ID-normalization
// changes, and is what notifications reference.
type Mechanism struct {
	ID           string        `json:"id"`
	MechanismUID string        `json:"mechanismUID"`
	Issuer       string        `json:"issuer"`
	AccountName  string        `json:"accountName"`
	Type         MechanismType `json:"-"`
	Secret       string        `json:"secret,omitempty"`
	TimeAdded    int64         `json:"timeAdded"`
}

// NewMechanism creates a mechanism with a deterministic ID for the given
// identity and factor type. An empty uid is replaced with a fresh
// [NewMechanismUID]; enrollment passes the UID the verifier assigned.
func NewMechanism(issuer, accountName string, mechType MechanismType, uid string) *Mechanism {
	if uid == "" {
		uid = NewMechanismUID()
	}
	return &Mechanism{
		ID:           MechanismID(issuer, accountName, mechType),
		MechanismUID: uid,
		Issuer:       issuer,
		AccountName:  accountName,
		Type:         mechType,
		TimeAdded:    nowMillis(),
	}
}

// NewMechanismUID returns a fresh globally unique mechanism UID.
func NewMechanismUID() string {
	return uuid.NewString()
}

// MechanismID derives the canonical storage key for a mechanism.
func MechanismID(issuer, accountName string, mechType MechanismType) string {
	return issuer + "-" + accountName + mechType.keySuffix()
}

// AccountID returns the key of the owning account.
func (m *Mechanism) AccountID() string {
	return accountID(m.Issuer, m.AccountName)
}

// NormalizeMechanismID maps legacy key forms onto the canonical suffixes so
// that lookups by either historical or current form resolve to the same
// record: -hotp and -totp become -otpauth, -push becomes -pushauth. A '#'
// separator from very old keys is rewritten to '-'. Already canonical IDs are
// returned unchanged.
func NormalizeMechanismID(id string) string {
	id = strings.ReplaceAll(id, "#", "-")
	if strings.Contains(id, suffixOATH) || strings.Contains(id, suffixPush) {
		return id
	}
	if strings.Contains(id, "-hotp") {
		return strings.ReplaceAll(id, "-hotp", suffixOATH)
	}
	if strings.Contains(id, "-totp") {
		return strings.ReplaceAll(id, "-totp", suffixOATH)
	}
	return strings.ReplaceAll(id, "-push", suffixPush)
}

// mechanismRecord is the persisted JSON shape. The type/oathType split matches
// the legacy record layout byte-for-byte.
type mechanismRecord struct {
	ID           string `json:"id"`
	MechanismUID string `json:"mechanismUID"`
	Issuer       string `json:"issuer"`
	AccountName  string `json:"accountName"`
	Type         string `json:"type"`
	OathType     string `json:"oathType,omitempty"`
	Secret       string `json:"secret,omitempty"`
	TimeAdded    int64  `json:"timeAdded"`
}

// Serialize encodes the mechanism as its stable JSON record.
func (m *Mechanism) Serialize() (string, error) {
	record := mechanismRecord{
		ID:           m.ID,
		MechanismUID: m.MechanismUID,
		Issuer:       m.Issuer,
		AccountName:  m.AccountName,
		Secret:       m.Secret,
		TimeAdded:    m.TimeAdded,
	}
	switch m.Type {
	case TypeHOTP:
		record.Type = "otpauth"
		record.OathType = "hotp"
	case TypeTOTP:
		record.Type = "otpauth"
		record.OathType = "totp"
	case TypePush:
		record.Type = "pushauth"
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializeMechanism decodes a mechanism from its stored JSON record,
// accepting both current and legacy type tags.
func DeserializeMechanism(data string) (*Mechanism, error) {
	var record mechanismRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}

	mechanism := &Mechanism{
		ID:           record.ID,
		MechanismUID: record.MechanismUID,
		Issuer:       record.Issuer,
		AccountName:  record.AccountName,
		Secret:       record.Secret,
		TimeAdded:    record.TimeAdded,
	}

	switch record.Type {
	case "pushauth", "push":
		mechanism.Type = TypePush
	case "otpauth", "hotp", "totp":
		if record.OathType == "hotp" || record.Type == "hotp" {
			mechanism.Type = TypeHOTP
		} else {
			mechanism.Type = TypeTOTP
		}
	default:
		return nil, fmt.Errorf("unknown mechanism type %q", record.Type)
	}

	return mechanism, nil
}
