package authvault

import (
	"encoding/json"
	"time"
)

// Account groups the authentication mechanisms enrolled for one identity at
// one issuer. Account is the aggregate root: mechanisms hold a back-reference
// to it, never the other way around.
//
// Account instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Account struct {
	ID            string `json:"id"`
	Issuer        string `json:"issuer"`
	AccountName   string `json:"accountName"`
	Lock          bool   `json:"lock"`
	LockingPolicy string `json:"lockingPolicy,omitempty"`
	TimeAdded     int64  `json:"timeAdded"`
}

// NewAccount creates an account for the given issuer and account name. The ID
// is derived from both and is stable across restarts.
func NewAccount(issuer, accountName string) *Account {
	return &Account{
		ID:          accountID(issuer, accountName),
		Issuer:      issuer,
		AccountName: accountName,
		TimeAdded:   nowMillis(),
	}
}

func accountID(issuer, accountName string) string {
	return issuer + "-" + accountName
}

// Locked reports whether the account is currently locked by policy.
func (a *Account) Locked() bool {
	return a != nil && a.Lock
}

// SetLock locks the account and records the policy that required it.
func (a *Account) SetLock(policy string) {
	a.Lock = true
	a.LockingPolicy = policy
}

// ClearLock unlocks the account.
func (a *Account) ClearLock() {
	a.Lock = false
	a.LockingPolicy = ""
}

// Serialize encodes the account as its stable JSON record. Field names are an
// external-compatibility contract with the legacy store and must not change.
func (a *Account) Serialize() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializeAccount decodes an account from its stored JSON record.
func DeserializeAccount(data string) (*Account, error) {
	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
