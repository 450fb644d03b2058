package authvault

import "context"

// StoreKind selects one of the four independent key namespaces in the backing
// store.
type StoreKind uint8

const (
	// StoreAccounts holds serialized [Account] records.
	StoreAccounts StoreKind = iota
	// StoreMechanisms holds serialized [Mechanism] records.
	StoreMechanisms
	// StoreNotifications holds serialized [PushNotification] records.
	StoreNotifications
	// StoreBackups holds caller-opaque migration blobs.
	StoreBackups

	storeKindCount = 4
)

// String returns the namespace name of the store kind.
func (k StoreKind) String() string {
	switch k {
	case StoreAccounts:
		return "accounts"
	case StoreMechanisms:
		return "mechanisms"
	case StoreNotifications:
		return "notifications"
	case StoreBackups:
		return "backups"
	}
	return "unknown"
}

// StorageClient is the durable, encrypted key-value capability the repository
// is built on. Implementations own encryption at rest; callers only see
// serialized records. Each method must be atomic per call: a reported success
// means the namespace reflects the change durably.
//
// Get returns [ErrNotFound] when the key is absent. All other failures wrap
// [ErrStorageUnavailable].
type StorageClient interface {
	Get(ctx context.Context, kind StoreKind, key string) (string, error)
	Set(ctx context.Context, kind StoreKind, key, value string) error
	Remove(ctx context.Context, kind StoreKind, key string) error
	GetAll(ctx context.Context, kind StoreKind) (map[string]string, error)
	Clear(ctx context.Context, kinds ...StoreKind) error
	IsEmpty(ctx context.Context) (bool, error)
}
