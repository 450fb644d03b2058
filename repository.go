package authvault

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// repository is the cache-backed persistence layer. Every entity kind has an
// in-memory map guarded by its own mutex and an explicit warmth flag: an empty
// map that has been warmed is a legitimately empty store, not a cold cache, so
// a store holding zero records never triggers redundant scans.
//
// The discipline throughout is write-through: the storage client commits
// first, and the map is touched only after the store confirms. A failed write
// must never leave a phantom cache entry, and a failed clear must never empty
// the maps.
type repository struct {
	storage StorageClient
	logger  zerolog.Logger
	metrics *Metrics

	maxNotifications int

	accountsMu   sync.Mutex
	accounts     map[string]*Account
	accountsWarm bool

	mechanismsMu   sync.Mutex
	mechanisms     map[string]*Mechanism
	mechanismsWarm bool

	notificationsMu   sync.Mutex
	notifications     map[string]*PushNotification
	notificationsWarm bool
}

func newRepository(storage StorageClient, maxNotifications int, logger zerolog.Logger, metrics *Metrics) *repository {
	if maxNotifications <= 0 {
		maxNotifications = defaultMaxStoredNotifications
	}
	return &repository{
		storage:          storage,
		logger:           logger,
		metrics:          metrics,
		maxNotifications: maxNotifications,
		accounts:         make(map[string]*Account),
		mechanisms:       make(map[string]*Mechanism),
		notifications:    make(map[string]*PushNotification),
	}
}

func (r *repository) metricInc(id MetricID) {
	if r.metrics != nil {
		r.metrics.Inc(id)
	}
}

// ---------------------------------------------------------------------------
// Accounts

func (r *repository) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	r.accountsMu.Lock()
	defer r.accountsMu.Unlock()

	if account, ok := r.accounts[accountID]; ok {
		return account, nil
	}
	if r.accountsWarm {
		return nil, ErrNotFound
	}

	data, err := r.storage.Get(ctx, StoreAccounts, accountID)
	if err != nil {
		return nil, err
	}
	account, err := DeserializeAccount(data)
	if err != nil {
		r.logger.Warn().Str("key", accountID).Err(err).Msg("corrupt account record")
		return nil, ErrNotFound
	}
	r.accounts[accountID] = account
	return account, nil
}

func (r *repository) GetAllAccounts(ctx context.Context) ([]*Account, error) {
	r.accountsMu.Lock()
	defer r.accountsMu.Unlock()
	if err := r.warmAccounts(ctx); err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// warmAccounts performs the one-time full scan. Callers hold accountsMu, so a
// concurrent cold GetAll blocks here instead of scanning twice.
func (r *repository) warmAccounts(ctx context.Context) error {
	if r.accountsWarm {
		return nil
	}
	entries, err := r.storage.GetAll(ctx, StoreAccounts)
	if err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	for key, data := range entries {
		account, err := DeserializeAccount(data)
		if err != nil {
			r.metricInc(MetricRecordCorrupt)
			r.logger.Warn().Str("key", key).Err(err).Msg("skipping corrupt account record")
			continue
		}
		r.accounts[account.ID] = account
	}
	r.accountsWarm = true
	return nil
}

func (r *repository) SetAccount(ctx context.Context, account *Account) error {
	data, err := account.Serialize()
	if err != nil {
		return err
	}

	r.accountsMu.Lock()
	defer r.accountsMu.Unlock()
	if err := r.storage.Set(ctx, StoreAccounts, account.ID, data); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *repository) RemoveAccount(ctx context.Context, account *Account) error {
	r.accountsMu.Lock()
	defer r.accountsMu.Unlock()
	if err := r.storage.Remove(ctx, StoreAccounts, account.ID); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	delete(r.accounts, account.ID)
	return nil
}

// ---------------------------------------------------------------------------
// Mechanisms

func (r *repository) GetMechanism(ctx context.Context, mechanismID string) (*Mechanism, error) {
	id := NormalizeMechanismID(mechanismID)

	r.mechanismsMu.Lock()
	defer r.mechanismsMu.Unlock()

	if mechanism, ok := r.mechanisms[id]; ok {
		return mechanism, nil
	}
	if r.mechanismsWarm {
		return nil, ErrNotFound
	}

	data, err := r.storage.Get(ctx, StoreMechanisms, id)
	if err != nil {
		return nil, err
	}
	mechanism, err := DeserializeMechanism(data)
	if err != nil {
		r.logger.Warn().Str("key", id).Err(err).Msg("corrupt mechanism record")
		return nil, ErrNotFound
	}
	r.mechanisms[id] = mechanism
	return mechanism, nil
}

// GetMechanismByUID resolves a mechanism by its stable UID. UIDs are not
// storage keys, so this is a linear scan over the warmed set.
func (r *repository) GetMechanismByUID(ctx context.Context, mechanismUID string) (*Mechanism, error) {
	r.mechanismsMu.Lock()
	defer r.mechanismsMu.Unlock()
	if err := r.warmMechanisms(ctx); err != nil {
		return nil, err
	}
	for _, mechanism := range r.mechanisms {
		if mechanism.MechanismUID == mechanismUID {
			return mechanism, nil
		}
	}
	return nil, ErrNotFound
}

func (r *repository) GetAllMechanisms(ctx context.Context) ([]*Mechanism, error) {
	r.mechanismsMu.Lock()
	defer r.mechanismsMu.Unlock()
	if err := r.warmMechanisms(ctx); err != nil {
		return nil, err
	}

	mechanisms := make([]*Mechanism, 0, len(r.mechanisms))
	for _, mechanism := range r.mechanisms {
		mechanisms = append(mechanisms, mechanism)
	}
	sort.Slice(mechanisms, func(i, j int) bool { return mechanisms[i].ID < mechanisms[j].ID })
	return mechanisms, nil
}

func (r *repository) GetMechanismsForAccount(ctx context.Context, account *Account) ([]*Mechanism, error) {
	all, err := r.GetAllMechanisms(ctx)
	if err != nil {
		return nil, err
	}
	mechanisms := make([]*Mechanism, 0, len(all))
	for _, mechanism := range all {
		if mechanism.Issuer == account.Issuer && mechanism.AccountName == account.AccountName {
			mechanisms = append(mechanisms, mechanism)
		}
	}
	return mechanisms, nil
}

func (r *repository) warmMechanisms(ctx context.Context) error {
	if r.mechanismsWarm {
		return nil
	}
	entries, err := r.storage.GetAll(ctx, StoreMechanisms)
	if err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	for key, data := range entries {
		mechanism, err := DeserializeMechanism(data)
		if err != nil {
			r.metricInc(MetricRecordCorrupt)
			r.logger.Warn().Str("key", key).Err(err).Msg("skipping corrupt mechanism record")
			continue
		}
		r.mechanisms[mechanism.ID] = mechanism
	}
	r.mechanismsWarm = true
	return nil
}

func (r *repository) SetMechanism(ctx context.Context, mechanism *Mechanism) error {
	data, err := mechanism.Serialize()
	if err != nil {
		return err
	}

	r.mechanismsMu.Lock()
	defer r.mechanismsMu.Unlock()
	if err := r.storage.Set(ctx, StoreMechanisms, mechanism.ID, data); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	r.mechanisms[mechanism.ID] = mechanism
	return nil
}

func (r *repository) RemoveMechanism(ctx context.Context, mechanism *Mechanism) error {
	r.mechanismsMu.Lock()
	defer r.mechanismsMu.Unlock()
	if err := r.storage.Remove(ctx, StoreMechanisms, mechanism.ID); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	delete(r.mechanisms, mechanism.ID)
	return nil
}

// ---------------------------------------------------------------------------
// Notifications

func (r *repository) GetNotification(ctx context.Context, notificationID string) (*PushNotification, error) {
	r.notificationsMu.Lock()
	defer r.notificationsMu.Unlock()

	if notification, ok := r.notifications[notificationID]; ok {
		return notification, nil
	}
	if r.notificationsWarm {
		return nil, ErrNotFound
	}

	data, err := r.storage.Get(ctx, StoreNotifications, notificationID)
	if err != nil {
		return nil, err
	}
	notification, err := DeserializePushNotification(data)
	if err != nil {
		r.logger.Warn().Str("key", notificationID).Err(err).Msg("corrupt notification record")
		return nil, ErrNotFound
	}
	r.notifications[notificationID] = notification
	return notification, nil
}

// GetAllNotifications returns the stored challenge history, most recent
// first, capped at the configured maximum. Entries beyond the cap are evicted
// from both store and cache before the list is returned, so the history never
// grows without bound.
func (r *repository) GetAllNotifications(ctx context.Context) ([]*PushNotification, error) {
	r.notificationsMu.Lock()
	defer r.notificationsMu.Unlock()
	return r.getAllNotificationsLocked(ctx)
}

func (r *repository) getAllNotificationsLocked(ctx context.Context) ([]*PushNotification, error) {
	if err := r.warmNotificationsLocked(ctx); err != nil {
		return nil, err
	}

	notifications := make([]*PushNotification, 0, len(r.notifications))
	for _, notification := range r.notifications {
		notifications = append(notifications, notification)
	}
	sort.Slice(notifications, func(i, j int) bool {
		if notifications[i].ReceivedAt != notifications[j].ReceivedAt {
			return notifications[i].ReceivedAt > notifications[j].ReceivedAt
		}
		return notifications[i].ID > notifications[j].ID
	})

	for len(notifications) > r.maxNotifications {
		last := len(notifications) - 1
		if err := r.removeNotificationLocked(ctx, notifications[last]); err != nil {
			return nil, err
		}
		r.metricInc(MetricNotificationEvicted)
		notifications = notifications[:last]
	}
	return notifications, nil
}

func (r *repository) GetAllNotificationsForMechanism(ctx context.Context, mechanism *Mechanism) ([]*PushNotification, error) {
	all, err := r.GetAllNotifications(ctx)
	if err != nil {
		return nil, err
	}
	notifications := make([]*PushNotification, 0, len(all))
	for _, notification := range all {
		if notification.MechanismUID == mechanism.MechanismUID {
			notification.SetMechanism(mechanism)
			notifications = append(notifications, notification)
		}
	}
	return notifications, nil
}

func (r *repository) warmNotificationsLocked(ctx context.Context) error {
	if r.notificationsWarm {
		return nil
	}
	entries, err := r.storage.GetAll(ctx, StoreNotifications)
	if err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	for key, data := range entries {
		notification, err := DeserializePushNotification(data)
		if err != nil {
			r.metricInc(MetricRecordCorrupt)
			r.logger.Warn().Str("key", key).Err(err).Msg("skipping corrupt notification record")
			continue
		}
		r.notifications[notification.ID] = notification
	}
	r.notificationsWarm = true
	return nil
}

// SetNotification warms the cache before inserting so the first write into a
// cold cache does not hide older persisted entries from the next GetAll.
func (r *repository) SetNotification(ctx context.Context, notification *PushNotification) error {
	data, err := notification.Serialize()
	if err != nil {
		return err
	}

	r.notificationsMu.Lock()
	defer r.notificationsMu.Unlock()
	if err := r.warmNotificationsLocked(ctx); err != nil {
		return err
	}
	if err := r.storage.Set(ctx, StoreNotifications, notification.ID, data); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	r.notifications[notification.ID] = notification
	return nil
}

func (r *repository) RemoveNotification(ctx context.Context, notification *PushNotification) error {
	r.notificationsMu.Lock()
	defer r.notificationsMu.Unlock()
	return r.removeNotificationLocked(ctx, notification)
}

func (r *repository) removeNotificationLocked(ctx context.Context, notification *PushNotification) error {
	if err := r.storage.Remove(ctx, StoreNotifications, notification.ID); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	delete(r.notifications, notification.ID)
	return nil
}

func (r *repository) RemoveAllNotifications(ctx context.Context) error {
	r.notificationsMu.Lock()
	defer r.notificationsMu.Unlock()
	if err := r.storage.Clear(ctx, StoreNotifications); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	r.notifications = make(map[string]*PushNotification)
	r.notificationsWarm = true
	return nil
}

// ---------------------------------------------------------------------------
// Backups

// GetBackup returns a caller-opaque migration blob. Backups bypass the cache:
// they are written once per migration and read back rarely.
func (r *repository) GetBackup(ctx context.Context, backupID string) (string, error) {
	return r.storage.Get(ctx, StoreBackups, backupID)
}

func (r *repository) SetBackup(ctx context.Context, backupID, data string) error {
	if err := r.storage.Set(ctx, StoreBackups, backupID, data); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Whole-store operations

// RemoveAll clears every namespace and, only once the store confirms, resets
// the maps. Lock order is accounts, mechanisms, notifications; RemoveAll is
// the only path that takes more than one kind mutex.
func (r *repository) RemoveAll(ctx context.Context) error {
	r.accountsMu.Lock()
	defer r.accountsMu.Unlock()
	r.mechanismsMu.Lock()
	defer r.mechanismsMu.Unlock()
	r.notificationsMu.Lock()
	defer r.notificationsMu.Unlock()

	if err := r.storage.Clear(ctx, StoreAccounts, StoreMechanisms, StoreNotifications, StoreBackups); err != nil {
		r.metricInc(MetricStorageFailure)
		return err
	}

	r.accounts = make(map[string]*Account)
	r.mechanisms = make(map[string]*Mechanism)
	r.notifications = make(map[string]*PushNotification)
	r.accountsWarm = true
	r.mechanismsWarm = true
	r.notificationsWarm = true
	return nil
}

func (r *repository) IsEmpty(ctx context.Context) (bool, error) {
	return r.storage.IsEmpty(ctx)
}
