package authvault

import (
	"context"
	"fmt"

	"github.com/vportela/authvault/internal/outcome"
)

// Client is the sole mutation and query surface of the authentication core.
// It is constructed only through [Builder.Build]; every dependency is
// injected, so a reachable Client is always fully initialized.
//
// Client instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Client struct {
	config     Config
	repo       *repository
	pipeline   *pipeline
	dispatcher *outcome.Dispatcher
	sink       OutcomeSink
	metrics    *Metrics
}

// Close drains and stops the outcome dispatcher. The client must not be used
// after Close.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.dispatcher.Close()
}

// Outcomes returns the channel of dispatched results when the installed sink
// is an [OutcomeChannelSink], and nil otherwise.
func (c *Client) Outcomes() <-chan Outcome {
	if c == nil {
		return nil
	}
	if sink, ok := c.sink.(*OutcomeChannelSink); ok {
		return sink.Events()
	}
	return nil
}

// OutcomesDropped returns the number of results discarded because the
// dispatcher buffer was full.
func (c *Client) OutcomesDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.dispatcher.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

// ---------------------------------------------------------------------------
// Accounts

// GetAccount returns the account stored under accountID.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	return c.repo.GetAccount(ctx, accountID)
}

// GetAllAccounts returns every stored account.
func (c *Client) GetAllAccounts(ctx context.Context) ([]*Account, error) {
	return c.repo.GetAllAccounts(ctx)
}

// UpdateAccount persists an updated account record.
func (c *Client) UpdateAccount(ctx context.Context, account *Account) error {
	if account == nil || account.ID == "" {
		return fmt.Errorf("%w: account", ErrNotFound)
	}
	return c.repo.SetAccount(ctx, account)
}

// RemoveAccount removes an account together with its mechanisms and their
// notifications. Cascading here is a Client policy; the repository itself
// never deletes more than it is asked to.
func (c *Client) RemoveAccount(ctx context.Context, accountID string) error {
	account, err := c.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	mechanisms, err := c.repo.GetMechanismsForAccount(ctx, account)
	if err != nil {
		return err
	}
	for _, mechanism := range mechanisms {
		if err := c.removeMechanismCascade(ctx, mechanism); err != nil {
			return err
		}
	}

	return c.repo.RemoveAccount(ctx, account)
}

// ---------------------------------------------------------------------------
// Mechanisms

// GetMechanism returns the mechanism stored under mechanismID, accepting
// legacy key forms.
func (c *Client) GetMechanism(ctx context.Context, mechanismID string) (*Mechanism, error) {
	return c.repo.GetMechanism(ctx, mechanismID)
}

// GetMechanismByUID returns the mechanism with the given stable UID.
func (c *Client) GetMechanismByUID(ctx context.Context, mechanismUID string) (*Mechanism, error) {
	return c.repo.GetMechanismByUID(ctx, mechanismUID)
}

// GetAllMechanisms returns every stored mechanism.
func (c *Client) GetAllMechanisms(ctx context.Context) ([]*Mechanism, error) {
	return c.repo.GetAllMechanisms(ctx)
}

// RemoveMechanism removes a mechanism and the notifications that reference
// it, so no stored notification is silently orphaned.
func (c *Client) RemoveMechanism(ctx context.Context, mechanismUID string) error {
	mechanism, err := c.repo.GetMechanismByUID(ctx, mechanismUID)
	if err != nil {
		return err
	}
	return c.removeMechanismCascade(ctx, mechanism)
}

func (c *Client) removeMechanismCascade(ctx context.Context, mechanism *Mechanism) error {
	notifications, err := c.repo.GetAllNotificationsForMechanism(ctx, mechanism)
	if err != nil {
		return err
	}
	for _, notification := range notifications {
		if err := c.repo.RemoveNotification(ctx, notification); err != nil {
			return err
		}
	}
	return c.repo.RemoveMechanism(ctx, mechanism)
}

// CreateMechanismFromURI enrolls a new mechanism from an enrollment URI and
// creates the owning account on first enrollment. Conflicts surface as
// [*DuplicateMechanismError]; policy rejections as [ErrPolicyViolation].
func (c *Client) CreateMechanismFromURI(ctx context.Context, uri string) (*Mechanism, error) {
	return c.pipeline.createMechanismFromURI(ctx, uri)
}

// ---------------------------------------------------------------------------
// Notifications

// GetNotification returns the notification stored under notificationID.
func (c *Client) GetNotification(ctx context.Context, notificationID string) (*PushNotification, error) {
	return c.repo.GetNotification(ctx, notificationID)
}

// GetAllNotifications returns the stored challenge history, most recent
// first, capped at the configured maximum.
func (c *Client) GetAllNotifications(ctx context.Context) ([]*PushNotification, error) {
	return c.repo.GetAllNotifications(ctx)
}

// PendingNotifications returns the stored notifications still awaiting a
// decision, most recent first. Challenges whose TTL has elapsed are excluded
// even when no decision has been recorded yet.
func (c *Client) PendingNotifications(ctx context.Context) ([]*PushNotification, error) {
	all, err := c.repo.GetAllNotifications(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*PushNotification, 0, len(all))
	for _, notification := range all {
		if notification.State == StatePending && !notification.Expired() {
			pending = append(pending, notification)
		}
	}
	return pending, nil
}

// LatestPendingNotification returns the most recent notification awaiting a
// decision, or [ErrNotFound] when none is pending.
func (c *Client) LatestPendingNotification(ctx context.Context) (*PushNotification, error) {
	pending, err := c.PendingNotifications(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNotFound
	}
	return pending[0], nil
}

// GetAllNotificationsForAccount returns the capped history filtered to the
// account's push mechanism, with each notification's mechanism reference
// back-filled.
func (c *Client) GetAllNotificationsForAccount(ctx context.Context, accountID string) ([]*PushNotification, error) {
	account, err := c.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	mechanisms, err := c.repo.GetMechanismsForAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	for _, mechanism := range mechanisms {
		if mechanism.Type == TypePush {
			return c.repo.GetAllNotificationsForMechanism(ctx, mechanism)
		}
	}
	return []*PushNotification{}, nil
}

// HandleMessage processes one inbound push message. Redelivery of a known
// message ID returns the existing record unchanged; payloads that are not
// authentication messages return (nil, nil).
func (c *Client) HandleMessage(ctx context.Context, messageID, rawMessage string) (*PushNotification, error) {
	return c.pipeline.handleMessage(ctx, messageID, rawMessage)
}

// PerformPushAuthentication applies the user's decision to a stored
// notification. A notification already in a terminal state is returned as-is.
func (c *Client) PerformPushAuthentication(ctx context.Context, notificationID string, accept bool, opts DecisionOptions) (*PushNotification, error) {
	return c.pipeline.performAuthentication(ctx, notificationID, accept, opts)
}

// RegisterForRemoteNotifications registers a device token with the push
// transport so future messages reach this client.
func (c *Client) RegisterForRemoteNotifications(ctx context.Context, token string) error {
	return c.pipeline.registerToken(ctx, token)
}

// ---------------------------------------------------------------------------
// Presentation

// NotificationContent is the title/body pair a presentation collaborator
// renders for a stored notification.
type NotificationContent struct {
	Title string
	Body  string
}

// ShouldPresent reports whether a system alert should be raised for a pending
// notification. Alerts are suppressed when the consuming application is
// already in active foreground use, and for notifications that are no longer
// pending.
func (c *Client) ShouldPresent(notification *PushNotification, foreground bool) bool {
	if notification == nil || foreground {
		return false
	}
	return notification.State == StatePending && !notification.Expired()
}

// ContentForNotification derives the user-facing alert content from the
// notification and its mechanism.
func (c *Client) ContentForNotification(ctx context.Context, notification *PushNotification) (NotificationContent, error) {
	mechanism := notification.Mechanism()
	if mechanism == nil {
		var err error
		mechanism, err = c.repo.GetMechanismByUID(ctx, notification.MechanismUID)
		if err != nil {
			return NotificationContent{}, err
		}
	}
	return NotificationContent{
		Title: mechanism.Issuer,
		Body:  fmt.Sprintf("Sign-in request for %s", mechanism.AccountName),
	}, nil
}

// ---------------------------------------------------------------------------
// Backups and whole-store operations

// GetBackup returns the caller-opaque migration blob stored under backupID.
func (c *Client) GetBackup(ctx context.Context, backupID string) (string, error) {
	return c.repo.GetBackup(ctx, backupID)
}

// SetBackup stores a caller-opaque migration blob under backupID.
func (c *Client) SetBackup(ctx context.Context, backupID, data string) error {
	return c.repo.SetBackup(ctx, backupID, data)
}

// RemoveAll clears every namespace: accounts, mechanisms, notifications, and
// backups.
func (c *Client) RemoveAll(ctx context.Context) error {
	return c.repo.RemoveAll(ctx)
}

// IsEmpty reports whether the store holds no accounts, mechanisms, or
// notifications.
func (c *Client) IsEmpty(ctx context.Context) (bool, error) {
	return c.repo.IsEmpty(ctx)
}
