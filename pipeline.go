package authvault

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vportela/authvault/internal/outcome"
)

// pipeline turns inbound push messages into stored notifications and drives
// the decision state machine. It performs no retries of its own: dedup by
// message ID and the terminal-state short-circuit make caller-driven
// redelivery and retry safe.
//
// Both flows are check-then-act over shared records, so each runs under its
// own mutex: ingestMu spans dedup through persist, decisionMu spans the
// terminal check through the state write. The working set is capped, so a
// single mutex per flow costs nothing.
type pipeline struct {
	repo       *repository
	parser     MessageParser
	enroller   Enroller
	responder  Responder
	transport  PushTransport
	dispatcher *outcome.Dispatcher
	metrics    *Metrics

	ingestMu   sync.Mutex
	decisionMu sync.Mutex
}

func (p *pipeline) metricInc(id MetricID) {
	if p.metrics != nil {
		p.metrics.Inc(id)
	}
}

func (p *pipeline) emit(ctx context.Context, event outcome.Event) {
	event.Timestamp = time.Now()
	p.dispatcher.Emit(ctx, event)
}

// handleMessage is the ingest path. A message ID already present among the
// stored notifications returns the existing record unchanged, whatever its
// state; the transport may redeliver at will. Dedup and insert run under
// ingestMu so concurrent deliveries of the same message cannot both miss the
// lookup and store twice.
func (p *pipeline) handleMessage(ctx context.Context, messageID, rawMessage string) (*PushNotification, error) {
	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()

	existing, err := p.findByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.metricInc(MetricIngestDuplicate)
		return existing, nil
	}

	notification, err := p.parser.Parse(ctx, messageID, rawMessage)
	if err != nil {
		p.metricInc(MetricIngestInvalid)
		p.emit(ctx, outcome.Event{
			Operation: outcome.OpIngest,
			Error:     err.Error(),
			Metadata:  map[string]string{"messageId": messageID},
		})
		return nil, err
	}
	if notification == nil {
		// Not an authentication message. Nothing stored, nothing reported.
		return nil, nil
	}

	if err := p.repo.SetNotification(ctx, notification); err != nil {
		return nil, err
	}

	p.metricInc(MetricIngestSuccess)
	p.emit(ctx, outcome.Event{
		Operation:      outcome.OpIngest,
		NotificationID: notification.ID,
		MechanismUID:   notification.MechanismUID,
		Success:        true,
	})
	return notification, nil
}

// The working set is capped, so a linear scan is the dedup index.
func (p *pipeline) findByMessageID(ctx context.Context, messageID string) (*PushNotification, error) {
	all, err := p.repo.GetAllNotifications(ctx)
	if err != nil {
		return nil, err
	}
	for _, notification := range all {
		if notification.MessageID == messageID {
			return notification, nil
		}
	}
	return nil, nil
}

// performAuthentication applies the user's decision. The first successful
// transition wins: a terminal notification is returned as-is with no
// collaborator call and no write. A responder failure leaves the notification
// pending so the caller may retry. The whole sequence holds decisionMu:
// racing decisions on one notification would otherwise both pass the terminal
// check, both reach the responder, and the loser's write would overwrite the
// winner's committed state.
func (p *pipeline) performAuthentication(ctx context.Context, notificationID string, accept bool, opts DecisionOptions) (*PushNotification, error) {
	p.decisionMu.Lock()
	defer p.decisionMu.Unlock()

	notification, err := p.repo.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if notification.State.Terminal() {
		p.metricInc(MetricDecisionReplayed)
		return notification, nil
	}

	mechanism, err := p.resolveMechanism(ctx, notification)
	if err != nil {
		return nil, err
	}

	account, err := p.repo.GetAccount(ctx, mechanism.AccountID())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if account.Locked() {
		p.metricInc(MetricDecisionFailed)
		p.emitDecision(ctx, notification, false, ErrAccountLocked)
		return nil, ErrAccountLocked
	}

	if notification.Expired() {
		expired, err := p.transition(ctx, notification, StateExpired, opts)
		if err != nil {
			return nil, err
		}
		p.emitDecision(ctx, expired, false, ErrInvalidNotification)
		return expired, ErrInvalidNotification
	}

	if accept {
		err = p.responder.Approve(ctx, notification, mechanism, opts)
	} else {
		err = p.responder.Deny(ctx, notification, mechanism)
	}
	if err != nil {
		p.metricInc(MetricDecisionFailed)
		p.emitDecision(ctx, notification, false, err)
		return nil, err
	}

	state := StateDenied
	if accept {
		state = StateApproved
	}
	updated, err := p.transition(ctx, notification, state, opts)
	if err != nil {
		return nil, err
	}

	if accept {
		p.metricInc(MetricDecisionApproved)
	} else {
		p.metricInc(MetricDecisionDenied)
	}
	p.emitDecision(ctx, updated, true, nil)
	return updated, nil
}

// transition persists the state change on a copy so a failed store write
// leaves the cached record untouched.
func (p *pipeline) transition(ctx context.Context, notification *PushNotification, state NotificationState, opts DecisionOptions) (*PushNotification, error) {
	updated := *notification
	updated.State = state
	if state == StateApproved && opts.ChallengeResponse != "" {
		updated.ChallengeResponse = opts.ChallengeResponse
	}
	if err := p.repo.SetNotification(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (p *pipeline) emitDecision(ctx context.Context, notification *PushNotification, success bool, err error) {
	event := outcome.Event{
		Operation:      outcome.OpDecision,
		NotificationID: notification.ID,
		MechanismUID:   notification.MechanismUID,
		Success:        success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	p.emit(ctx, event)
}

func (p *pipeline) resolveMechanism(ctx context.Context, notification *PushNotification) (*Mechanism, error) {
	if mechanism := notification.Mechanism(); mechanism != nil {
		return mechanism, nil
	}
	mechanism, err := p.repo.GetMechanismByUID(ctx, notification.MechanismUID)
	if err != nil {
		return nil, err
	}
	notification.SetMechanism(mechanism)
	return mechanism, nil
}

// createMechanismFromURI enrolls a new mechanism and creates the owning
// account on first enrollment.
func (p *pipeline) createMechanismFromURI(ctx context.Context, uri string) (*Mechanism, error) {
	if p.enroller == nil {
		return nil, ErrClientNotReady
	}

	mechanism, err := p.enroller.CreateMechanismFromURI(ctx, uri)
	if err != nil {
		if _, ok := IsDuplicateMechanism(err); ok {
			p.metricInc(MetricEnrollDuplicate)
		} else if errors.Is(err, ErrPolicyViolation) {
			p.metricInc(MetricEnrollPolicyRejected)
		}
		p.emit(ctx, outcome.Event{
			Operation: outcome.OpEnrollment,
			Error:     err.Error(),
		})
		return nil, err
	}

	if err := p.repo.SetMechanism(ctx, mechanism); err != nil {
		return nil, err
	}
	if _, err := p.repo.GetAccount(ctx, mechanism.AccountID()); errors.Is(err, ErrNotFound) {
		if err := p.repo.SetAccount(ctx, NewAccount(mechanism.Issuer, mechanism.AccountName)); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	p.metricInc(MetricEnrollSuccess)
	p.emit(ctx, outcome.Event{
		Operation:    outcome.OpEnrollment,
		MechanismUID: mechanism.MechanismUID,
		Success:      true,
	})
	return mechanism, nil
}

// registerToken forwards a device token to the push transport and reports
// completion through the dispatcher.
func (p *pipeline) registerToken(ctx context.Context, token string) error {
	if p.transport == nil {
		return ErrClientNotReady
	}

	if err := p.transport.RegisterToken(ctx, token); err != nil {
		p.metricInc(MetricTokenRegistrationFailed)
		p.emit(ctx, outcome.Event{
			Operation: outcome.OpTokenRegistration,
			Error:     err.Error(),
		})
		return err
	}

	p.metricInc(MetricTokenRegistered)
	p.emit(ctx, outcome.Event{
		Operation: outcome.OpTokenRegistration,
		Success:   true,
	})
	return nil
}
