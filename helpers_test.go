package authvault

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

// memStorage is an in-memory StorageClient with failure injection and call
// accounting, standing in for the encrypted store.
type memStorage struct {
	mu          sync.Mutex
	data        [storeKindCount]map[string]string
	getAllCalls [storeKindCount]int

	failGet    bool
	failSet    bool
	failRemove bool
	failClear  bool
	failGetAll bool
}

func newMemStorage() *memStorage {
	s := &memStorage{}
	for i := range s.data {
		s.data[i] = make(map[string]string)
	}
	return s
}

func (s *memStorage) Get(_ context.Context, kind StoreKind, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return "", fmt.Errorf("%w: injected get failure", ErrStorageUnavailable)
	}
	value, ok := s.data[kind][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *memStorage) Set(_ context.Context, kind StoreKind, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return fmt.Errorf("%w: injected set failure", ErrStorageUnavailable)
	}
	s.data[kind][key] = value
	return nil
}

func (s *memStorage) Remove(_ context.Context, kind StoreKind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRemove {
		return fmt.Errorf("%w: injected remove failure", ErrStorageUnavailable)
	}
	delete(s.data[kind], key)
	return nil
}

func (s *memStorage) GetAll(_ context.Context, kind StoreKind) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getAllCalls[kind]++
	if s.failGetAll {
		return nil, fmt.Errorf("%w: injected scan failure", ErrStorageUnavailable)
	}
	out := make(map[string]string, len(s.data[kind]))
	for k, v := range s.data[kind] {
		out[k] = v
	}
	return out, nil
}

func (s *memStorage) Clear(_ context.Context, kinds ...StoreKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failClear {
		return fmt.Errorf("%w: injected clear failure", ErrStorageUnavailable)
	}
	for _, kind := range kinds {
		s.data[kind] = make(map[string]string)
	}
	return nil
}

func (s *memStorage) IsEmpty(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range []StoreKind{StoreAccounts, StoreMechanisms, StoreNotifications} {
		if len(s.data[kind]) > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (s *memStorage) scans(kind StoreKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAllCalls[kind]
}

func (s *memStorage) put(t *testing.T, kind StoreKind, key, value string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[kind][key] = value
}

func (s *memStorage) stored(kind StoreKind, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[kind][key]
	return value, ok
}

// fakeResponder records decision submissions and fails on demand. A non-zero
// delay holds each submission in flight to widen race windows.
type fakeResponder struct {
	mu           sync.Mutex
	approveCalls int
	denyCalls    int
	approveErr   error
	denyErr      error
	delay        time.Duration
}

func (r *fakeResponder) Approve(_ context.Context, _ *PushNotification, _ *Mechanism, _ DecisionOptions) error {
	r.mu.Lock()
	r.approveCalls++
	err := r.approveErr
	r.mu.Unlock()
	time.Sleep(r.delay)
	return err
}

func (r *fakeResponder) Deny(_ context.Context, _ *PushNotification, _ *Mechanism) error {
	r.mu.Lock()
	r.denyCalls++
	err := r.denyErr
	r.mu.Unlock()
	time.Sleep(r.delay)
	return err
}

func (r *fakeResponder) calls() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approveCalls, r.denyCalls
}

// fakeParser materializes a pending notification per message without any
// payload inspection.
type fakeParser struct {
	mu           sync.Mutex
	calls        int
	mechanismUID string
	err          error
	unrecognized bool
	delay        time.Duration
}

func (p *fakeParser) Parse(_ context.Context, messageID, _ string) (*PushNotification, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	time.Sleep(p.delay)

	if p.err != nil {
		return nil, p.err
	}
	if p.unrecognized {
		return nil, nil
	}
	notification := NewPushNotification(p.mechanismUID, messageID)
	notification.Challenge = "Y2hhbGxlbmdl"
	return notification, nil
}

func (p *fakeParser) parseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeEnroller struct {
	mechanism *Mechanism
	err       error
}

func (e *fakeEnroller) CreateMechanismFromURI(context.Context, string) (*Mechanism, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.mechanism, nil
}

type fakeTransport struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (tr *fakeTransport) RegisterToken(_ context.Context, token string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.err != nil {
		return tr.err
	}
	tr.tokens = append(tr.tokens, token)
	return nil
}

// testEnv bundles a built Client with its injected fakes.
type testEnv struct {
	client    *Client
	storage   *memStorage
	responder *fakeResponder
	parser    *fakeParser
	enroller  *fakeEnroller
	transport *fakeTransport
}

func newTestEnv(t *testing.T, mutate ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		storage:   newMemStorage(),
		responder: &fakeResponder{},
		parser:    &fakeParser{mechanismUID: "uid-push-1"},
		enroller:  &fakeEnroller{},
		transport: &fakeTransport{},
	}

	builder := New().
		WithStorage(env.storage).
		WithResponder(env.responder).
		WithMessageParser(env.parser).
		WithEnroller(env.enroller).
		WithTransport(env.transport).
		WithMetricsEnabled(true)
	for _, m := range mutate {
		m(builder)
	}

	client, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)

	env.client = client
	return env
}

// seedPushMechanism stores a push mechanism (and its account) directly.
func (env *testEnv) seedPushMechanism(t *testing.T, issuer, accountName, uid string) *Mechanism {
	t.Helper()
	ctx := context.Background()

	mechanism := NewMechanism(issuer, accountName, TypePush, uid)
	if err := env.client.repo.SetMechanism(ctx, mechanism); err != nil {
		t.Fatalf("SetMechanism failed: %v", err)
	}
	if err := env.client.repo.SetAccount(ctx, NewAccount(issuer, accountName)); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}
	return mechanism
}

// seedNotification stores a pending notification with a fixed arrival time.
func (env *testEnv) seedNotification(t *testing.T, mechanismUID, messageID string, receivedAt int64) *PushNotification {
	t.Helper()

	notification := &PushNotification{
		ID:           mechanismUID + "-" + strconv.FormatInt(receivedAt, 10),
		MessageID:    messageID,
		MechanismUID: mechanismUID,
		PushType:     PushTypeDefault,
		ReceivedAt:   receivedAt,
		State:        StatePending,
	}
	if err := env.client.repo.SetNotification(context.Background(), notification); err != nil {
		t.Fatalf("SetNotification failed: %v", err)
	}
	return notification
}
