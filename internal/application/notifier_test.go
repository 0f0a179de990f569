package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/smspanel/internal/application"
	"github.com/ericfisherdev/smspanel/internal/domain/model"
)

// --- Mock implementations ---

type mockMessageStore struct {
	mu    sync.Mutex
	count int
	err   error
}

func (m *mockMessageStore) setCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = n
}

func (m *mockMessageStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, m.err
}

func (m *mockMessageStore) Insert(_ context.Context, msg model.Message) (model.Message, error) {
	return msg, nil
}
func (m *mockMessageStore) ListAll(_ context.Context) ([]model.Message, error) { return nil, nil }
func (m *mockMessageStore) Delete(_ context.Context, _ string) error           { return nil }
func (m *mockMessageStore) DeleteAll(_ context.Context) (int64, error)         { return 0, nil }

type mockStateStore struct {
	mu     sync.Mutex
	state  model.NotificationState
	getErr error
	saves  int
}

func (m *mockStateStore) Get(_ context.Context) (model.NotificationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.getErr
}

func (m *mockStateStore) Save(_ context.Context, state model.NotificationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.saves++
	return nil
}

// newTestNotifier builds a notifier with an open gate and establishes a
// baseline at the store's current count via Viewed.
func newTestNotifier(t *testing.T, store *mockMessageStore, states *mockStateStore) *application.Notifier {
	t.Helper()

	n := application.NewNotifier(store, states, nil, time.Hour, nil)
	n.Viewed(context.Background())
	return n
}

// --- Tests ---

func TestNotifier_NoGrowthLeavesUnseenUnchanged(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	n.Poll(context.Background())

	state := n.State()
	assert.Equal(t, 5, state.LastSeenCount)
	assert.Equal(t, 0, state.UnseenCount)
	assert.False(t, state.BadgeActive)
}

func TestNotifier_GrowthAccumulatesUnseen(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	updates, unsubscribe := n.Subscribe()
	defer unsubscribe()

	store.setCount(8)
	n.Poll(context.Background())

	state := n.State()
	assert.Equal(t, 8, state.LastSeenCount)
	assert.Equal(t, 3, state.UnseenCount)
	assert.True(t, state.BadgeActive)

	select {
	case update := <-updates:
		assert.Equal(t, 3, update.UnseenCount)
		assert.Equal(t, 8, update.CurrentTotal)
		assert.Equal(t, 3, update.NewInBatch)
		assert.True(t, update.BadgeActive)
	default:
		t.Fatal("expected a badge update to be broadcast")
	}
}

func TestNotifier_GrowthAccumulatesAcrossTicks(t *testing.T) {
	store := &mockMessageStore{count: 0}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	store.setCount(2)
	n.Poll(context.Background())
	store.setCount(5)
	n.Poll(context.Background())

	assert.Equal(t, 5, n.State().UnseenCount, "unseen count accumulates until acknowledged")
}

func TestNotifier_RebroadcastKeepsBadgeVisible(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	store.setCount(8)
	n.Poll(context.Background())

	updates, unsubscribe := n.Subscribe()
	defer unsubscribe()

	// No growth on this tick, but unseen is still pending.
	n.Poll(context.Background())

	select {
	case update := <-updates:
		assert.Equal(t, 3, update.UnseenCount)
		assert.Equal(t, 0, update.NewInBatch)
		assert.True(t, update.BadgeActive)
	default:
		t.Fatal("expected a re-broadcast while unseen count is pending")
	}
}

func TestNotifier_ShrinkingStoreNeverDecreasesUnseen(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	store.setCount(8)
	n.Poll(context.Background())
	require.Equal(t, 3, n.State().UnseenCount)

	// Bulk delete shrinks the store; pending unseen stays put.
	store.setCount(2)
	n.Poll(context.Background())

	state := n.State()
	assert.Equal(t, 3, state.UnseenCount)
	assert.Equal(t, 2, state.LastSeenCount)
}

func TestNotifier_ViewedResetsUnseen(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	store.setCount(9)
	n.Poll(context.Background())
	require.Equal(t, 4, n.State().UnseenCount)

	updates, unsubscribe := n.Subscribe()
	defer unsubscribe()

	n.Viewed(context.Background())

	state := n.State()
	assert.Equal(t, 0, state.UnseenCount)
	assert.Equal(t, 9, state.LastSeenCount)
	assert.False(t, state.BadgeActive)

	select {
	case update := <-updates:
		assert.Equal(t, 0, update.UnseenCount)
		assert.False(t, update.BadgeActive)
	default:
		t.Fatal("expected the cleared state to be broadcast")
	}
}

func TestNotifier_ViewedResetsDespiteInterimGrowth(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	store.setCount(8)
	n.Poll(context.Background())
	store.setCount(20)

	n.Viewed(context.Background())

	state := n.State()
	assert.Equal(t, 0, state.UnseenCount)
	assert.Equal(t, 20, state.LastSeenCount, "viewed adopts the authoritative count")
}

func TestNotifier_ClosedGateSkipsTick(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}

	n := application.NewNotifier(store, states, func() bool { return false }, time.Hour, nil)
	n.Poll(context.Background())

	state := n.State()
	assert.Equal(t, 0, state.LastSeenCount, "tick behind a closed gate must not touch state")
	assert.Equal(t, 0, state.UnseenCount)
}

func TestNotifier_CountErrorIsTickNoOp(t *testing.T) {
	store := &mockMessageStore{count: 5}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	store.setCount(8)
	n.Poll(context.Background())
	require.Equal(t, 3, n.State().UnseenCount)

	store.mu.Lock()
	store.err = errors.New("store unavailable")
	store.mu.Unlock()

	savesBefore := func() int {
		states.mu.Lock()
		defer states.mu.Unlock()
		return states.saves
	}()

	n.Poll(context.Background())

	state := n.State()
	assert.Equal(t, 3, state.UnseenCount, "failed tick must not change unseen count")
	assert.Equal(t, 8, state.LastSeenCount)
	assert.Equal(t, savesBefore, func() int {
		states.mu.Lock()
		defer states.mu.Unlock()
		return states.saves
	}(), "failed tick must not persist")
}

func TestNotifier_StartRestoresPersistedBaseline(t *testing.T) {
	store := &mockMessageStore{count: 7}
	states := &mockStateStore{state: model.NotificationState{LastSeenCount: 7, UnseenCount: 2, BadgeActive: true}}

	n := application.NewNotifier(store, states, nil, 10*time.Millisecond, nil)

	updates, unsubscribe := n.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)
	defer n.Stop()

	// The immediate tick sees no growth but re-broadcasts the restored
	// pending count, proving the baseline survived the restart.
	select {
	case update := <-updates:
		assert.Equal(t, 2, update.UnseenCount)
		assert.Equal(t, 7, update.CurrentTotal)
		assert.Equal(t, 0, update.NewInBatch)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the restored-state broadcast")
	}
}

func TestNotifier_StartIsReentrantNoOp(t *testing.T) {
	store := &mockMessageStore{count: 0}
	states := &mockStateStore{}
	n := application.NewNotifier(store, states, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n.Start(ctx)
	n.Start(ctx) // second start while polling must be a no-op
	n.Stop()
}

func TestNotifier_UnsubscribeStopsDelivery(t *testing.T) {
	store := &mockMessageStore{count: 0}
	states := &mockStateStore{}
	n := newTestNotifier(t, store, states)

	updates, unsubscribe := n.Subscribe()
	unsubscribe()

	store.setCount(3)
	n.Poll(context.Background())

	_, open := <-updates
	assert.False(t, open, "unsubscribed channel should be closed")
}
