package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/classify"
	"github.com/casaflow/relay-go/internal/credstore"
)

func seededStore(t *testing.T) *credstore.MemoryStore {
	t.Helper()
	store := credstore.NewMemoryStore()
	require.NoError(t, store.Replace(credstore.Credential{AccessToken: "old-access", RefreshToken: "old-refresh"}))
	return store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCoordinator_Renew(t *testing.T) {
	t.Run("success replaces the stored credential", func(t *testing.T) {
		store := seededStore(t)
		coord := NewCoordinator(store, func(_ context.Context, refreshToken string) (credstore.Credential, error) {
			assert.Equal(t, "old-refresh", refreshToken)
			return credstore.Credential{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		}, zap.NewNop(), nil)

		cred, err := coord.Renew(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new-access", cred.AccessToken)

		stored, ok := store.Current()
		require.True(t, ok)
		assert.Equal(t, "new-access", stored.AccessToken)
		assert.False(t, coord.Pending())
	})

	t.Run("rejected renewal clears the store", func(t *testing.T) {
		store := seededStore(t)
		coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
			return credstore.Credential{}, &classify.Error{Kind: classify.Unauthorized, Message: "refresh token rejected"}
		}, zap.NewNop(), nil)

		_, err := coord.Renew(context.Background())
		require.Error(t, err)
		assert.Equal(t, classify.Unauthorized, classify.KindOf(err))

		_, ok := store.Current()
		assert.False(t, ok, "store must be cleared after a rejected renewal")
	})

	t.Run("network failure does not clear the store", func(t *testing.T) {
		store := seededStore(t)
		coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
			return credstore.Credential{}, &classify.Error{Kind: classify.Network, Message: "connection refused"}
		}, zap.NewNop(), nil)

		_, err := coord.Renew(context.Background())
		require.Error(t, err)
		assert.Equal(t, classify.Network, classify.KindOf(err))

		_, ok := store.Current()
		assert.True(t, ok, "a transient refresh failure must not destroy the session")
	})

	t.Run("missing refresh token fails fast", func(t *testing.T) {
		store := credstore.NewMemoryStore()
		calls := 0
		coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
			calls++
			return credstore.Credential{}, nil
		}, zap.NewNop(), nil)

		_, err := coord.Renew(context.Background())
		require.Error(t, err)
		assert.Equal(t, classify.Unauthorized, classify.KindOf(err))
		assert.Zero(t, calls, "no endpoint call without a refresh token")
	})
}

func TestCoordinator_SingleFlight(t *testing.T) {
	const concurrent = 5

	store := seededStore(t)
	var calls atomic.Int32
	release := make(chan struct{})

	coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
		calls.Add(1)
		<-release
		return credstore.Credential{AccessToken: "renewed", RefreshToken: "renewed-refresh"}, nil
	}, zap.NewNop(), nil)

	var wg sync.WaitGroup
	results := make([]credstore.Credential, concurrent)
	errs := make([]error, concurrent)

	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.Renew(context.Background())
		}(i)
	}

	// One initiator plus four queued waiters, then release the renewal.
	waitFor(t, func() bool { return coord.Pending() && coord.Waiters() == concurrent-1 })
	assert.Equal(t, int32(1), calls.Load())
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one renewal call for all concurrent callers")
	for i := 0; i < concurrent; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "renewed", results[i].AccessToken)
	}
	assert.Zero(t, coord.Waiters())
}

func TestCoordinator_SharedFailure(t *testing.T) {
	store := seededStore(t)
	release := make(chan struct{})
	coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
		<-release
		return credstore.Credential{}, &classify.Error{Kind: classify.Unauthorized, Message: "refresh token rejected"}
	}, zap.NewNop(), nil)

	const concurrent = 4
	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Renew(context.Background())
		}(i)
	}

	waitFor(t, func() bool { return coord.Waiters() == concurrent-1 })
	close(release)
	wg.Wait()

	for i := 0; i < concurrent; i++ {
		require.Error(t, errs[i])
		assert.Equal(t, classify.Unauthorized, classify.KindOf(errs[i]), "waiter %d", i)
	}
	_, ok := store.Current()
	assert.False(t, ok)
}

// The waiter queue preserves arrival order, including across removals; the
// settle loop resolves it front to back.
func TestCoordinator_WaiterQueueOrder(t *testing.T) {
	store := seededStore(t)
	release := make(chan struct{})
	coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
		<-release
		return credstore.Credential{AccessToken: "renewed"}, nil
	}, zap.NewNop(), nil)

	go func() { _, _ = coord.Renew(context.Background()) }()
	waitFor(t, coord.Pending)

	// Enqueue three waiters one at a time so arrival order is deterministic.
	ctxs := make([]context.CancelFunc, 3)
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ctxs[i] = cancel
		go func() { _, _ = coord.Renew(ctx) }()
		waitFor(t, func() bool { return coord.Waiters() == i+1 })
	}

	coord.mu.Lock()
	queued := append([]*waiter(nil), coord.waiters...)
	coord.mu.Unlock()
	require.Len(t, queued, 3)

	// Cancel the middle waiter; the queue keeps first and third in order.
	ctxs[1]()
	waitFor(t, func() bool { return coord.Waiters() == 2 })

	coord.mu.Lock()
	assert.Same(t, queued[0], coord.waiters[0])
	assert.Same(t, queued[2], coord.waiters[1])
	coord.mu.Unlock()

	close(release)
	waitFor(t, func() bool { return !coord.Pending() })
	for _, cancel := range ctxs {
		cancel()
	}
}

func TestCoordinator_WaiterCancellation(t *testing.T) {
	store := seededStore(t)
	release := make(chan struct{})
	var calls atomic.Int32
	coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
		calls.Add(1)
		<-release
		return credstore.Credential{AccessToken: "renewed", RefreshToken: "r"}, nil
	}, zap.NewNop(), nil)

	initiatorDone := make(chan error, 1)
	go func() {
		_, err := coord.Renew(context.Background())
		initiatorDone <- err
	}()
	waitFor(t, coord.Pending)

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := coord.Renew(ctx)
		waiterDone <- err
	}()
	waitFor(t, func() bool { return coord.Waiters() == 1 })

	cancel()
	err := <-waiterDone
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, coord.Waiters(), "cancelled waiter leaves the queue")
	assert.True(t, coord.Pending(), "in-flight renewal unaffected by waiter cancellation")

	close(release)
	require.NoError(t, <-initiatorDone)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoordinator_Reset(t *testing.T) {
	t.Run("queued waiters are rejected", func(t *testing.T) {
		store := seededStore(t)
		release := make(chan struct{})
		coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
			<-release
			return credstore.Credential{AccessToken: "late"}, nil
		}, zap.NewNop(), nil)

		go func() { _, _ = coord.Renew(context.Background()) }()
		waitFor(t, coord.Pending)

		waiterDone := make(chan error, 1)
		go func() {
			_, err := coord.Renew(context.Background())
			waiterDone <- err
		}()
		waitFor(t, func() bool { return coord.Waiters() == 1 })

		coord.Reset()
		err := <-waiterDone
		require.Error(t, err)
		assert.Equal(t, classify.Unauthorized, classify.KindOf(err))

		close(release)
	})

	t.Run("late outcome from before reset never touches the store", func(t *testing.T) {
		store := seededStore(t)
		release := make(chan struct{})
		coord := NewCoordinator(store, func(context.Context, string) (credstore.Credential, error) {
			<-release
			return credstore.Credential{AccessToken: "stale-renewal"}, nil
		}, zap.NewNop(), nil)

		initiatorDone := make(chan error, 1)
		go func() {
			_, err := coord.Renew(context.Background())
			initiatorDone <- err
		}()
		waitFor(t, coord.Pending)

		coord.Reset()
		require.NoError(t, store.Clear()) // logout clears the store as well

		close(release)
		err := <-initiatorDone
		require.Error(t, err)
		assert.Equal(t, classify.Unauthorized, classify.KindOf(err))

		_, ok := store.Current()
		assert.False(t, ok, "stale renewal must not resurrect a logged-out session")
	})
}
