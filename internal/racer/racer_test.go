package racer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/botracer/internal/alert"
	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/store"
	"github.com/chaz8081/botracer/internal/watch"
)

const racerAddr = "AA:BB:CC:DD:EE:FF"

// countingStore wraps a MemoryStore, counting Sets and optionally failing them.
type countingStore struct {
	*store.MemoryStore

	mu      sync.Mutex
	sets    int
	failSet error
}

func (s *countingStore) Set(key, value string) error {
	s.mu.Lock()
	s.sets++
	err := s.failSet
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Set(key, value)
}

func (s *countingStore) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

type chanNotifier chan alert.Notification

func (c chanNotifier) Notify(_ context.Context, n alert.Notification) error {
	c <- n
	return nil
}

type testEnv struct {
	store   *countingStore
	manager *watch.Manager
	deps    Deps
	notes   chanNotifier
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()
	pool := dispatch.NewPool(dispatch.DefaultOptions(), logger)
	t.Cleanup(pool.Close)

	s := &countingStore{MemoryStore: store.NewMemoryStore()}
	m := watch.NewManager(pool, watch.DefaultOptions(), logger)
	t.Cleanup(m.Close)

	notes := make(chanNotifier, 4)
	m.Handle(alert.EntryPoint, alert.NewTask(s, notes, logger))

	return &testEnv{
		store:   s,
		manager: m,
		notes:   notes,
		deps:    Deps{Store: s, Registrar: m, Pool: pool, Logger: logger, MaintainConnection: true},
	}
}

// wait blocks on a dispatch result with a test timeout.
func wait(t *testing.T, r *dispatch.Result) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := r.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "result did not resolve")
	return err
}
