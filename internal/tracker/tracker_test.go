package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/metrics"
	"github.com/aatumaykin/doorman/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func testMetrics() *metrics.TrackerMetrics {
	return metrics.InitTrackerMetrics("doorman", prometheus.NewRegistry())
}

func testStore(t *testing.T) *store.MembershipStore {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// failingStore simulates an unreachable persistence layer.
type failingStore struct {
	err error
}

func (f *failingStore) UpsertMember(store.TrackedMember) error      { return f.err }
func (f *failingStore) DeleteMember(int64, int64) error             { return f.err }
func (f *failingStore) ListMembers() ([]store.TrackedMember, error) { return nil, f.err }
func (f *failingStore) CountMembers() (int, error)                  { return 0, f.err }
func (f *failingStore) AppendExpulsion(store.ExpulsionRecord) error { return f.err }

type platformCall struct {
	RoomID int64
	UserID int64
}

// fakePlatform records remove/unban calls and can be told to fail.
type fakePlatform struct {
	mu sync.Mutex

	removed  []platformCall
	unbanned []platformCall

	removeErr error
	unbanErr  error

	permAllowed bool
	permErr     error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{permAllowed: true}
}

func (p *fakePlatform) RemoveMember(_ context.Context, roomID, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.removeErr != nil {
		return p.removeErr
	}
	p.removed = append(p.removed, platformCall{RoomID: roomID, UserID: userID})
	return nil
}

func (p *fakePlatform) UnbanMember(_ context.Context, roomID, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unbanErr != nil {
		return p.unbanErr
	}
	p.unbanned = append(p.unbanned, platformCall{RoomID: roomID, UserID: userID})
	return nil
}

func (p *fakePlatform) CanRestrictMembers(context.Context, int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permAllowed, p.permErr
}

func (p *fakePlatform) removedCalls() []platformCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformCall{}, p.removed...)
}

func (p *fakePlatform) unbannedCalls() []platformCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformCall{}, p.unbanned...)
}

// fakeNotifier records notifications and can be told to fail.
type fakeNotifier struct {
	mu sync.Mutex

	joins      []store.TrackedMember
	expulsions []store.ExpulsionRecord
	err        error
}

func (n *fakeNotifier) NotifyJoin(_ context.Context, m store.TrackedMember) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.joins = append(n.joins, m)
	return nil
}

func (n *fakeNotifier) NotifyExpulsion(_ context.Context, r store.ExpulsionRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.expulsions = append(n.expulsions, r)
	return nil
}

func (n *fakeNotifier) expulsionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.expulsions)
}

var errStoreDown = errors.New("store unreachable")

// fixedClock returns a clock function pinned to the given instant.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
