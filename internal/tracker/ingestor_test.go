package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestor_JoinCreatesRow(t *testing.T) {
	st := testStore(t)
	state := NewState()
	ing := NewIngestor(st, state, nil, testMetrics(), testLogger(t), false)

	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID:         1,
		RoomID:         9,
		PreviousStatus: StatusAbsent,
		NewStatus:      StatusMember,
		Handle:         "alice",
		ObservedAt:     observed,
	})

	m, found, err := st.GetMember(1, 9)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, m.JoinedAt.Equal(observed))
	assert.Equal(t, "alice", m.Handle)
	assert.Equal(t, 1, state.Snapshot().MembersCount)
}

func TestIngestor_DuplicateJoinResetsDwellClock(t *testing.T) {
	st := testStore(t)
	ing := NewIngestor(st, NewState(), nil, testMetrics(), testLogger(t), false)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(50 * time.Second)

	ev := MemberEvent{UserID: 3, RoomID: 9, PreviousStatus: StatusLeft, NewStatus: StatusMember, ObservedAt: first}
	ing.OnMembershipEvent(context.Background(), ev)
	ev.ObservedAt = second
	ing.OnMembershipEvent(context.Background(), ev)

	members, err := st.ListMembers()
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].JoinedAt.Equal(second))
}

func TestIngestor_LeaveDeletesRow(t *testing.T) {
	st := testStore(t)
	state := NewState()
	ing := NewIngestor(st, state, nil, testMetrics(), testLogger(t), false)

	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 2, RoomID: 9, PreviousStatus: StatusAbsent, NewStatus: StatusMember,
		ObservedAt: time.Now(),
	})
	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 2, RoomID: 9, PreviousStatus: StatusMember, NewStatus: StatusLeft,
		ObservedAt: time.Now(),
	})

	_, found, err := st.GetMember(2, 9)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, state.Snapshot().MembersCount)
}

func TestIngestor_LeaveForUnknownMemberIsNoop(t *testing.T) {
	st := testStore(t)
	state := NewState()
	ing := NewIngestor(st, state, nil, testMetrics(), testLogger(t), false)

	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 77, RoomID: 9, PreviousStatus: StatusMember, NewStatus: StatusRemoved,
		ObservedAt: time.Now(),
	})

	assert.Empty(t, state.Snapshot().RecentErrors)
}

func TestIngestor_IgnoredTransitionLeavesStoreUntouched(t *testing.T) {
	st := testStore(t)
	ing := NewIngestor(st, NewState(), nil, testMetrics(), testLogger(t), false)

	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 4, RoomID: 9, PreviousStatus: StatusMember, NewStatus: StatusMember,
		ObservedAt: time.Now(),
	})

	count, err := st.CountMembers()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestor_MalformedEventDiscarded(t *testing.T) {
	st := testStore(t)
	state := NewState()
	ing := NewIngestor(st, state, nil, testMetrics(), testLogger(t), false)

	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 0, RoomID: 9, PreviousStatus: StatusAbsent, NewStatus: StatusMember,
	})

	count, err := st.CountMembers()
	require.NoError(t, err)
	assert.Zero(t, count)

	errs := state.Snapshot().RecentErrors
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "malformed")
}

func TestIngestor_StoreErrorRecordedNotPropagated(t *testing.T) {
	state := NewState()
	ing := NewIngestor(&failingStore{err: errStoreDown}, state, nil, testMetrics(), testLogger(t), false)

	// Must not panic; the event is dropped and the error recorded.
	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 1, RoomID: 9, PreviousStatus: StatusAbsent, NewStatus: StatusMember,
		ObservedAt: time.Now(),
	})

	errs := state.Snapshot().RecentErrors
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "store unreachable")
}

func TestIngestor_JoinNotificationBestEffort(t *testing.T) {
	st := testStore(t)
	notifier := &fakeNotifier{}
	ing := NewIngestor(st, NewState(), notifier, testMetrics(), testLogger(t), true)

	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 1, RoomID: 9, PreviousStatus: StatusAbsent, NewStatus: StatusMember,
		ObservedAt: time.Now(),
	})

	require.Len(t, notifier.joins, 1)
	assert.Equal(t, int64(1), notifier.joins[0].UserID)
}

func TestIngestor_NotificationFailureSwallowed(t *testing.T) {
	st := testStore(t)
	notifier := &fakeNotifier{err: errStoreDown}
	state := NewState()
	ing := NewIngestor(st, state, notifier, testMetrics(), testLogger(t), true)

	ing.OnMembershipEvent(context.Background(), MemberEvent{
		UserID: 1, RoomID: 9, PreviousStatus: StatusAbsent, NewStatus: StatusMember,
		ObservedAt: time.Now(),
	})

	// Member is tracked despite the notification failure.
	_, found, err := st.GetMember(1, 9)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIngestor_ReplaySequenceProperty(t *testing.T) {
	// The store contains a row iff the last relevant event was a JOIN not
	// yet followed by a LEAVE.
	st := testStore(t)
	ing := NewIngestor(st, NewState(), nil, testMetrics(), testLogger(t), false)
	ctx := context.Background()

	join := func(at time.Time) MemberEvent {
		return MemberEvent{UserID: 8, RoomID: 9, PreviousStatus: StatusLeft, NewStatus: StatusMember, ObservedAt: at}
	}
	leave := func(at time.Time) MemberEvent {
		return MemberEvent{UserID: 8, RoomID: 9, PreviousStatus: StatusMember, NewStatus: StatusLeft, ObservedAt: at}
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ing.OnMembershipEvent(ctx, join(base))
	ing.OnMembershipEvent(ctx, leave(base.Add(time.Second)))
	ing.OnMembershipEvent(ctx, join(base.Add(2*time.Second)))
	ing.OnMembershipEvent(ctx, join(base.Add(3*time.Second)))
	ing.OnMembershipEvent(ctx, leave(base.Add(4*time.Second)))

	count, err := st.CountMembers()
	require.NoError(t, err)
	assert.Zero(t, count, "last relevant event was a leave")

	ing.OnMembershipEvent(ctx, join(base.Add(5*time.Second)))

	members, err := st.ListMembers()
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].JoinedAt.Equal(base.Add(5*time.Second)))
}

func TestIngestor_LeaveWhileRestrictedClearsRow(t *testing.T) {
	// A restriction in place keeps the row; the restricted member's
	// departure must still clear it, or the sweeper would later "expel" a
	// user who already left.
	st := testStore(t)
	ing := NewIngestor(st, NewState(), nil, testMetrics(), testLogger(t), false)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := func(prev, next MemberStatus, at time.Time) MemberEvent {
		return MemberEvent{UserID: 8, RoomID: 9, PreviousStatus: prev, NewStatus: next, ObservedAt: at}
	}

	ing.OnMembershipEvent(ctx, event(StatusAbsent, StatusMember, base))
	ing.OnMembershipEvent(ctx, event(StatusMember, StatusRestricted, base.Add(time.Second)))

	// Restricting in place is not a leave; the dwell clock keeps running.
	count, err := st.CountMembers()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ing.OnMembershipEvent(ctx, event(StatusRestricted, StatusLeft, base.Add(2*time.Second)))

	count, err = st.CountMembers()
	require.NoError(t, err)
	assert.Zero(t, count, "restricted member left, row must be gone")
}

func TestIngestor_RemovedWhileRestrictedClearsRow(t *testing.T) {
	st := testStore(t)
	ing := NewIngestor(st, NewState(), nil, testMetrics(), testLogger(t), false)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ing.OnMembershipEvent(ctx, MemberEvent{
		UserID: 8, RoomID: 9, PreviousStatus: StatusAbsent, NewStatus: StatusMember, ObservedAt: base,
	})
	ing.OnMembershipEvent(ctx, MemberEvent{
		UserID: 8, RoomID: 9, PreviousStatus: StatusMember, NewStatus: StatusRestricted, ObservedAt: base.Add(time.Second),
	})
	ing.OnMembershipEvent(ctx, MemberEvent{
		UserID: 8, RoomID: 9, PreviousStatus: StatusRestricted, NewStatus: StatusRemoved, ObservedAt: base.Add(2 * time.Second),
	})

	count, err := st.CountMembers()
	require.NoError(t, err)
	assert.Zero(t, count)
}
