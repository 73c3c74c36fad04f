package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/metrics"
	"github.com/aatumaykin/doorman/internal/store"
)

// ErrMalformedEvent marks events missing required identifying fields.
var ErrMalformedEvent = errors.New("malformed membership event")

// Store is the membership persistence boundary the tracker depends on.
// All operations are atomic per key.
type Store interface {
	UpsertMember(m store.TrackedMember) error
	DeleteMember(userID, roomID int64) error
	ListMembers() ([]store.TrackedMember, error)
	CountMembers() (int, error)
	AppendExpulsion(r store.ExpulsionRecord) error
}

// Notifier delivers best-effort admin notifications. Implementations decide
// whether notifications are armed; callers always swallow errors.
type Notifier interface {
	NotifyJoin(ctx context.Context, m store.TrackedMember) error
	NotifyExpulsion(ctx context.Context, r store.ExpulsionRecord) error
}

// Ingestor applies membership-change notifications to the store.
type Ingestor struct {
	store        Store
	state        *State
	notifier     Notifier
	metrics      *metrics.TrackerMetrics
	logger       *logger.Logger
	notifyOnJoin bool
}

// NewIngestor creates an event ingestor.
func NewIngestor(st Store, state *State, notifier Notifier, m *metrics.TrackerMetrics, log *logger.Logger, notifyOnJoin bool) *Ingestor {
	return &Ingestor{
		store:        st,
		state:        state,
		notifier:     notifier,
		metrics:      m,
		logger:       log,
		notifyOnJoin: notifyOnJoin,
	}
}

// OnMembershipEvent classifies and applies one event. Processing is
// at-most-once: any error is logged and recorded, the event is dropped, and
// the ingestor never panics or propagates.
func (i *Ingestor) OnMembershipEvent(ctx context.Context, ev MemberEvent) {
	if ev.UserID == 0 || ev.RoomID == 0 {
		i.logger.Warn("discarding malformed membership event",
			logger.Field{Key: "user_id", Value: ev.UserID},
			logger.Field{Key: "room_id", Value: ev.RoomID})
		i.metrics.RecordEvent("malformed")
		i.state.RecordError("ingestor", ErrMalformedEvent)
		return
	}

	kind := Classify(ev.PreviousStatus, ev.NewStatus)
	i.metrics.RecordEvent(string(kind))

	switch kind {
	case KindJoin:
		i.handleJoin(ctx, ev)
	case KindLeave:
		i.handleLeave(ev)
	default:
		i.logger.Debug("ignoring membership transition",
			logger.Field{Key: "user_id", Value: ev.UserID},
			logger.Field{Key: "room_id", Value: ev.RoomID},
			logger.Field{Key: "previous", Value: ev.PreviousStatus},
			logger.Field{Key: "new", Value: ev.NewStatus})
	}
}

func (i *Ingestor) handleJoin(ctx context.Context, ev MemberEvent) {
	observedAt := ev.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	member := store.TrackedMember{
		UserID:      ev.UserID,
		RoomID:      ev.RoomID,
		JoinedAt:    observedAt.UTC(),
		Handle:      ev.Handle,
		DisplayName: ev.DisplayName,
	}

	if err := i.store.UpsertMember(member); err != nil {
		i.logger.Error("failed to track joined member", err,
			logger.Field{Key: "user_id", Value: ev.UserID},
			logger.Field{Key: "room_id", Value: ev.RoomID})
		i.state.RecordError("ingestor", err)
		return
	}

	i.logger.Info("member tracked",
		logger.Field{Key: "user_id", Value: ev.UserID},
		logger.Field{Key: "room_id", Value: ev.RoomID},
		logger.Field{Key: "handle", Value: ev.Handle},
		logger.Field{Key: "joined_at", Value: member.JoinedAt})

	i.refreshMembersCount()

	if i.notifyOnJoin && i.notifier != nil {
		if err := i.notifier.NotifyJoin(ctx, member); err != nil {
			i.logger.Warn("failed to send join notification",
				logger.Field{Key: "user_id", Value: ev.UserID},
				logger.Field{Key: "error", Value: err})
			i.metrics.RecordNotificationFailure()
		}
	}
}

func (i *Ingestor) handleLeave(ev MemberEvent) {
	if err := i.store.DeleteMember(ev.UserID, ev.RoomID); err != nil {
		i.logger.Error("failed to untrack left member", err,
			logger.Field{Key: "user_id", Value: ev.UserID},
			logger.Field{Key: "room_id", Value: ev.RoomID})
		i.state.RecordError("ingestor", err)
		return
	}

	i.logger.Info("member untracked",
		logger.Field{Key: "user_id", Value: ev.UserID},
		logger.Field{Key: "room_id", Value: ev.RoomID})

	i.refreshMembersCount()
}

func (i *Ingestor) refreshMembersCount() {
	count, err := i.store.CountMembers()
	if err != nil {
		i.logger.Warn("failed to refresh members count",
			logger.Field{Key: "error", Value: err})
		return
	}
	i.state.SetMembersCount(count)
	i.metrics.SetTrackedMembers(count)
}
