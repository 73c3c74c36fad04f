package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/metrics"
	"github.com/aatumaykin/doorman/internal/store"
)

// Platform is the messaging-platform boundary the executor drives.
type Platform interface {
	// RemoveMember removes the user from the room. On Telegram this is a ban.
	RemoveMember(ctx context.Context, roomID, userID int64) error
	// UnbanMember lifts the ban so the user may rejoin later.
	UnbanMember(ctx context.Context, roomID, userID int64) error
	// CanRestrictMembers reports whether the bot can remove members from
	// the room. The check is advisory only.
	CanRestrictMembers(ctx context.Context, roomID int64) (bool, error)
}

// Executor performs the remove-then-unban sequence and records the outcome.
type Executor struct {
	platform Platform
	store    Store
	state    *State
	notifier Notifier
	metrics  *metrics.TrackerMetrics
	logger   *logger.Logger
}

// NewExecutor creates an expulsion executor.
func NewExecutor(platform Platform, st Store, state *State, notifier Notifier, m *metrics.TrackerMetrics, log *logger.Logger) *Executor {
	return &Executor{
		platform: platform,
		store:    st,
		state:    state,
		notifier: notifier,
		metrics:  m,
		logger:   log,
	}
}

// Expel removes the member from the room and immediately lifts the ban,
// modelling "kick, allow rejoin". On success the tracked row is deleted and
// one history entry is appended. On failure the row is left intact so the
// next sweep retries; that is the only retry mechanism.
func (e *Executor) Expel(ctx context.Context, m store.TrackedMember, dwell time.Duration) error {
	// Advisory pre-check: an unreliable platform may fail the check itself,
	// so the attempt proceeds either way.
	if allowed, err := e.platform.CanRestrictMembers(ctx, m.RoomID); err != nil {
		e.logger.Warn("permission pre-check failed, proceeding anyway",
			logger.Field{Key: "room_id", Value: m.RoomID},
			logger.Field{Key: "error", Value: err})
	} else if !allowed {
		e.logger.Warn("bot may lack permission to remove members, proceeding anyway",
			logger.Field{Key: "room_id", Value: m.RoomID})
	}

	if err := e.platform.RemoveMember(ctx, m.RoomID, m.UserID); err != nil {
		return e.fail(m, fmt.Errorf("remove failed: %w", err))
	}

	// A bare remove leaves the user permanently banned, which is not the
	// intended semantic.
	if err := e.platform.UnbanMember(ctx, m.RoomID, m.UserID); err != nil {
		return e.fail(m, fmt.Errorf("unban failed: %w", err))
	}

	expelledAt := time.Now().UTC()

	dwellSeconds := int64(dwell / time.Second)
	if dwellSeconds < 0 {
		dwellSeconds = 0
	}

	record := store.ExpulsionRecord{
		UserID:       m.UserID,
		RoomID:       m.RoomID,
		Handle:       m.Handle,
		DisplayName:  m.DisplayName,
		ExpelledAt:   expelledAt,
		DwellSeconds: dwellSeconds,
	}

	// The row may already be gone if a leave event raced the sweep; the
	// delete is a no-op then.
	if err := e.store.DeleteMember(m.UserID, m.RoomID); err != nil {
		e.logger.Error("failed to delete expelled member row", err,
			logger.Field{Key: "user_id", Value: m.UserID},
			logger.Field{Key: "room_id", Value: m.RoomID})
		e.state.RecordError("executor", err)
	}

	if err := e.store.AppendExpulsion(record); err != nil {
		e.logger.Error("failed to append expulsion record", err,
			logger.Field{Key: "user_id", Value: m.UserID},
			logger.Field{Key: "room_id", Value: m.RoomID})
		e.state.RecordError("executor", err)
	}

	e.state.IncrementExpelled()
	e.metrics.RecordExpulsion("success")

	e.logger.Info("member expelled",
		logger.Field{Key: "user_id", Value: m.UserID},
		logger.Field{Key: "room_id", Value: m.RoomID},
		logger.Field{Key: "handle", Value: m.Handle},
		logger.Field{Key: "dwell_seconds", Value: dwellSeconds})

	if e.notifier != nil {
		if err := e.notifier.NotifyExpulsion(ctx, record); err != nil {
			e.logger.Warn("failed to send expulsion notification",
				logger.Field{Key: "user_id", Value: m.UserID},
				logger.Field{Key: "error", Value: err})
			e.metrics.RecordNotificationFailure()
		}
	}

	return nil
}

func (e *Executor) fail(m store.TrackedMember, err error) error {
	e.logger.Error("expulsion failed, will retry on next sweep", err,
		logger.Field{Key: "user_id", Value: m.UserID},
		logger.Field{Key: "room_id", Value: m.RoomID})
	e.state.RecordError("executor", err)
	e.metrics.RecordExpulsion("failure")
	return err
}
