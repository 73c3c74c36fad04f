package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/doorman/internal/store"
	"github.com/mymmrac/telego"
)

// AdminNotifier delivers join and expulsion notifications to the admin chat.
// It implements tracker.Notifier. Notifications start disarmed after every
// restart and are only sent once the admin enables them.
type AdminNotifier struct {
	connector *Connector
}

// NotifyJoin reports a newly tracked member to the admin chat.
func (n *AdminNotifier) NotifyJoin(ctx context.Context, m store.TrackedMember) error {
	text := fmt.Sprintf("👤 %s joined chat %d, tracking started at %s",
		memberLabel(m), m.RoomID, m.JoinedAt.Format(time.RFC3339))
	return n.send(ctx, text)
}

// NotifyExpulsion reports a completed expulsion to the admin chat.
func (n *AdminNotifier) NotifyExpulsion(ctx context.Context, r store.ExpulsionRecord) error {
	text := fmt.Sprintf("🚪 %s removed from chat %d after %d seconds (rejoin allowed)",
		expelledLabel(r), r.RoomID, r.DwellSeconds)
	return n.send(ctx, text)
}

func (n *AdminNotifier) send(ctx context.Context, text string) error {
	if !n.connector.state.NotificationsArmed() {
		return nil
	}
	if n.connector.cfg.AdminChatID == 0 {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := n.connector.bot.SendMessage(sendCtx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.connector.cfg.AdminChatID},
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to notify admin: %w", err)
	}
	return nil
}

func memberLabel(m store.TrackedMember) string {
	switch {
	case m.Handle != "":
		return "@" + m.Handle
	case m.DisplayName != "":
		return m.DisplayName
	default:
		return fmt.Sprintf("user %d", m.UserID)
	}
}

func expelledLabel(r store.ExpulsionRecord) string {
	switch {
	case r.Handle != "":
		return "@" + r.Handle
	case r.DisplayName != "":
		return r.DisplayName
	default:
		return fmt.Sprintf("user %d", r.UserID)
	}
}
