package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/tracker"
	"github.com/aatumaykin/doorman/internal/workers"
	"github.com/google/uuid"
	"github.com/mymmrac/telego"
)

// UpdateHandler turns Telegram updates into membership events and routes
// admin commands.
type UpdateHandler struct {
	connector *Connector
	logger    *logger.Logger
}

// NewUpdateHandler creates a new update handler.
func NewUpdateHandler(connector *Connector, logger *logger.Logger) *UpdateHandler {
	return &UpdateHandler{
		connector: connector,
		logger:    logger,
	}
}

// Handle processes a single Telegram update.
func (uh *UpdateHandler) Handle(update telego.Update) {
	switch {
	case update.ChatMember != nil:
		uh.handleChatMember(update.ChatMember)
	case update.Message != nil:
		uh.handleMessage(update.Message)
	}
}

// handleChatMember normalizes a chat_member update and submits it to the
// event pool. Events the pool cannot accept are dropped, never blocked on.
func (uh *UpdateHandler) handleChatMember(upd *telego.ChatMemberUpdated) {
	event := tracker.MemberEvent{
		RoomID:         upd.Chat.ID,
		PreviousStatus: normalizeStatus(upd.OldChatMember),
		NewStatus:      normalizeStatus(upd.NewChatMember),
		ObservedAt:     time.Unix(upd.Date, 0),
	}

	if user := memberUser(upd.NewChatMember); user != nil {
		event.UserID = user.ID
		event.Handle = user.Username
		event.DisplayName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}

	// Ignore the bot's own membership changes.
	if uh.connector.botUser != nil && event.UserID == uh.connector.botUser.ID {
		return
	}

	task := workers.Task{
		ID:    uuid.New().String(),
		Event: event,
	}

	if !uh.connector.events.Submit(task) {
		uh.logger.Warn("event pool full, membership event dropped",
			logger.Field{Key: "user_id", Value: event.UserID},
			logger.Field{Key: "room_id", Value: event.RoomID})
		return
	}

	uh.logger.Debug("membership event submitted",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "user_id", Value: event.UserID},
		logger.Field{Key: "room_id", Value: event.RoomID},
		logger.Field{Key: "previous", Value: string(event.PreviousStatus)},
		logger.Field{Key: "next", Value: string(event.NewStatus)})
}

// handleMessage routes bot commands. Anything else is ignored.
func (uh *UpdateHandler) handleMessage(msg *telego.Message) {
	if msg.Text == "" || !strings.HasPrefix(msg.Text, "/") {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Text, "/"))
	if len(fields) == 0 {
		return
	}
	command := fields[0]
	if at := strings.Index(command, "@"); at != -1 {
		command = command[:at]
	}

	switch command {
	case "test":
		uh.reply(msg.Chat.ID, "Doorman is alive.")
	case "status":
		uh.reply(msg.Chat.ID, uh.formatStatus())
	case "notify_on":
		uh.handleAdminCommand(msg, func() string {
			uh.connector.state.ArmNotifications(true)
			return "Notifications enabled."
		})
	case "notify_off":
		uh.handleAdminCommand(msg, func() string {
			uh.connector.state.ArmNotifications(false)
			return "Notifications disabled."
		})
	case "sweep":
		uh.handleAdminCommand(msg, func() string {
			if uh.connector.sweeper == nil {
				return "Sweeper is not running."
			}
			if uh.connector.sweeper.RunOnce(uh.connector.ctx) {
				return "Sweep completed."
			}
			return "Sweep already in progress, skipped."
		})
	}
}

// handleAdminCommand runs action only for messages coming from the admin
// chat.
func (uh *UpdateHandler) handleAdminCommand(msg *telego.Message, action func() string) {
	if msg.From == nil || msg.From.ID != uh.connector.cfg.AdminChatID {
		uh.logger.Warn("admin command rejected",
			logger.Field{Key: "chat_id", Value: msg.Chat.ID},
			logger.Field{Key: "text", Value: msg.Text})
		return
	}

	uh.reply(msg.Chat.ID, action())
}

func (uh *UpdateHandler) formatStatus() string {
	snap := uh.connector.state.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Tracked members: %d\n", snap.MembersCount)
	fmt.Fprintf(&b, "Total expelled: %d\n", snap.TotalExpelled)
	if snap.LastSweepAt != nil {
		fmt.Fprintf(&b, "Last sweep: %s\n", snap.LastSweepAt.Format(time.RFC3339))
	} else {
		b.WriteString("Last sweep: never\n")
	}
	if snap.NextSweepAt != nil {
		fmt.Fprintf(&b, "Next sweep: %s\n", snap.NextSweepAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Notifications armed: %t", snap.NotificationsArmed)

	return b.String()
}

func (uh *UpdateHandler) reply(chatID int64, text string) {
	ctx, cancel := uh.connector.sendTimeout()
	defer cancel()

	_, err := uh.connector.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	})
	if err != nil {
		uh.logger.Error("failed to send reply", err,
			logger.Field{Key: "chat_id", Value: chatID})
	}
}

// normalizeStatus maps a Telegram chat member to the tracker status model.
// A nil member means Telegram reported no prior relationship.
func normalizeStatus(member telego.ChatMember) tracker.MemberStatus {
	if member == nil {
		return tracker.StatusUnknown
	}

	switch member.MemberStatus() {
	case telego.MemberStatusCreator:
		return tracker.StatusOwner
	case telego.MemberStatusAdministrator:
		return tracker.StatusAdministrator
	case telego.MemberStatusMember:
		return tracker.StatusMember
	case telego.MemberStatusRestricted:
		return tracker.StatusRestricted
	case telego.MemberStatusLeft:
		return tracker.StatusLeft
	case telego.MemberStatusBanned:
		return tracker.StatusRemoved
	default:
		return tracker.StatusUnknown
	}
}

func memberUser(member telego.ChatMember) *telego.User {
	if member == nil {
		return nil
	}
	user := member.MemberUser()
	return &user
}
