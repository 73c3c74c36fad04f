package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
)

// RemoveMember kicks the user from the chat. Telegram models a kick as a
// ban; the caller lifts it right after to allow rejoining.
func (c *Connector) RemoveMember(ctx context.Context, roomID, userID int64) error {
	err := c.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: telego.ChatID{ID: roomID},
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("failed to ban chat member: %w", err)
	}
	return nil
}

// UnbanMember lifts the ban so the user may rejoin.
func (c *Connector) UnbanMember(ctx context.Context, roomID, userID int64) error {
	err := c.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       telego.ChatID{ID: roomID},
		UserID:       userID,
		OnlyIfBanned: false,
	})
	if err != nil {
		return fmt.Errorf("failed to unban chat member: %w", err)
	}
	return nil
}

// CanRestrictMembers reports whether the bot holds the restrict-members
// right in the chat.
func (c *Connector) CanRestrictMembers(ctx context.Context, roomID int64) (bool, error) {
	if c.botUser == nil {
		return false, fmt.Errorf("bot identity is not known")
	}

	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: roomID},
		UserID: c.botUser.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get bot chat membership: %w", err)
	}

	switch m := member.(type) {
	case *telego.ChatMemberOwner:
		return true, nil
	case *telego.ChatMemberAdministrator:
		return m.CanRestrictMembers, nil
	default:
		return false, nil
	}
}
