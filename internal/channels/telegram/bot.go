package telegram

import (
	"context"

	"github.com/mymmrac/telego"
)

// BotAPI defines the Telegram bot API methods used by the connector.
// The interface allows mock implementations in tests without depending on
// the concrete telego.Bot.
type BotAPI interface {
	// GetMe returns basic information about the bot.
	GetMe(ctx context.Context) (*telego.User, error)

	// SendMessage sends a text message to a chat.
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)

	// SetMyCommands sets the bot's command list in the bot menu.
	SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error

	// UpdatesViaLongPolling starts long polling for Telegram updates.
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error)

	// BanChatMember removes a user from a chat. Without a following unban
	// the user stays banned.
	BanChatMember(ctx context.Context, params *telego.BanChatMemberParams) error

	// UnbanChatMember lifts a ban so the user may rejoin.
	UnbanChatMember(ctx context.Context, params *telego.UnbanChatMemberParams) error

	// GetChatMember returns information about a member of a chat.
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)

	// SetWebhook registers a webhook URL for update delivery.
	SetWebhook(ctx context.Context, params *telego.SetWebhookParams) error

	// DeleteWebhook removes webhook integration.
	DeleteWebhook(ctx context.Context, params *telego.DeleteWebhookParams) error
}

// telegoAdapter wraps telego.Bot to implement BotAPI.
type telegoAdapter struct {
	bot *telego.Bot
}

// NewBotAdapter creates a BotAPI from a telego.Bot instance.
func NewBotAdapter(bot *telego.Bot) BotAPI {
	return &telegoAdapter{bot: bot}
}

func (a *telegoAdapter) GetMe(ctx context.Context) (*telego.User, error) {
	return a.bot.GetMe(ctx)
}

func (a *telegoAdapter) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	return a.bot.SendMessage(ctx, params)
}

func (a *telegoAdapter) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	return a.bot.SetMyCommands(ctx, params)
}

func (a *telegoAdapter) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error) {
	return a.bot.UpdatesViaLongPolling(ctx, params, opts...)
}

func (a *telegoAdapter) BanChatMember(ctx context.Context, params *telego.BanChatMemberParams) error {
	return a.bot.BanChatMember(ctx, params)
}

func (a *telegoAdapter) UnbanChatMember(ctx context.Context, params *telego.UnbanChatMemberParams) error {
	return a.bot.UnbanChatMember(ctx, params)
}

func (a *telegoAdapter) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	return a.bot.GetChatMember(ctx, params)
}

func (a *telegoAdapter) SetWebhook(ctx context.Context, params *telego.SetWebhookParams) error {
	return a.bot.SetWebhook(ctx, params)
}

func (a *telegoAdapter) DeleteWebhook(ctx context.Context, params *telego.DeleteWebhookParams) error {
	return a.bot.DeleteWebhook(ctx, params)
}
