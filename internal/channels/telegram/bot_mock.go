package telegram

import (
	"context"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/mock"
)

// MockBot is a mock implementation of BotAPI for testing.
// It uses testify/mock to record and verify method calls.
type MockBot struct {
	mock.Mock
}

// GetMe returns basic information about the bot.
func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telego.User), args.Error(1)
}

// SendMessage sends a text message to a chat.
func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telego.Message), args.Error(1)
}

// SetMyCommands sets the bot's command list in the bot menu.
func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// UpdatesViaLongPolling starts long polling for Telegram updates.
func (m *MockBot) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error) {
	args := m.Called(ctx, params, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(chan telego.Update), args.Error(1)
}

// BanChatMember removes a user from a chat.
func (m *MockBot) BanChatMember(ctx context.Context, params *telego.BanChatMemberParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// UnbanChatMember lifts a ban so the user may rejoin.
func (m *MockBot) UnbanChatMember(ctx context.Context, params *telego.UnbanChatMemberParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// GetChatMember returns information about a member of a chat.
func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(telego.ChatMember), args.Error(1)
}

// SetWebhook registers a webhook URL for update delivery.
func (m *MockBot) SetWebhook(ctx context.Context, params *telego.SetWebhookParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// DeleteWebhook removes webhook integration.
func (m *MockBot) DeleteWebhook(ctx context.Context, params *telego.DeleteWebhookParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// NewMockBotSuccess creates a MockBot that returns success for all
// operations. All expectations are optional (.Maybe()), so only called
// methods are checked.
func NewMockBotSuccess() *MockBot {
	mockBot := new(MockBot)

	mockBot.On("GetMe", mock.Anything).Return(&telego.User{
		ID:        987654321,
		FirstName: "Doorman",
		Username:  "doorman_bot",
	}, nil).Maybe()

	mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{
		MessageID: 1,
		Text:      "test message",
	}, nil).Maybe()

	mockBot.On("SetMyCommands", mock.Anything, mock.Anything).Return(nil).Maybe()
	mockBot.On("BanChatMember", mock.Anything, mock.Anything).Return(nil).Maybe()
	mockBot.On("UnbanChatMember", mock.Anything, mock.Anything).Return(nil).Maybe()
	mockBot.On("SetWebhook", mock.Anything, mock.Anything).Return(nil).Maybe()
	mockBot.On("DeleteWebhook", mock.Anything, mock.Anything).Return(nil).Maybe()

	mockBot.On("GetChatMember", mock.Anything, mock.Anything).Return(&telego.ChatMemberAdministrator{
		CanRestrictMembers: true,
	}, nil).Maybe()

	return mockBot
}

// NewMockBotError creates a MockBot that returns the specified error for
// all operations.
func NewMockBotError(err error) *MockBot {
	mockBot := new(MockBot)

	mockBot.On("GetMe", mock.Anything).Return((*telego.User)(nil), err).Maybe()
	mockBot.On("SendMessage", mock.Anything, mock.Anything).Return((*telego.Message)(nil), err).Maybe()
	mockBot.On("SetMyCommands", mock.Anything, mock.Anything).Return(err).Maybe()
	mockBot.On("BanChatMember", mock.Anything, mock.Anything).Return(err).Maybe()
	mockBot.On("UnbanChatMember", mock.Anything, mock.Anything).Return(err).Maybe()
	mockBot.On("GetChatMember", mock.Anything, mock.Anything).Return(nil, err).Maybe()
	mockBot.On("SetWebhook", mock.Anything, mock.Anything).Return(err).Maybe()
	mockBot.On("DeleteWebhook", mock.Anything, mock.Anything).Return(err).Maybe()

	return mockBot
}
