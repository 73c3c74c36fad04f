// Package telegram provides the Telegram integration for Doorman using the
// Telego library. It receives chat_member updates over long polling or a
// webhook, normalizes them into membership events for the tracker, and
// performs the ban/unban/notify operations the tracker asks for.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/doorman/internal/config"
	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/tracker"
	"github.com/aatumaykin/doorman/internal/version"
	"github.com/aatumaykin/doorman/internal/workers"
	"github.com/mymmrac/telego"
)

const (
	// TransportPolling receives updates via long polling.
	TransportPolling = "polling"
	// TransportWebhook receives updates via an HTTPS webhook.
	TransportWebhook = "webhook"
)

// allowedUpdates limits delivery to what the tracker consumes.
var allowedUpdates = []string{"chat_member", "message"}

// EventSink accepts normalized membership events for processing.
type EventSink interface {
	Submit(task workers.Task) bool
}

// SweepTrigger starts a manual sweep cycle.
type SweepTrigger interface {
	RunOnce(ctx context.Context) bool
}

// Connector is the Telegram connector. It implements tracker.Platform.
type Connector struct {
	cfg    config.TelegramConfig
	logger *logger.Logger
	state  *tracker.State

	events  EventSink
	sweeper SweepTrigger

	bot     BotAPI
	botUser *telego.User

	ctx    context.Context
	cancel context.CancelFunc

	updateHandler *UpdateHandler
	notifier      *AdminNotifier
	webhook       *WebhookServer

	transportMu     sync.Mutex
	transportMode   string
	transportCancel context.CancelFunc
}

// New creates a Telegram connector. SetEventSink and SetSweeper must be
// called before Start.
func New(cfg config.TelegramConfig, log *logger.Logger, state *tracker.State) *Connector {
	conn := &Connector{
		cfg:    cfg,
		logger: log,
		state:  state,
	}
	conn.updateHandler = NewUpdateHandler(conn, log)
	conn.notifier = &AdminNotifier{connector: conn}
	return conn
}

// SetEventSink wires the worker pool that processes membership events.
func (c *Connector) SetEventSink(sink EventSink) {
	c.events = sink
}

// SetSweeper wires the manual sweep trigger used by the /sweep command.
func (c *Connector) SetSweeper(sweeper SweepTrigger) {
	c.sweeper = sweeper
}

// Notifier returns the admin notifier backed by this connector.
func (c *Connector) Notifier() tracker.Notifier {
	return c.notifier
}

// Start initializes the bot and starts the configured transport.
func (c *Connector) Start(ctx context.Context) error {
	if c.cfg.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.events == nil {
		return fmt.Errorf("event sink is not wired")
	}

	bot, err := telego.NewBot(c.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	c.bot = NewBotAdapter(bot)
	c.ctx, c.cancel = context.WithCancel(ctx)

	botUser, err := c.bot.GetMe(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	c.botUser = botUser

	c.logger.Info("telegram bot initialized",
		logger.Field{Key: "bot_id", Value: botUser.ID},
		logger.Field{Key: "username", Value: botUser.Username})

	if err := c.registerCommands(); err != nil {
		c.logger.Error("failed to register bot commands", err)
	}

	c.sendStartupMessage()

	return c.startTransport(c.cfg.Transport)
}

// Stop gracefully stops the connector.
func (c *Connector) Stop() error {
	c.logger.Info("stopping telegram connector")

	c.transportMu.Lock()
	if c.transportCancel != nil {
		c.transportCancel()
		c.transportCancel = nil
	}
	if c.webhook != nil {
		c.webhook.Stop()
		c.webhook = nil
	}
	c.transportMu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.logger.Info("telegram connector stopped")
	return nil
}

// Reconfigure switches the update transport at runtime. Switching to the
// already-active transport is a no-op.
func (c *Connector) Reconfigure(mode string) error {
	if mode != TransportPolling && mode != TransportWebhook {
		return fmt.Errorf("unknown transport mode: %s", mode)
	}
	if c.bot == nil {
		return fmt.Errorf("connector is not started")
	}

	c.transportMu.Lock()
	if c.transportMode == mode {
		c.transportMu.Unlock()
		return nil
	}

	if c.transportCancel != nil {
		c.transportCancel()
		c.transportCancel = nil
	}
	if c.webhook != nil {
		c.webhook.Stop()
		c.webhook = nil
	}
	c.transportMu.Unlock()

	c.logger.Info("reconfiguring telegram transport",
		logger.Field{Key: "mode", Value: mode})

	return c.startTransport(mode)
}

// TransportMode returns the currently active transport.
func (c *Connector) TransportMode() string {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()
	return c.transportMode
}

func (c *Connector) startTransport(mode string) error {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	transportCtx, cancel := context.WithCancel(c.ctx)

	switch mode {
	case TransportWebhook:
		if c.cfg.WebhookURL == "" {
			cancel()
			return fmt.Errorf("webhook transport requires webhook_url")
		}

		webhook, err := StartWebhook(transportCtx, c, c.cfg, c.logger)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to start webhook transport: %w", err)
		}
		c.webhook = webhook

	default:
		go c.longPoll(transportCtx)
	}

	c.transportMode = mode
	c.transportCancel = cancel

	c.logger.Info("telegram transport started",
		logger.Field{Key: "mode", Value: mode})

	return nil
}

// longPoll receives updates via long polling until the context is done.
func (c *Connector) longPoll(ctx context.Context) {
	// Pending updates accumulated while the bot was down are stale; the
	// sweeper recovers overdue members from the store.
	err := c.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{DropPendingUpdates: true})
	if err != nil {
		c.logger.Warn("failed to drop pending updates",
			logger.Field{Key: "error", Value: err})
	}

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		c.logger.Error("failed to start long polling", err)
		return
	}

	c.logger.Info("long polling started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				c.logger.Info("updates channel closed")
				return
			}
			c.updateHandler.Handle(update)
		}
	}
}

func (c *Connector) registerCommands() error {
	if c.bot == nil {
		return fmt.Errorf("bot is not initialized")
	}

	commands := &telego.SetMyCommandsParams{
		Commands: []telego.BotCommand{
			{Command: "status", Description: "Show tracker status"},
			{Command: "test", Description: "Check that the bot is alive"},
			{Command: "notify_on", Description: "Enable admin notifications"},
			{Command: "notify_off", Description: "Disable admin notifications"},
			{Command: "sweep", Description: "Run a sweep now"},
		},
	}

	if err := c.bot.SetMyCommands(c.ctx, commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	c.logger.Info("bot commands registered")
	return nil
}

// sendStartupMessage pings the admin chat. Best effort: the bot works fine
// without it.
func (c *Connector) sendStartupMessage() {
	if c.cfg.AdminChatID == 0 {
		return
	}

	_, err := c.bot.SendMessage(c.ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: c.cfg.AdminChatID},
		Text:   version.FormatStartupMessage(),
	})
	if err != nil {
		c.logger.Warn("failed to send startup message",
			logger.Field{Key: "error", Value: err})
		return
	}

	c.logger.Info("startup message sent",
		logger.Field{Key: "admin_chat_id", Value: c.cfg.AdminChatID})
}

// sendTimeout returns a context with the configured send timeout.
func (c *Connector) sendTimeout() (context.Context, context.CancelFunc) {
	timeout := time.Duration(c.cfg.SendTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(c.ctx, timeout)
}
