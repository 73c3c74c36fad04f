package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aatumaykin/doorman/internal/config"
	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/google/uuid"
	"github.com/mymmrac/telego"
)

// WebhookServer receives Telegram updates over HTTPS. Telegram is told to
// deliver updates with a per-start secret token, which the handler verifies
// on every request.
type WebhookServer struct {
	connector *Connector
	logger    *logger.Logger
	server    *http.Server
	secret    string
}

// StartWebhook registers the webhook with Telegram and starts the local
// listener that receives update payloads.
func StartWebhook(ctx context.Context, conn *Connector, cfg config.TelegramConfig, log *logger.Logger) (*WebhookServer, error) {
	ws := &WebhookServer{
		connector: conn,
		logger:    log,
		secret:    uuid.New().String(),
	}

	err := conn.bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:                cfg.WebhookURL,
		SecretToken:        ws.secret,
		AllowedUpdates:     allowedUpdates,
		DropPendingUpdates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register webhook: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", ws.handleUpdate)

	ws.server = &http.Server{
		Addr:              cfg.WebhookListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("webhook listener started",
			logger.Field{Key: "addr", Value: cfg.WebhookListenAddr})

		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("webhook listener failed", err)
		}
	}()

	go func() {
		<-ctx.Done()
		ws.deregister()
	}()

	return ws, nil
}

// Stop shuts down the listener and deregisters the webhook.
func (ws *WebhookServer) Stop() {
	ws.deregister()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		ws.logger.Warn("webhook listener shutdown failed",
			logger.Field{Key: "error", Value: err})
	}
}

func (ws *WebhookServer) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ws.connector.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{})
	if err != nil {
		ws.logger.Warn("failed to deregister webhook",
			logger.Field{Key: "error", Value: err})
	}
}

func (ws *WebhookServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(ws.secret)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		ws.logger.Warn("failed to decode webhook payload",
			logger.Field{Key: "error", Value: err})
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ws.connector.updateHandler.Handle(update)
	w.WriteHeader(http.StatusOK)
}
