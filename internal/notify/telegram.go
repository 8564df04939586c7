// Package notify sends trade and breaker notifications to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/eventbus"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// Bus is the part of the event bus the notifier registers on.
type Bus interface {
	Subscribe(eventType types.EventType, handler eventbus.Handler)
}

// ControlSource tells whether notifications are switched on.
type ControlSource interface {
	Controls() types.ControlFlags
}

// Telegram posts messages through the Bot API.
type Telegram struct {
	baseURL  string
	token    string
	chatID   string
	client   *http.Client
	controls ControlSource
	policy   utils.RetryPolicy
	logger   *logger.Logger
}

// NewTelegram creates a notifier. Missing credentials are a configuration error.
func NewTelegram(cfg config.TelegramConfig, controls ControlSource, log *logger.Logger) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, errors.New(errors.ErrCodeMissingCredentials, "telegram bot token and chat id are required")
	}

	return &Telegram{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: cfg.Timeout}, //nolint:exhaustruct // defaults
		controls: controls,
		policy:   utils.RetryPolicy{Retries: 3, BaseDelay: 10 * time.Second, CallTimeout: cfg.Timeout},
		logger:   log,
	}, nil
}

// WithRetryPolicy replaces the retry policy. Used by tests.
func (t *Telegram) WithRetryPolicy(policy utils.RetryPolicy) *Telegram {
	t.policy = policy

	return t
}

// Register subscribes to the events worth a message.
func (t *Telegram) Register(bus Bus) {
	bus.Subscribe(types.EventTradeOpened, t.onTradeOpened)
	bus.Subscribe(types.EventTradeClosed, t.onTradeClosed)
	bus.Subscribe(types.EventPauseTriggered, t.onPauseTriggered)
	bus.Subscribe(types.EventPauseLifted, t.onPauseLifted)
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts one message, retrying network failures and server errors.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "failed to marshal telegram message", err)
	}

	_, err = utils.Retry(ctx, t.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.post(ctx, body)
	})

	return err
}

func (t *Telegram) post(ctx context.Context, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "failed to build telegram request", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotificationFailed, "failed to reach telegram", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	// Client errors other than throttling will not succeed on retry.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return errors.Newf(errors.ErrCodeInvalidParameter, "telegram rejected message: status %d, body: %s", resp.StatusCode, respBody)
	}

	return errors.Newf(errors.ErrCodeNotificationFailed, "telegram error: status %d, body: %s", resp.StatusCode, respBody)
}

// notify sends text when notifications are enabled. Failures are logged only.
func (t *Telegram) notify(ctx context.Context, text string) error {
	if !t.controls.Controls().NotificationsEnabled {
		return nil
	}

	if err := t.Send(ctx, text); err != nil {
		t.logger.Error("Failed to send notification", zap.Error(err))
	}

	return nil
}

func (t *Telegram) onTradeOpened(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.TradeOpenedPayload)
	if !ok {
		return nil
	}

	return t.notify(ctx, FormatTradeOpened(payload.Trade))
}

func (t *Telegram) onTradeClosed(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.TradeClosedPayload)
	if !ok {
		return nil
	}

	return t.notify(ctx, FormatTradeClosed(payload.Closed, payload.NewBalance))
}

func (t *Telegram) onPauseTriggered(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.PauseTriggeredPayload)
	if !ok {
		return nil
	}

	return t.notify(ctx, FormatPauseTriggered(payload))
}

func (t *Telegram) onPauseLifted(ctx context.Context, _ eventbus.Event) error {
	return t.notify(ctx, "<b>Global pause lifted</b>\nTrade execution stays off until it is resumed.")
}
