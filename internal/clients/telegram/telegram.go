// Package telegram wraps the Telegram Bot API for the two operations the
// bot performs: sending HTML reports and fetching command updates.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkeller/signalgram/pkg/retrier"
)

// ChunkLimit is the largest message body sent in one piece. Telegram
// caps messages at 4096 characters; the margin leaves room for the
// part prefix and HTML entities.
const ChunkLimit = 3500

// API is the subset of tgbotapi.BotAPI the client uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Update is one incoming chat message relevant to command handling.
type Update struct {
	ID     int
	ChatID int64
	Text   string
}

// Client sends messages and polls updates.
type Client struct {
	api    API
	send   *retrier.Retrier
	poll   *retrier.Retrier
	logger *zap.Logger
}

// New authorizes against the Bot API with the given token.
func New(token string, logger *zap.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to authorize telegram bot")
	}
	return NewWithAPI(api, logger), nil
}

// NewWithAPI wraps an existing API implementation. Used by tests.
func NewWithAPI(api API, logger *zap.Logger) *Client {
	return &Client{
		api: api,
		// sends retry only on 429/409 rejections, honoring Retry-After
		send: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(2*time.Second),
			retrier.WithRetryIf(func(err error) bool {
				_, ok := retryableSendError(err)
				return ok
			}),
			retrier.WithServerWait(func(err error) time.Duration {
				after, _ := retryableSendError(err)
				return after
			}),
		),
		// update polls retry any transient failure
		poll: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(time.Second),
		),
		logger: logger,
	}
}

// Send delivers the text to the chat with HTML parse mode. Texts over
// ChunkLimit are split into numbered parts, order preserved. Requests
// rejected with 429 or 409 are retried with backoff, honoring the
// Retry-After hint when Telegram provides one.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	for _, part := range Chunk(text, ChunkLimit) {
		if err := c.sendPart(ctx, chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendPart(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	err := c.send.Do(ctx, func(ctx context.Context) error {
		_, sendErr := c.api.Send(msg)
		if after, ok := retryableSendError(sendErr); ok {
			c.logger.Warn("telegram send rejected, retrying",
				zap.Int64("chat_id", chatID),
				zap.Duration("retry_after", after),
				zap.Error(sendErr))
		}
		return sendErr
	})
	return errors.Wrap(err, "failed to send telegram message")
}

// Updates fetches pending updates after the given offset. Offset
// semantics follow getUpdates: pass last processed id + 1. Updates
// without a message body still advance the returned id.
func (c *Client) Updates(ctx context.Context, offset int) ([]Update, int, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = 1

	raw, err := retrier.DoWithData(c.poll, ctx, func(ctx context.Context) ([]tgbotapi.Update, error) {
		return c.api.GetUpdates(cfg)
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to fetch telegram updates")
	}

	maxID := 0
	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		if u.UpdateID > maxID {
			maxID = u.UpdateID
		}

		msg := u.Message
		if msg == nil {
			msg = u.EditedMessage
		}
		if msg == nil || msg.Chat == nil {
			continue
		}

		updates = append(updates, Update{
			ID:     u.UpdateID,
			ChatID: msg.Chat.ID,
			Text:   msg.Text,
		})
	}

	return updates, maxID, nil
}

// retryableSendError reports whether the error is a 429/409 rejection
// and extracts the server's Retry-After hint.
func retryableSendError(err error) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return 0, false
	}
	if tgErr.Code != 429 && tgErr.Code != 409 {
		return 0, false
	}
	return time.Duration(tgErr.RetryAfter) * time.Second, true
}

// Chunk splits text into parts no longer than limit characters. Parts
// are split on line boundaries where possible and carry a "Part i/n"
// prefix when there is more than one.
func Chunk(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		} else {
			// prefer breaking at the last newline inside the window
			cut := n
			for i := n - 1; i > n/2; i-- {
				if runes[i] == '\n' {
					cut = i
					break
				}
			}
			n = cut
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
		for len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}

	if len(parts) == 1 {
		return parts
	}

	for i := range parts {
		parts[i] = fmt.Sprintf("Part %d/%d\n%s", i+1, len(parts), parts[i])
	}
	return parts
}
