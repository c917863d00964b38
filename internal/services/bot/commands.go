// Package bot routes incoming chat commands to their handlers.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkeller/signalgram/internal/clients/telegram"
)

const helpText = "🤖 Commands:\n" +
	"/status – current signal snapshot, right now\n" +
	"/next – when the next scheduled run comes\n" +
	"/help – this help\n"

// Sender delivers a message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// SnapshotFunc builds the current report on demand (for /status).
type SnapshotFunc func(ctx context.Context) (string, error)

// Handler processes command updates.
type Handler struct {
	sender   Sender
	snapshot SnapshotFunc
	// owner restricts handling to one chat when non-zero.
	owner    int64
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a command handler. interval is the scheduled run
// cadence, used to answer /next.
func NewHandler(sender Sender, snapshot SnapshotFunc, owner int64, interval time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		sender:   sender,
		snapshot: snapshot,
		owner:    owner,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes a batch of updates in order. Unknown commands and
// chats filtered by the owner check are skipped silently; each skipped
// update still counts as processed so the offset advances past it.
func (h *Handler) Handle(ctx context.Context, updates []telegram.Update) {
	for _, u := range updates {
		if h.owner != 0 && u.ChatID != h.owner {
			continue
		}
		h.handleCommand(ctx, u.ChatID, u.Text)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, text string) {
	cmd := strings.ToLower(strings.TrimSpace(text))

	switch {
	case strings.HasPrefix(cmd, "/status"):
		msg, err := h.snapshot(ctx)
		if err != nil {
			h.logger.Error("failed to build snapshot for /status", zap.Error(err))
			msg = "⚠️ Could not build the snapshot right now, try again later."
		}
		h.send(ctx, chatID, msg)

	case strings.HasPrefix(cmd, "/next"):
		mins := minutesToNextRun(h.now().UTC(), h.interval)
		h.send(ctx, chatID, fmt.Sprintf("⏱ Next scheduled run in ~%d min.", mins))

	case strings.HasPrefix(cmd, "/help"), strings.HasPrefix(cmd, "/start"):
		h.send(ctx, chatID, helpText)
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if err := h.sender.Send(ctx, chatID, text); err != nil {
		h.logger.Error("failed to send command reply",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}

// minutesToNextRun returns the minutes until the next run boundary.
// Runs align to wall-clock marks within the hour (:00, :15, :30, :45
// for the default 15m interval). Intervals of an hour or more fall
// back to the raw interval.
func minutesToNextRun(now time.Time, interval time.Duration) int {
	step := int(interval.Minutes())
	if step <= 0 {
		step = 15
	}
	if step >= 60 || 60%step != 0 {
		return step
	}

	m := now.Minute() % step
	remaining := (step - m) % step
	if remaining == 0 {
		remaining = step
	}
	return remaining
}
