package bot

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkeller/signalgram/internal/clients/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func okSnapshot(msg string) SnapshotFunc {
	return func(context.Context) (string, error) { return msg, nil }
}

func TestHandle_Status(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, okSnapshot("snapshot"), 0, 15*time.Minute, zap.NewNop())

	h.Handle(context.Background(), []telegram.Update{{ID: 1, ChatID: 7, Text: "/status"}})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(7), sender.sent[0].chatID)
	assert.Equal(t, "snapshot", sender.sent[0].text)
}

func TestHandle_StatusSnapshotFailure(t *testing.T) {
	sender := &fakeSender{}
	failing := func(context.Context) (string, error) { return "", errors.New("api down") }
	h := NewHandler(sender, failing, 0, 15*time.Minute, zap.NewNop())

	h.Handle(context.Background(), []telegram.Update{{ID: 1, ChatID: 7, Text: "/status"}})

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].text, "⚠️")
}

func TestHandle_Next(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, okSnapshot(""), 0, 15*time.Minute, zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 1, 2, 12, 7, 0, 0, time.UTC) }

	h.Handle(context.Background(), []telegram.Update{{ID: 1, ChatID: 7, Text: "/next"}})

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].text, "~8 min")
}

func TestHandle_HelpAndStart(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, okSnapshot(""), 0, 15*time.Minute, zap.NewNop())

	h.Handle(context.Background(), []telegram.Update{
		{ID: 1, ChatID: 7, Text: "/help"},
		{ID: 2, ChatID: 7, Text: "/start"},
	})

	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].text, "/status")
	assert.Equal(t, sender.sent[0].text, sender.sent[1].text)
}

func TestHandle_OwnerFilter(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, okSnapshot(""), 100, 15*time.Minute, zap.NewNop())

	h.Handle(context.Background(), []telegram.Update{
		{ID: 1, ChatID: 999, Text: "/status"}, // stranger, ignored
		{ID: 2, ChatID: 100, Text: "/help"},
	})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(100), sender.sent[0].chatID)
}

func TestHandle_UnknownCommandIgnored(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, okSnapshot(""), 0, 15*time.Minute, zap.NewNop())

	h.Handle(context.Background(), []telegram.Update{
		{ID: 1, ChatID: 7, Text: "/unknown"},
		{ID: 2, ChatID: 7, Text: "just chatting"},
	})

	assert.Empty(t, sender.sent)
}

func TestMinutesToNextRun(t *testing.T) {
	tests := []struct {
		name     string
		minute   int
		interval time.Duration
		want     int
	}{
		{name: "on the boundary rolls to the next one", minute: 0, interval: 15 * time.Minute, want: 15},
		{name: "mid window", minute: 7, interval: 15 * time.Minute, want: 8},
		{name: "just before boundary", minute: 14, interval: 15 * time.Minute, want: 1},
		{name: "five minute cadence", minute: 12, interval: 5 * time.Minute, want: 3},
		{name: "hourly falls back to the interval", minute: 30, interval: time.Hour, want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, 1, 2, 12, tt.minute, 0, 0, time.UTC)
			assert.Equal(t, tt.want, minutesToNextRun(now, tt.interval))
		})
	}
}
