// Package notify pushes trip outcomes to the user's channels. Delivery is
// best effort; a lost notification never fails the trip.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// Notifier delivers a message about a resolved trip.
type Notifier interface {
	TripResolved(ctx context.Context, trip *protocol.TripState) error
}

// Noop swallows notifications. Used when no channel is configured.
type Noop struct{}

func (Noop) TripResolved(context.Context, *protocol.TripState) error { return nil }

// Telegram sends outcome messages to a fixed chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: init bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram notifier authorized", "username", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) TripResolved(_ context.Context, trip *protocol.TripState) error {
	text := FormatTrip(trip)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	_, err := t.bot.Send(msg)
	if err != nil {
		// Fallback to plain text if HTML fails
		t.logger.Warn("HTML send failed, falling back to plain text", "error", err)
		msg.Text = stripTags(text)
		msg.ParseMode = ""
		_, err = t.bot.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}

// FormatTrip renders the outcome message for a terminal trip. Non-terminal
// trips render empty.
func FormatTrip(trip *protocol.TripState) string {
	switch trip.Phase {
	case protocol.TripComplete:
		d := trip.Deal
		if d == nil {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<b>Deal closed</b> for %s %s: ₹%.0f",
			trip.Request.Destination, trip.Request.Category, d.FinalPrice)
		if d.VendorName != "" {
			fmt.Fprintf(&b, " with %s", d.VendorName)
		}
		fmt.Fprintf(&b, " (%s)", d.VendorPhone)
		if d.StretchFlag {
			b.WriteString("\nNote: above target budget, within stretch.")
		}
		return b.String()

	case protocol.TripFailed:
		reason := trip.FailureReason
		if reason == "" {
			reason = "no deal reached"
		}
		return fmt.Sprintf("<b>Trip failed</b> for %s %s: %s",
			trip.Request.Destination, trip.Request.Category, reason)
	}
	return ""
}

func stripTags(s string) string {
	r := strings.NewReplacer("<b>", "", "</b>", "", "<i>", "", "</i>", "")
	return r.Replace(s)
}
