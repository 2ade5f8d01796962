package notify

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the subset of *tgbotapi.BotAPI used for delivery.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends notices to the user's linked Telegram chat.
// Users without a chat ID are skipped.
type TelegramNotifier struct {
	sender MessageSender
}

// NewTelegramNotifier authorizes a bot with token.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return NewTelegramNotifierWithSender(api), nil
}

// NewTelegramNotifierWithSender wraps an existing sender.
func NewTelegramNotifierWithSender(sender MessageSender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender}
}

func (n *TelegramNotifier) RewardIssued(ctx context.Context, reward Reward) error {
	if reward.User.TelegramChatID == nil {
		return nil
	}
	text := fmt.Sprintf("🪙 <b>+%d coin</b> for %s on %s\nBalance: %d",
		reward.Entry.Amount,
		html.EscapeString(reasonLabel(reward.Entry.Reason)),
		reward.Entry.EntryDay,
		reward.Balance,
	)
	return n.send(ctx, *reward.User.TelegramChatID, text)
}

func (n *TelegramNotifier) ReminderDue(ctx context.Context, reminder Reminder) error {
	if reminder.User.TelegramChatID == nil {
		return nil
	}
	text := fmt.Sprintf("⏰ <b>%s</b> (%s)", html.EscapeString(reminder.Reminder.Title), reminder.Reminder.TimeOfDay)
	return n.send(ctx, *reminder.User.TelegramChatID, text)
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

func reasonLabel(reason string) string {
	switch reason {
	case "task_completion":
		return "finishing today's tasks"
	case "pomodoro_completion":
		return "today's focus session"
	case "reminder_completion":
		return "today's reminders"
	default:
		return reason
	}
}
