package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/logging"
	"github.com/gumwoo/fivlo/internal/persistence"
)

type senderStub struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *senderStub) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

type recordingNotifier struct {
	rewards int
	err     error
}

func (r *recordingNotifier) RewardIssued(context.Context, Reward) error {
	r.rewards++
	return r.err
}

func (r *recordingNotifier) ReminderDue(context.Context, Reminder) error {
	return r.err
}

func sampleReward(chatID *int64) Reward {
	return Reward{
		User: persistence.User{ID: "user-1", TelegramChatID: chatID},
		Entry: persistence.LedgerEntry{
			Amount:   1,
			Reason:   "task_completion",
			EntryDay: calendar.MustParse("2025-01-06"),
		},
		Balance: 3,
	}
}

func TestTelegramNotifier_RewardIssued(t *testing.T) {
	t.Parallel()

	chatID := int64(99)
	sender := &senderStub{}
	notifier := NewTelegramNotifierWithSender(sender)

	if err := notifier.RewardIssued(context.Background(), sampleReward(&chatID)); err != nil {
		t.Fatalf("RewardIssued returned error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.ChatID != chatID || !strings.Contains(msg.Text, "Balance: 3") {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("expected HTML parse mode, got %q", msg.ParseMode)
	}
}

func TestTelegramNotifier_SkipsUnlinkedUsers(t *testing.T) {
	t.Parallel()

	sender := &senderStub{}
	notifier := NewTelegramNotifierWithSender(sender)

	if err := notifier.RewardIssued(context.Background(), sampleReward(nil)); err != nil {
		t.Fatalf("RewardIssued returned error: %v", err)
	}
	if err := notifier.ReminderDue(context.Background(), Reminder{User: persistence.User{ID: "user-1"}}); err != nil {
		t.Fatalf("ReminderDue returned error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no messages, got %d", len(sender.sent))
	}
}

func TestTelegramNotifier_WrapsSendErrors(t *testing.T) {
	t.Parallel()

	chatID := int64(5)
	sendErr := errors.New("network down")
	notifier := NewTelegramNotifierWithSender(&senderStub{err: sendErr})

	err := notifier.ReminderDue(context.Background(), Reminder{
		User:     persistence.User{ID: "user-1", TelegramChatID: &chatID},
		Reminder: persistence.Reminder{Title: "<Vitamins>", TimeOfDay: "08:00"},
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	t.Parallel()

	failing := &recordingNotifier{err: errors.New("fail")}
	ok := &recordingNotifier{}
	multi := Multi{failing, nil, ok, NewLogNotifier(logging.Discard())}

	err := multi.RewardIssued(context.Background(), sampleReward(nil))
	if !errors.Is(err, failing.err) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if failing.rewards != 1 || ok.rewards != 1 {
		t.Fatalf("expected every notifier to be called, got %d/%d", failing.rewards, ok.rewards)
	}
}
