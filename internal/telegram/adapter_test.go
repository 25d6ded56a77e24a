package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/crewdesk/internal/conversation"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workflow"
	"github.com/user/crewdesk/internal/workspace"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	failMD   bool
	updates  chan tgbotapi.Update
	stopped  bool
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok && b.failMD && m.ParseMode != "" {
		return tgbotapi.Message{}, errors.New("can't parse entities")
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeChat struct {
	channel types.ChannelID
	err     error
}

func (c *fakeChat) Send(_ context.Context, channel types.ChannelID, text string, _ ...conversation.SendOption) (types.Message, error) {
	c.channel = channel
	if c.err != nil {
		return types.Message{}, c.err
	}
	return types.Message{SenderName: "Sofia (Lead)", Text: "re: " + text}, nil
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestSplitMessageKeepsRunes(t *testing.T) {
	long := "a" + strings.Repeat("ç", 3000)
	for i, p := range splitMessage(long) {
		if !utf8.ValidString(p) {
			t.Errorf("part %d is not valid UTF-8", i)
		}
		if len(p) > maxTelegramMessage {
			t.Errorf("part %d too long: %d", i, len(p))
		}
	}
}

func TestChannelAndTarget(t *testing.T) {
	if got := Channel(67890); got != "team:telegram:67890" || !got.IsTeam() {
		t.Errorf("unexpected channel %q", got)
	}
	if got := Target(-100); got != "telegram:-100" {
		t.Errorf("unexpected target %q", got)
	}
}

func TestHandleMessageRoutesToTeamChannel(t *testing.T) {
	bot := &fakeBot{}
	chat := &fakeChat{}
	a := NewWithBot(bot, chat, workspace.New(nil), nil, nil)

	a.handleMessage(context.Background(), textMessage(42, "plan the week"))

	if chat.channel != "team:telegram:42" {
		t.Errorf("unexpected channel %q", chat.channel)
	}
	texts := bot.texts()
	if len(texts) != 1 || texts[0] != "*Sofia (Lead)*\nre: plan the week" {
		t.Errorf("unexpected replies %q", texts)
	}
}

func TestHandleMessageBusy(t *testing.T) {
	bot := &fakeBot{}
	a := NewWithBot(bot, &fakeChat{err: conversation.ErrChannelBusy}, workspace.New(nil), nil, nil)

	a.handleMessage(context.Background(), textMessage(1, "again"))
	if texts := bot.texts(); len(texts) != 1 || !strings.HasPrefix(texts[0], "Still working") {
		t.Errorf("unexpected replies %q", texts)
	}
}

func TestCommands(t *testing.T) {
	bot := &fakeBot{}
	store := workspace.New(nil)
	board := workflow.NewBoard(store)
	if _, err := board.Create(workflow.NewTask{Title: "Reel"}); err != nil {
		t.Fatal(err)
	}
	a := NewWithBot(bot, &fakeChat{}, store, board, nil)

	a.handleMessage(context.Background(), textMessage(1, "/agents"))
	a.handleMessage(context.Background(), textMessage(1, "/board"))
	a.handleMessage(context.Background(), textMessage(1, "/image a fox"))
	a.handleMessage(context.Background(), textMessage(1, "/nope"))

	texts := bot.texts()
	if len(texts) != 4 {
		t.Fatalf("expected 4 replies, got %d: %q", len(texts), texts)
	}
	if !strings.Contains(texts[0], "Sofia (Lead) (manager)") {
		t.Errorf("agents reply missing roster: %q", texts[0])
	}
	if !strings.HasPrefix(texts[1], "Tasks: 1") || !strings.Contains(texts[1], "backlog: 1") {
		t.Errorf("unexpected board reply %q", texts[1])
	}
	if texts[2] != "Image generation is not available." {
		t.Errorf("unexpected image reply %q", texts[2])
	}
	if !strings.HasPrefix(texts[3], "Unknown command") {
		t.Errorf("unexpected reply %q", texts[3])
	}
}

func TestDeliverFallsBackToPlainText(t *testing.T) {
	bot := &fakeBot{failMD: true}
	a := NewWithBot(bot, &fakeChat{}, workspace.New(nil), nil, nil)

	if err := a.Deliver("telegram:55", "[info] Link_generated"); err != nil {
		t.Fatal(err)
	}
	bot.mu.Lock()
	m := bot.sent[0].(tgbotapi.MessageConfig)
	bot.mu.Unlock()
	if m.ChatID != 55 || m.ParseMode != "" {
		t.Errorf("expected plain message to chat 55, got %+v", m)
	}

	if err := a.Deliver("telegram:abc", "x"); err == nil {
		t.Error("expected error for invalid target")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 1)}
	chat := &fakeChat{}
	a := NewWithBot(bot, chat, workspace.New(nil), nil, nil)

	bot.updates <- tgbotapi.Update{Message: textMessage(7, "hi")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Start(ctx)
		close(done)
	}()

	for len(bot.texts()) == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if !bot.stopped {
		t.Error("expected StopReceivingUpdates")
	}
	if chat.channel != "team:telegram:7" {
		t.Errorf("unexpected channel %q", chat.channel)
	}
}
