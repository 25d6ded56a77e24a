// Package telegram exposes the team channel through a Telegram bot. Each
// chat gets its own team channel.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/crewdesk/internal/conversation"
	"github.com/user/crewdesk/internal/gateway"
	"github.com/user/crewdesk/internal/studio"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workflow"
)

const (
	maxTelegramMessage = 4096
	imageWait          = 2 * time.Minute
	targetPrefix       = "telegram:"
)

// Bot is the part of the Telegram API the adapter uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Chat runs one conversation turn.
type Chat interface {
	Send(ctx context.Context, channel types.ChannelID, text string, opts ...conversation.SendOption) (types.Message, error)
}

// Workspace provides the roster and board views for commands.
type Workspace interface {
	Agents() []types.Agent
}

// Imager queues image generations.
type Imager interface {
	SubmitImage(req gateway.ImageRequest) (*studio.Job, error)
}

// Adapter bridges Telegram to the conversation session.
type Adapter struct {
	bot   Bot
	chat  Chat
	ws    Workspace
	board *workflow.Board
	image Imager
	wg    sync.WaitGroup
}

// New creates a Telegram adapter from a bot token.
func New(token string, chat Chat, ws Workspace, board *workflow.Board, image Imager) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	slog.Info("telegram bot authorised", "username", bot.Self.UserName)
	return NewWithBot(bot, chat, ws, board, image), nil
}

// NewWithBot creates an adapter around an existing bot client. board and
// image may be nil, which disables their commands.
func NewWithBot(bot Bot, chat Chat, ws Workspace, board *workflow.Board, image Imager) *Adapter {
	return &Adapter{bot: bot, chat: chat, ws: ws, board: board, image: image}
}

// Start long-polls for updates until ctx is done. Turns run one at a time
// per update; image deliveries finish before Start returns.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	defer a.wg.Wait()

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// Channel returns the team channel for a chat.
func Channel(chatID int64) types.ChannelID {
	return types.NewTeamChannel("telegram", strconv.FormatInt(chatID, 10))
}

// Target returns the delivery target for a chat.
func Target(chatID int64) string {
	return targetPrefix + strconv.FormatInt(chatID, 10)
}

// Deliver sends a message to a "telegram:<chat>" target. It is registered
// with the delivery registry.
func (a *Adapter) Deliver(target, message string) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(target, targetPrefix), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram target %q: %w", target, err)
	}
	return a.sendResponse(id, message)
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	reply, err := a.chat.Send(ctx, Channel(chatID), msg.Text)
	switch {
	case errors.Is(err, conversation.ErrChannelBusy):
		a.sendResponse(chatID, "Still working on your last message, one moment.")
	case err != nil:
		slog.Error("telegram turn failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	default:
		a.sendResponse(chatID, fmt.Sprintf("*%s*\n%s", reply.SenderName, reply.Text))
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		a.sendResponse(chatID, "Hello! This chat is connected to your content team. "+
			"Write a message to talk to the lead, or mention someone with @name.\n"+
			"Commands: /agents, /board, /image <prompt>")

	case "agents":
		var sb strings.Builder
		for _, ag := range a.ws.Agents() {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", ag.Name, ag.Role, ag.Description)
		}
		a.sendResponse(chatID, strings.TrimSpace(sb.String()))

	case "board":
		if a.board == nil {
			a.sendResponse(chatID, "The board is not available.")
			return
		}
		a.sendResponse(chatID, boardSummary(a.board.Stats()))

	case "image":
		a.handleImage(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /agents, /board, /image")
	}
}

func (a *Adapter) handleImage(ctx context.Context, chatID int64, prompt string) {
	if a.image == nil {
		a.sendResponse(chatID, "Image generation is not available.")
		return
	}
	if prompt == "" {
		a.sendResponse(chatID, "Usage: /image <prompt>")
		return
	}
	job, err := a.image.SubmitImage(gateway.ImageRequest{Prompt: prompt, AspectRatio: "1:1"})
	if err != nil {
		slog.Error("image submit failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Could not queue the image.")
		return
	}
	a.sendResponse(chatID, "Generating your image...")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		wctx, cancel := context.WithTimeout(ctx, imageWait)
		defer cancel()
		media, err := job.Wait(wctx)
		if err != nil {
			a.sendResponse(chatID, fmt.Sprintf("Image generation failed: %v", err))
			return
		}
		a.sendPhoto(chatID, media)
	}()
}

func (a *Adapter) sendPhoto(chatID int64, media types.GeneratedMedia) {
	img, err := gateway.DecodeImage(media.URL)
	if err != nil {
		slog.Error("decode generated image", "media_id", media.ID, "error", err)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.png", Bytes: img.Data})
	photo.Caption = media.Prompt
	if _, err := a.bot.Send(photo); err != nil {
		slog.Error("send photo error", "chat_id", chatID, "error", err)
	}
}

func boardSummary(s workflow.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tasks: %d (approved %d, rejected %d)", s.Total, s.Approved, s.Rejected)
	for _, st := range types.Statuses() {
		if n := s.ByStatus[st]; n > 0 {
			fmt.Fprintf(&sb, "\n%s: %d", st, n)
		}
	}
	return sb.String()
}

func (a *Adapter) sendResponse(chatID int64, text string) error {
	var last error
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message error", "chat_id", chatID, "error", err)
				last = err
			}
		}
	}
	return last
}

// splitMessage cuts text into Telegram-sized parts without splitting runes.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := min(maxTelegramMessage, len(text))
		for end < len(text) && end > 0 && !utf8RuneStart(text[end]) {
			end--
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
