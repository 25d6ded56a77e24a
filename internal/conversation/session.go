// Package conversation keeps per-channel chat transcripts and runs one
// streamed model turn per user message.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/crewdesk/internal/gateway"
	"github.com/user/crewdesk/internal/metrics"
	"github.com/user/crewdesk/internal/router"
	"github.com/user/crewdesk/internal/state"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
	"github.com/user/crewdesk/pkg/llm"
)

// ErrChannelBusy is returned when a turn is already in flight on a channel.
var ErrChannelBusy = errors.New("a reply is already in progress on this channel")

// historyLoad is how many transcript lines are restored for a channel.
const historyLoad = 200

// Streamer starts a streamed chat turn.
type Streamer interface {
	StreamChat(ctx context.Context, req gateway.ChatRequest) (<-chan llm.Delta, error)
}

// Session holds the transcripts of every channel.
type Session struct {
	store       *workspace.Store
	chat        Streamer
	transcripts *state.TranscriptStore
	metrics     *metrics.Metrics
	now         func() time.Time

	mu       sync.Mutex
	history  map[types.ChannelID][]types.Message
	loaded   map[types.ChannelID]bool
	inflight map[types.ChannelID]bool
}

// Option configures a Session.
type Option func(*Session)

// WithTranscripts persists completed messages and restores them on first use
// of a channel.
func WithTranscripts(ts *state.TranscriptStore) Option {
	return func(s *Session) { s.transcripts = ts }
}

// WithMetrics counts turns by routing reason.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a Session that reads agents and knowledge from store.
func New(store *workspace.Store, chat Streamer, opts ...Option) *Session {
	s := &Session{
		store:    store,
		chat:     chat,
		now:      time.Now,
		history:  make(map[types.ChannelID][]types.Message),
		loaded:   make(map[types.ChannelID]bool),
		inflight: make(map[types.ChannelID]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sendOptions struct {
	onChunk    func(string)
	onComplete func(types.Message)
}

// SendOption customises a single Send.
type SendOption func(*sendOptions)

// WithOnChunk is called with each fragment as it arrives.
func WithOnChunk(fn func(string)) SendOption {
	return func(o *sendOptions) { o.onChunk = fn }
}

// WithOnComplete is called with the final model message.
func WithOnComplete(fn func(types.Message)) SendOption {
	return func(o *sendOptions) { o.onComplete = fn }
}

// Send appends the user's message, routes it, and streams the chosen
// agent's reply into a placeholder message. Provider failures are written
// into the reply as a diagnostic and do not return an error.
func (s *Session) Send(ctx context.Context, channel types.ChannelID, text string, opts ...SendOption) (types.Message, error) {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Message{}, errors.New("message text is required")
	}

	if err := s.acquire(ctx, channel); err != nil {
		return types.Message{}, err
	}
	defer s.release(channel)

	user := types.Message{
		ID:        types.NewMessageID(),
		Channel:   channel,
		Role:      types.MessageUser,
		Text:      text,
		Timestamp: s.now(),
	}
	prior := s.append(user)
	s.persist(ctx, user)

	decision, err := router.Route(channel, s.store.Agents(), text)
	if err != nil {
		return types.Message{}, fmt.Errorf("route message: %w", err)
	}
	agent := decision.Agent
	slog.Debug("turn routed", "channel", channel, "agent", agent.Name, "reason", decision.Reason)
	s.metrics.ChatTurn(string(decision.Reason))

	reply := types.Message{
		ID:         types.NewMessageID(),
		Channel:    channel,
		Role:       types.MessageModel,
		SenderName: agent.Name,
		Timestamp:  s.now(),
		Thinking:   true,
	}
	s.append(reply)

	stream, err := s.chat.StreamChat(ctx, gateway.ChatRequest{
		Agent:     agent,
		History:   prior,
		Utterance: text,
		Knowledge: s.store.Knowledge(),
	})
	if err == nil {
		err = s.consume(stream, reply.ID, channel, o.onChunk)
	}
	if err != nil {
		slog.Error("chat turn failed", "channel", channel, "agent", agent.Name, "error", err)
		s.update(channel, reply.ID, func(m *types.Message) {
			m.Text += fmt.Sprintf("\n\n[ERROR: failed to process with model %s. Check the API key.]", agent.Model)
			m.Thinking = false
		})
	}
	s.update(channel, reply.ID, func(m *types.Message) { m.Thinking = false })

	final, _ := s.message(channel, reply.ID)
	s.persist(ctx, final)
	if o.onComplete != nil {
		o.onComplete(final)
	}
	return final, nil
}

// consume applies fragments to the placeholder in arrival order.
func (s *Session) consume(stream <-chan llm.Delta, id types.MessageID, channel types.ChannelID, onChunk func(string)) error {
	for d := range stream {
		if d.Err != nil {
			// Drain so the producer can exit.
			for range stream {
			}
			return d.Err
		}
		if d.Content == "" {
			continue
		}
		s.update(channel, id, func(m *types.Message) {
			m.Text += d.Content
			m.Thinking = false
		})
		if onChunk != nil {
			onChunk(d.Content)
		}
	}
	return nil
}

// History returns a copy of a channel's transcript.
func (s *Session) History(ctx context.Context, channel types.ChannelID) []types.Message {
	s.restore(ctx, channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.history[channel]...)
}

// Busy reports whether a turn is in flight on channel.
func (s *Session) Busy(channel types.ChannelID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[channel]
}

func (s *Session) acquire(ctx context.Context, channel types.ChannelID) error {
	s.restore(ctx, channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[channel] {
		return ErrChannelBusy
	}
	s.inflight[channel] = true
	return nil
}

func (s *Session) release(channel types.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, channel)
}

// restore loads a channel's transcript the first time it is touched.
func (s *Session) restore(ctx context.Context, channel types.ChannelID) {
	s.mu.Lock()
	if s.loaded[channel] || s.transcripts == nil {
		s.loaded[channel] = true
		s.mu.Unlock()
		return
	}
	s.loaded[channel] = true
	s.mu.Unlock()

	msgs, err := s.transcripts.Tail(ctx, channel, historyLoad)
	if err != nil {
		slog.Warn("transcript unavailable", "channel", channel, "error", err)
		return
	}
	s.mu.Lock()
	s.history[channel] = append(msgs, s.history[channel]...)
	s.mu.Unlock()
}

// append adds msg and returns the messages that preceded it.
func (s *Session) append(msg types.Message) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := append([]types.Message(nil), s.history[msg.Channel]...)
	s.history[msg.Channel] = append(s.history[msg.Channel], msg)
	return prior
}

func (s *Session) update(channel types.ChannelID, id types.MessageID, fn func(*types.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.history[channel]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == id {
			fn(&msgs[i])
			return
		}
	}
}

func (s *Session) message(channel types.ChannelID, id types.MessageID) (types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.history[channel] {
		if m.ID == id {
			return m, true
		}
	}
	return types.Message{}, false
}

func (s *Session) persist(ctx context.Context, msg types.Message) {
	if s.transcripts == nil {
		return
	}
	if err := s.transcripts.Append(ctx, msg); err != nil {
		slog.Warn("transcript append failed", "channel", msg.Channel, "error", err)
	}
}
