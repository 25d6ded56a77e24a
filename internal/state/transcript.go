// internal/state/transcript.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/crewdesk/internal/types"
)

// TranscriptStore is a JSONL-backed append-only log of completed chat
// messages, one file per channel under transcripts/<channel>.jsonl.
type TranscriptStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.ChannelID]*sync.Mutex
}

// NewTranscriptStore creates a file-backed TranscriptStore rooted at the given directory.
func NewTranscriptStore(root string) *TranscriptStore {
	return &TranscriptStore{
		root:  root,
		locks: make(map[types.ChannelID]*sync.Mutex),
	}
}

// getLock returns the per-channel mutex, creating one if it doesn't exist.
func (s *TranscriptStore) getLock(channel types.ChannelID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[channel]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[channel] = lock
	return lock
}

func (s *TranscriptStore) path(channel types.ChannelID) string {
	name := strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(string(channel))
	return filepath.Join(s.root, "transcripts", name+".jsonl")
}

// Append adds a message to its channel's transcript.
func (s *TranscriptStore) Append(_ context.Context, msg types.Message) error {
	lock := s.getLock(msg.Channel)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(msg.Channel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcripts dir: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Tail returns the last N messages of a channel. Lines that fail to parse
// are skipped so a torn write never hides the rest of the transcript.
func (s *TranscriptStore) Tail(_ context.Context, channel types.ChannelID, limit int) ([]types.Message, error) {
	lock := s.getLock(channel)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(s.path(channel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var msgs []types.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var msg types.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
