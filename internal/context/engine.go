// internal/context/engine.go
package context

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/pkg/llm"
)

// Engine assembles chat prompts and reports their approximate size.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
}

// New creates a context engine. model is used to select the tokenizer;
// Gemini models are unknown to tiktoken and fall back to cl100k_base,
// which is close enough for an estimate.
func New(model string) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{tokenizer: enc}, nil
}

// CountTokens returns the token estimate for a string. A nil engine falls
// back to four characters per token.
func (e *Engine) CountTokens(text string) int {
	if e == nil || e.tokenizer == nil {
		return (len(text) + 3) / 4
	}
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Prompt is an assembled chat turn ready for a provider.
type Prompt struct {
	System   string
	Messages []llm.Message
	Tokens   int
}

// BuildPrompt assembles the system context, the speaker-tagged history and
// the new utterance for one turn.
func (e *Engine) BuildPrompt(agent *types.Agent, history []types.Message, utterance string, global []types.KnowledgeDocument) *Prompt {
	system := BuildSystemContext(agent, global)

	messages := FormatHistory(history)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})

	tokens := e.CountTokens(system)
	for _, m := range messages {
		tokens += e.CountTokens(m.Content)
	}

	return &Prompt{
		System:   system,
		Messages: messages,
		Tokens:   tokens,
	}
}
