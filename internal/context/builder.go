package context

import (
	"fmt"
	"strings"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/pkg/llm"
)

const (
	specializedHeader = "=== SPECIALIZED KNOWLEDGE BASE (HIGH PRIORITY) ===\n"
	specializedIntro  = "The following files belong to your own training and role. Treat them as your primary reference:\n\n"
	specializedFooter = "=== END OF SPECIALIZED KNOWLEDGE ===\n\n"
	globalHeader      = "=== COMPANY KNOWLEDGE BASE (GLOBAL) ===\n"
	globalIntro       = "General company information available to the whole team:\n\n"
	globalFooter      = "=== END OF GLOBAL KNOWLEDGE ===\n"
)

// BuildSystemContext merges an agent's instruction, its private documents
// and the global pool into one system context. Private documents always
// precede global ones and nothing is truncated.
func BuildSystemContext(agent *types.Agent, global []types.KnowledgeDocument) string {
	var b strings.Builder
	b.WriteString(agent.SystemInstruction)
	b.WriteString("\n\n")

	if len(agent.KnowledgeBase) > 0 {
		b.WriteString(specializedHeader)
		b.WriteString(specializedIntro)
		for _, doc := range agent.KnowledgeBase {
			fmt.Fprintf(&b, "--- FILE: %s (%s) ---\n%s\n\n", doc.Name, doc.Type, doc.Content)
		}
		b.WriteString(specializedFooter)
	}

	if len(global) > 0 {
		b.WriteString(globalHeader)
		b.WriteString(globalIntro)
		for _, doc := range global {
			fmt.Fprintf(&b, "--- SOURCE: %s (Type: %s | Origin: %s) ---\n%s\n\n", doc.Name, doc.Type, doc.Source, doc.Content)
		}
		b.WriteString(globalFooter)
	}

	return b.String()
}

// FormatHistory converts prior conversation turns into provider messages.
// Model turns authored by a persona are prefixed with "[Name]: " so the
// model can tell speakers apart in the team channel.
func FormatHistory(history []types.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		if msg.Thinking && msg.Text == "" {
			continue
		}
		role := llm.RoleUser
		if msg.Role == types.MessageModel {
			role = llm.RoleAssistant
		}
		text := msg.Text
		if msg.SenderName != "" {
			text = fmt.Sprintf("[%s]: %s", msg.SenderName, text)
		}
		out = append(out, llm.Message{Role: role, Content: text})
	}
	return out
}
