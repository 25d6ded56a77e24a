// Package router decides which agent answers a chat turn.
package router

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/user/crewdesk/internal/types"
)

// ErrEmptyRoster is returned when there is no agent to route to.
var ErrEmptyRoster = errors.New("roster is empty")

// Reason records which rule selected the target.
type Reason string

const (
	ReasonMention        Reason = "mention"
	ReasonTeamDefault    Reason = "team_default"
	ReasonTeamFallback   Reason = "team_fallback"
	ReasonDirect         Reason = "direct"
	ReasonDirectFallback Reason = "direct_fallback"
)

// Decision is the outcome of routing one utterance.
type Decision struct {
	Agent   types.Agent
	Reason  Reason
	Mention string
}

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Roster is an ordered, id-indexed view of the agents.
type Roster struct {
	agents []types.Agent
	byID   map[types.AgentID]int
}

// NewRoster indexes agents, keeping their order.
func NewRoster(agents []types.Agent) *Roster {
	r := &Roster{
		agents: agents,
		byID:   make(map[types.AgentID]int, len(agents)),
	}
	for i, a := range agents {
		if _, dup := r.byID[a.ID]; !dup {
			r.byID[a.ID] = i
		}
	}
	return r
}

// Len returns the number of agents.
func (r *Roster) Len() int { return len(r.agents) }

// Get returns the agent with the given id.
func (r *Roster) Get(id types.AgentID) (types.Agent, bool) {
	i, ok := r.byID[id]
	if !ok {
		return types.Agent{}, false
	}
	return r.agents[i], true
}

// FirstWithRole returns the first agent holding role.
func (r *Roster) FirstWithRole(role types.Role) (types.Agent, bool) {
	for _, a := range r.agents {
		if a.Role == role {
			return a, true
		}
	}
	return types.Agent{}, false
}

// MatchName returns the first agent whose name contains word, ignoring case.
// Matching is a plain substring test, so "@ana" also matches "Anabela".
func (r *Roster) MatchName(word string) (types.Agent, bool) {
	fold := cases.Fold()
	needle := fold.String(word)
	if needle == "" {
		return types.Agent{}, false
	}
	for _, a := range r.agents {
		if strings.Contains(fold.String(a.Name), needle) {
			return a, true
		}
	}
	return types.Agent{}, false
}

func (r *Roster) first() types.Agent { return r.agents[0] }

// FirstMention returns the word of the first @mention in text, if any.
func FirstMention(text string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Route picks the agent that answers utterance on channel.
//
// A matching @mention wins on any channel. Otherwise the team channel goes
// to the first manager (or the first agent when there is none) and a direct
// channel goes to its own agent.
func (r *Roster) Route(channel types.ChannelID, utterance string) (Decision, error) {
	if r.Len() == 0 {
		return Decision{}, ErrEmptyRoster
	}

	if word, ok := FirstMention(utterance); ok {
		if a, ok := r.MatchName(word); ok {
			return Decision{Agent: a, Reason: ReasonMention, Mention: word}, nil
		}
	}

	if channel.IsTeam() {
		if a, ok := r.FirstWithRole(types.RoleManager); ok {
			return Decision{Agent: a, Reason: ReasonTeamDefault}, nil
		}
		return Decision{Agent: r.first(), Reason: ReasonTeamFallback}, nil
	}

	if a, ok := r.Get(types.AgentID(channel)); ok {
		return Decision{Agent: a, Reason: ReasonDirect}, nil
	}
	return Decision{Agent: r.first(), Reason: ReasonDirectFallback}, nil
}

// Route is a convenience wrapper around NewRoster(agents).Route.
func Route(channel types.ChannelID, agents []types.Agent, utterance string) (Decision, error) {
	return NewRoster(agents).Route(channel, utterance)
}
