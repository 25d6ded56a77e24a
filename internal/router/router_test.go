package router

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/user/crewdesk/internal/types"
)

func roster() []types.Agent {
	return []types.Agent{
		{ID: "agent-1", Name: "Sofia", Role: types.RoleManager},
		{ID: "agent-2", Name: "Lucas", Role: types.RolePlanner},
		{ID: "agent-3", Name: "Anabela", Role: types.RoleCarousel},
		{ID: "agent-4", Name: "Leo", Role: types.RoleScript},
		{ID: "agent-7", Name: "Ana", Role: types.RoleSpreadsheet},
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name      string
		channel   types.ChannelID
		utterance string
		wantID    types.AgentID
		wantWhy   Reason
	}{
		{"mention on team channel", types.TeamChannel, "@leo write a hook", "agent-4", ReasonMention},
		{"mention overrides direct channel", "agent-2", "hey @Sofia can you check", "agent-1", ReasonMention},
		{"mention is case insensitive", "agent-2", "@LUCAS plan this", "agent-2", ReasonMention},
		{"partial name matches", types.TeamChannel, "@sof status?", "agent-1", ReasonMention},
		{"first mention only", types.TeamChannel, "@leo and @lucas", "agent-4", ReasonMention},
		{"substring first match wins", types.TeamChannel, "@ana the numbers", "agent-3", ReasonMention},
		{"unmatched mention falls through on team", types.TeamChannel, "@nobody hi", "agent-1", ReasonTeamDefault},
		{"unmatched mention falls through on direct", "agent-4", "@nobody hi", "agent-4", ReasonDirect},
		{"team default is manager", types.TeamChannel, "what's next?", "agent-1", ReasonTeamDefault},
		{"scoped team channel", types.NewTeamChannel("telegram", "9"), "hello", "agent-1", ReasonTeamDefault},
		{"direct channel", "agent-7", "update the sheet", "agent-7", ReasonDirect},
		{"unknown direct channel", "agent-99", "hi", "agent-1", ReasonDirectFallback},
		{"email is not a mention", "agent-2", "mail me at bob@leo", "agent-4", ReasonMention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Route(tt.channel, roster(), tt.utterance)
			if err != nil {
				t.Fatal(err)
			}
			if d.Agent.ID != tt.wantID {
				t.Errorf("expected %s, got %s", tt.wantID, d.Agent.ID)
			}
			if d.Reason != tt.wantWhy {
				t.Errorf("expected reason %s, got %s", tt.wantWhy, d.Reason)
			}
		})
	}
}

func TestRouteWithoutManager(t *testing.T) {
	agents := roster()[1:]
	d, err := Route(types.TeamChannel, agents, "anyone?")
	if err != nil {
		t.Fatal(err)
	}
	if d.Agent.ID != "agent-2" || d.Reason != ReasonTeamFallback {
		t.Errorf("expected fallback to first member, got %s (%s)", d.Agent.ID, d.Reason)
	}
}

func TestRouteEmptyRoster(t *testing.T) {
	_, err := Route(types.TeamChannel, nil, "@sofia hi")
	if !errors.Is(err, ErrEmptyRoster) {
		t.Fatalf("expected ErrEmptyRoster, got %v", err)
	}
}

func TestMentionBeatsChannelForEveryMember(t *testing.T) {
	agents := []types.Agent{
		{ID: "a", Name: "Sofia", Role: types.RoleManager},
		{ID: "b", Name: "Lucas", Role: types.RolePlanner},
		{ID: "c", Name: "Clara", Role: types.RoleCarousel},
	}
	channels := []types.ChannelID{types.TeamChannel, "a", "b", "c"}

	for _, target := range agents {
		for _, ch := range channels {
			d, err := Route(ch, agents, "ping @"+target.Name+" please")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(target, d.Agent); diff != "" {
				t.Errorf("channel %s: wrong target (-want +got):\n%s", ch, diff)
			}
		}
	}
}

func TestFirstMention(t *testing.T) {
	if _, ok := FirstMention("no mentions here"); ok {
		t.Error("expected no mention")
	}
	word, ok := FirstMention("cc @Bia_2, @Davi")
	if !ok || word != "Bia_2" {
		t.Errorf("expected Bia_2, got %q", word)
	}
}
