package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/user/crewdesk/internal/config"
	"github.com/user/crewdesk/internal/state"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workflow"
	"github.com/user/crewdesk/internal/workspace"
)

func TestRosterRoundTrip(t *testing.T) {
	agents := workspace.DefaultAgents()
	data, err := encodeRoster(agents)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "role: manager") {
		t.Errorf("expected wire role names in YAML:\n%s", data)
	}
	got, err := decodeRoster(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(agents, got); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRosterRejects(t *testing.T) {
	tests := map[string]string{
		"empty":        "agents: []\n",
		"missing name": "agents:\n  - id: a1\n    role: post\n",
		"bad role":     "agents:\n  - id: a1\n    name: X\n    role: intern\n",
		"bad model":    "agents:\n  - id: a1\n    name: X\n    role: post\n    model: gpt-1\n",
		"duplicate":    "agents:\n  - id: a1\n    name: X\n    role: post\n  - id: a1\n    name: Y\n    role: post\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeRoster([]byte(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeRosterDefaultsModel(t *testing.T) {
	got, err := decodeRoster([]byte("agents:\n  - id: a1\n    name: Nina\n    role: caption\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Model != types.ModelFlash {
		t.Errorf("expected default model, got %q", got[0].Model)
	}
}

func TestResolveTaskAndAgent(t *testing.T) {
	store := workspace.New(nil)
	board := workflow.NewBoard(store)
	task, err := board.Create(workflow.NewTask{Title: "Launch reel"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := resolveTask(store, string(task.ID)[:6])
	if err != nil || got.ID != task.ID {
		t.Errorf("prefix lookup: %v %+v", err, got)
	}
	if _, err := resolveTask(store, "zzz"); err == nil {
		t.Error("expected not found")
	}

	ag, err := resolveAgent(store, "@leo")
	if err != nil || ag.ID != "agent-4" {
		t.Errorf("name lookup: %v %+v", err, ag)
	}
	ag, err = resolveAgent(store, "agent-2")
	if err != nil || ag.ID != "agent-2" {
		t.Errorf("id lookup: %v %+v", err, ag)
	}
	if _, err := resolveAgent(store, "nobody"); err == nil {
		t.Error("expected not found")
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-03-01")
	if err != nil || d.Year() != 2026 || d.Month() != time.March || d.Day() != 1 {
		t.Errorf("date only: %v %v", d, err)
	}
	d, err = parseDate("2026-03-01T10:00:00Z")
	if err != nil || d.Hour() != 10 {
		t.Errorf("rfc3339: %v %v", d, err)
	}
	if d, err := parseDate(""); d != nil || err != nil {
		t.Errorf("empty should be nil, got %v %v", d, err)
	}
	if _, err := parseDate("next tuesday"); err == nil {
		t.Error("expected error")
	}
}

func TestRenderBoard(t *testing.T) {
	store := workspace.New(nil)
	board := workflow.NewBoard(store)
	if _, err := board.Create(workflow.NewTask{Title: "Carousel draft", Priority: types.PriorityHigh, AssignedAgentID: "agent-3"}); err != nil {
		t.Fatal(err)
	}
	out := renderBoard(store.Tasks(), store.Agents())
	for _, want := range []string{"backlog (1)", "done (0)", "Carousel draft", "@Clara"} {
		if !strings.Contains(out, want) {
			t.Errorf("board missing %q:\n%s", want, out)
		}
	}
}

func TestPersistMedia(t *testing.T) {
	blobs := state.NewBlobStore(t.TempDir())
	ctx := context.Background()

	loc, err := persistMedia(ctx, blobs, "data:image/png;base64,iVBORw0KGgo=")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(loc, state.BlobScheme) {
		t.Fatalf("expected blob locator, got %q", loc)
	}
	data, mime, err := blobs.Get(ctx, loc)
	if err != nil || mime != "image/png" || len(data) == 0 {
		t.Errorf("stored payload: %v %q %d", err, mime, len(data))
	}

	same, err := persistMedia(ctx, blobs, loc)
	if err != nil || same != loc {
		t.Errorf("blob locators pass through, got %q %v", same, err)
	}
}

func TestDaemonClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/notifications/read":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			w.Write([]byte(`{"marked":3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"no such thing"}`))
		}
	}))
	defer ts.Close()

	cfg := config.Default()
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = strings.TrimPrefix(ts.URL, "http://")
	c, err := newDaemonClient(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var resp struct {
		Marked int `json:"marked"`
	}
	if err := c.post(context.Background(), "/api/notifications/read", &resp); err != nil || resp.Marked != 3 {
		t.Errorf("post: %v %+v", err, resp)
	}
	err = c.get(context.Background(), "/api/missing", &resp)
	if err == nil || !strings.Contains(err.Error(), "no such thing") {
		t.Errorf("expected daemon error, got %v", err)
	}

	cfg.HTTP.Enabled = false
	if _, err := newDaemonClient(cfg); err == nil {
		t.Error("expected error when the HTTP API is disabled")
	}
}
