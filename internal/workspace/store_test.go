package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/user/crewdesk/internal/state"
	"github.com/user/crewdesk/internal/types"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestOpenSeedsDefaults(t *testing.T) {
	s, err := Open(state.NewFileStore(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	agents := s.Agents()
	if len(agents) != 7 {
		t.Fatalf("expected 7 default agents, got %d", len(agents))
	}
	if agents[0].Role != types.RoleManager {
		t.Errorf("expected manager first, got %s", agents[0].Role)
	}
	if len(s.Tasks()) != 0 || len(s.Knowledge()) != 0 {
		t.Error("expected empty board and knowledge pool")
	}
}

func TestOpenRecoversFromCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	fs := state.NewFileStore(dir)
	for _, name := range []string{state.AgentsFile, state.TasksFile, state.KnowledgeFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s, err := Open(fs)
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if len(s.Agents()) != 7 {
		t.Errorf("expected default roster after corruption")
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(state.NewFileStore(dir), WithClock(fixedClock()))
	if err != nil {
		t.Fatal(err)
	}

	task := types.Task{ID: "t-1", Title: "Launch post", Status: types.StatusBacklog, Priority: types.PriorityHigh}
	if err := s.AddTask(task); err != nil {
		t.Fatal(err)
	}
	if err := s.AddKnowledge(types.KnowledgeDocument{Name: "brand.md", Content: "Be bold.", Type: types.DocMD, Source: types.SourceUpload}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateAgent("agent-4", func(a *types.Agent) error {
		a.Name = "Leo (Video)"
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(state.NewFileStore(dir))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s.Tasks(), reopened.Tasks()); diff != "" {
		t.Errorf("tasks differ after restart (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Knowledge(), reopened.Knowledge()); diff != "" {
		t.Errorf("knowledge differs after restart (-want +got):\n%s", diff)
	}
	a, ok := reopened.Agent("agent-4")
	if !ok || a.Name != "Leo (Video)" {
		t.Errorf("expected renamed agent, got %+v", a)
	}
}

func TestUpdateTaskWorksOnCopy(t *testing.T) {
	s := New(nil)
	if err := s.AddTask(types.Task{ID: "t-1", Title: "A", Status: types.StatusTodo}); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	_, err := s.UpdateTask("t-1", func(tk *types.Task) error {
		tk.Title = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.Task("t-1")
	if got.Title != "A" {
		t.Errorf("failed update leaked: %q", got.Title)
	}

	if _, err := s.UpdateTask("missing", func(*types.Task) error { return nil }); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestAgentsAreCopies(t *testing.T) {
	s := New(nil)
	if err := s.AddAgentKnowledge("agent-1", types.KnowledgeDocument{Name: "a.txt", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	agents := s.Agents()
	agents[0].KnowledgeBase[0].Content = "mutated"
	agents[0].Name = "mutated"

	a, _ := s.Agent("agent-1")
	if a.Name == "mutated" || a.KnowledgeBase[0].Content == "mutated" {
		t.Error("caller mutation reached the store")
	}
}

func TestAgentKnowledge(t *testing.T) {
	s := New(nil, WithClock(fixedClock()))
	if err := s.AddAgentKnowledge("agent-3", types.KnowledgeDocument{Name: "guide.md", Content: "slides"}); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Agent("agent-3")
	if len(a.KnowledgeBase) != 1 || a.KnowledgeBase[0].ID == "" {
		t.Fatalf("expected stamped document, got %+v", a.KnowledgeBase)
	}
	if err := s.RemoveAgentKnowledge("agent-3", a.KnowledgeBase[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveAgentKnowledge("agent-3", "nope"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := s.AddAgentKnowledge("agent-99"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestUpsertKnowledgeByName(t *testing.T) {
	s := New(nil)
	if err := s.UpsertKnowledge(types.KnowledgeDocument{Name: "README.md", Content: "v1"}); err != nil {
		t.Fatal(err)
	}
	first := s.Knowledge()[0].ID
	if err := s.UpsertKnowledge(types.KnowledgeDocument{Name: "README.md", Content: "v2"}); err != nil {
		t.Fatal(err)
	}
	docs := s.Knowledge()
	if len(docs) != 1 || docs[0].Content != "v2" || docs[0].ID != first {
		t.Errorf("expected in-place replace, got %+v", docs)
	}
	if err := s.RemoveKnowledge("README.md"); err != nil {
		t.Fatal(err)
	}
	if len(s.Knowledge()) != 0 {
		t.Error("expected empty pool")
	}
}

func TestNotifications(t *testing.T) {
	s := New(nil)
	s.Notify("Task created", "first", types.CategoryInfo)
	s.Notify("Approved", "second", types.CategorySuccess)

	notes := s.Notifications()
	if len(notes) != 2 || notes[0].Message != "second" {
		t.Fatalf("expected newest first, got %+v", notes)
	}
	if s.UnreadCount() != 2 {
		t.Errorf("expected 2 unread, got %d", s.UnreadCount())
	}
	if n := s.MarkAllRead(); n != 2 {
		t.Errorf("expected 2 marked, got %d", n)
	}
	if n := s.MarkAllRead(); n != 0 {
		t.Errorf("second mark-all-read should be a no-op, got %d", n)
	}
	if s.UnreadCount() != 0 {
		t.Error("expected none unread")
	}
}

func TestSubscribeOrder(t *testing.T) {
	s := New(nil)
	var (
		mu    sync.Mutex
		kinds []EventKind
	)
	unsub := s.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})

	s.AddTask(types.Task{ID: "t-1", Status: types.StatusBacklog})
	s.UpdateTask("t-1", func(tk *types.Task) error { tk.Status = types.StatusTodo; return nil })
	s.Notify("Task created", "x", types.CategoryInfo)
	s.MarkAllRead()
	s.AddMedia(types.GeneratedMedia{Type: types.MediaImage, URL: "data:image/png;base64,AA=="})

	unsub()
	s.Notify("ignored", "y", types.CategoryInfo)

	want := []EventKind{EventTaskAdded, EventTaskUpdated, EventNotification, EventNotificationsRead, EventMediaAdded}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("event order (-want +got):\n%s", diff)
	}
}

func TestMediaGallery(t *testing.T) {
	s := New(nil)
	a := s.AddMedia(types.GeneratedMedia{Type: types.MediaImage, Prompt: "a"})
	b := s.AddMedia(types.GeneratedMedia{Type: types.MediaVideo, Prompt: "b"})
	media := s.Media()
	if len(media) != 2 || media[0].ID != b.ID {
		t.Fatalf("expected newest first, got %+v", media)
	}
	got, err := s.MediaByID(a.ID)
	if err != nil || got.Prompt != "a" {
		t.Errorf("lookup failed: %+v %v", got, err)
	}
	if _, err := s.MediaByID("nope"); !errors.Is(err, ErrMediaNotFound) {
		t.Errorf("expected ErrMediaNotFound, got %v", err)
	}
}

func TestSetAgentsRejectsUnknownRole(t *testing.T) {
	s := New(nil)
	err := s.SetAgents([]types.Agent{{ID: "x", Name: "X", Role: "intern"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.Agents()) != 7 {
		t.Error("roster changed on rejected update")
	}
}
