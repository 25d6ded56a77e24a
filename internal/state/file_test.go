// internal/state/file_test.go
package state

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/user/crewdesk/internal/types"
)

func TestFileStore_LoadEmpty(t *testing.T) {
	store := NewFileStore(t.TempDir())

	agents, err := store.LoadAgents()
	if err != nil {
		t.Fatal(err)
	}
	if agents != nil {
		t.Errorf("expected nil roster, got %d agents", len(agents))
	}

	tasks, err := store.LoadTasks()
	if err != nil {
		t.Fatal(err)
	}
	if tasks != nil {
		t.Errorf("expected nil tasks, got %d", len(tasks))
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	modified := time.Date(2026, 1, 12, 8, 15, 30, 456000000, time.UTC)
	agents := []types.Agent{
		{
			ID:                "agent-1",
			Name:              "Sofia (Manager)",
			Role:              types.RoleManager,
			Model:             types.ModelPro,
			SystemInstruction: "Coordinate the team.",
			Description:       "Team lead",
			KnowledgeBase: []types.KnowledgeDocument{
				{ID: "doc-1", Name: "brand.md", Content: "# Voice\nWarm.", Type: types.DocMD, Source: types.SourceUpload, LastModified: modified},
			},
		},
		{ID: "agent-2", Name: "Leo (Script)", Role: types.RoleScript, Model: types.ModelFlash},
	}

	scheduled := time.Date(2026, 2, 3, 18, 0, 0, 789000000, time.FixedZone("BRT", -3*3600))
	tasks := []types.Task{
		{
			ID:              "task-1",
			Title:           "Launch reel",
			Description:     "Teaser for the launch",
			Status:          types.StatusScheduled,
			Priority:        types.PriorityHigh,
			AssignedAgentID: "agent-2",
			Channel:         types.ChannelInstagram,
			ScheduledDate:   &scheduled,
			ApprovalStatus:  types.ApprovalPending,
			ClientName:      "Acme",
			ClientEmail:     "ops@acme.test",
			CreatedAt:       time.Now(),
		},
		{ID: "task-2", Title: "Blog draft", Status: types.StatusBacklog, Priority: types.PriorityLow, ApprovalStatus: types.ApprovalPending, CreatedAt: modified},
	}

	if err := store.SaveAgents(agents); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveTasks(tasks); err != nil {
		t.Fatal(err)
	}

	gotAgents, err := store.LoadAgents()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(agents, gotAgents); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}

	gotTasks, err := store.LoadTasks()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tasks, gotTasks); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := os.WriteFile(store.Path(TasksFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.LoadTasks()
	var corrupt *types.PersistenceCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected PersistenceCorruptionError, got %v", err)
	}
	if corrupt.Path != store.Path(TasksFile) {
		t.Errorf("expected path %s, got %s", store.Path(TasksFile), corrupt.Path)
	}
}

func TestFileStore_UnknownRoleIsCorrupt(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := os.WriteFile(store.Path(AgentsFile), []byte(`[{"id":"a","name":"A","role":"intern"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.LoadAgents()
	var corrupt *types.PersistenceCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected PersistenceCorruptionError, got %v", err)
	}
}

func TestFileStore_NoTempFileLeft(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.SaveKnowledge([]types.KnowledgeDocument{{ID: "d", Name: "faq.txt", Content: "hi"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(store.Path(KnowledgeFile) + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be gone, stat err = %v", err)
	}

	docs, err := store.LoadKnowledge()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Name != "faq.txt" {
		t.Errorf("unexpected knowledge pool: %+v", docs)
	}
}
