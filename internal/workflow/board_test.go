package workflow

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
)

type stubDistributor struct {
	assignments []Assignment
	err         error
	gotTasks    []types.Task
}

func (s *stubDistributor) DistributeBacklog(_ context.Context, tasks []types.Task, _ []types.Agent) ([]Assignment, error) {
	s.gotTasks = tasks
	return s.assignments, s.err
}

func newBoard(t *testing.T, opts ...Option) (*Board, *workspace.Store) {
	t.Helper()
	store := workspace.New(nil)
	return NewBoard(store, opts...), store
}

func inReview(t *testing.T, b *Board) types.Task {
	t.Helper()
	task, err := b.Create(NewTask{Title: "Launch carousel", ClientName: "Acme", ClientEmail: "ops@acme.test"})
	if err != nil {
		t.Fatal(err)
	}
	task, err = b.Move(task.ID, types.StatusReview)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func TestCreateDefaults(t *testing.T) {
	b, store := newBoard(t)

	task, err := b.Create(NewTask{Title: "  Weekly reel  "})
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != types.StatusBacklog || task.ApprovalStatus != types.ApprovalPending {
		t.Errorf("expected backlog/pending, got %s/%s", task.Status, task.ApprovalStatus)
	}
	if task.Title != "Weekly reel" || task.Priority != types.PriorityMedium {
		t.Errorf("unexpected title/priority: %q %s", task.Title, task.Priority)
	}
	if task.ClientName != DefaultClientName || task.ClientEmail != DefaultClientEmail {
		t.Errorf("expected default client, got %s <%s>", task.ClientName, task.ClientEmail)
	}

	notes := store.Notifications()
	if len(notes) != 1 || notes[0].Category != types.CategorySuccess {
		t.Errorf("expected one success notification, got %+v", notes)
	}
}

func TestCreateValidation(t *testing.T) {
	b, _ := newBoard(t)
	for name, in := range map[string]NewTask{
		"empty title":   {Title: " "},
		"bad priority":  {Title: "x", Priority: "urgent"},
		"bad channel":   {Title: "x", Channel: "myspace"},
		"unknown agent": {Title: "x", AssignedAgentID: "agent-99"},
	} {
		if _, err := b.Create(in); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestAssignMovesBacklogToTodo(t *testing.T) {
	b, _ := newBoard(t)
	task, _ := b.Create(NewTask{Title: "Script"})

	got, err := b.Assign(task.ID, "agent-4")
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedAgentID != "agent-4" || got.Status != types.StatusTodo {
		t.Errorf("unexpected task %+v", got)
	}

	b.Move(task.ID, types.StatusInProgress)
	got, _ = b.Assign(task.ID, "agent-5")
	if got.Status != types.StatusInProgress {
		t.Errorf("reassign should keep column, got %s", got.Status)
	}

	if _, err := b.Assign(task.ID, "agent-99"); !errors.Is(err, workspace.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestApprove(t *testing.T) {
	b, store := newBoard(t)
	task := inReview(t, b)
	store.MarkAllRead()
	before := len(store.Notifications())

	got, err := b.Approve(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ApprovalStatus != types.ApprovalApproved || got.Status != types.StatusDone {
		t.Errorf("expected approved/done, got %s/%s", got.ApprovalStatus, got.Status)
	}

	notes := store.Notifications()
	if len(notes)-before != 2 {
		t.Fatalf("expected exactly 2 new notifications, got %d", len(notes)-before)
	}
	// newest first
	if notes[1].Category != types.CategorySuccess || notes[0].Category != types.CategoryEmail {
		t.Errorf("unexpected categories %s, %s", notes[1].Category, notes[0].Category)
	}
	if !strings.Contains(notes[0].Message, "ops@acme.test") {
		t.Errorf("expected client email in %q", notes[0].Message)
	}
}

func TestReject(t *testing.T) {
	b, store := newBoard(t)
	task := inReview(t, b)
	before := len(store.Notifications())

	got, err := b.Reject(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ApprovalStatus != types.ApprovalRejected || got.Status != types.StatusTodo {
		t.Errorf("expected rejected/todo, got %s/%s", got.ApprovalStatus, got.Status)
	}

	notes := store.Notifications()
	if len(notes)-before != 2 {
		t.Fatalf("expected exactly 2 new notifications, got %d", len(notes)-before)
	}
	if notes[1].Category != types.CategoryWarning || notes[0].Category != types.CategoryEmail {
		t.Errorf("unexpected categories %s, %s", notes[1].Category, notes[0].Category)
	}
	if notes[0].Category == notes[1].Category {
		t.Error("expected different categories")
	}
}

func TestDecisionRequiresReview(t *testing.T) {
	b, store := newBoard(t)
	task, _ := b.Create(NewTask{Title: "Draft"})
	before := len(store.Notifications())

	if _, err := b.Approve(task.ID); !errors.Is(err, ErrNotReviewable) {
		t.Errorf("expected ErrNotReviewable, got %v", err)
	}
	if _, err := b.Reject(task.ID); !errors.Is(err, ErrNotReviewable) {
		t.Errorf("expected ErrNotReviewable, got %v", err)
	}
	if len(store.Notifications()) != before {
		t.Error("failed decision must not notify")
	}
	got, _ := store.Task(task.ID)
	if got.ApprovalStatus != types.ApprovalPending {
		t.Errorf("approval changed to %s", got.ApprovalStatus)
	}

	b.Move(task.ID, types.StatusScheduled)
	if _, err := b.Approve(task.ID); err != nil {
		t.Errorf("scheduled tasks are reviewable: %v", err)
	}
}

func TestMoveIsUnvalidated(t *testing.T) {
	b, store := newBoard(t)
	task, _ := b.Create(NewTask{Title: "Anything"})
	before := len(store.Notifications())

	for _, status := range []types.TaskStatus{types.StatusDone, types.StatusBacklog, types.StatusScheduled, types.StatusTodo} {
		got, err := b.Move(task.ID, status)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != status {
			t.Errorf("expected %s, got %s", status, got.Status)
		}
	}
	if len(store.Notifications()) != before {
		t.Error("moves must not notify")
	}
	if _, err := b.Move(task.ID, "archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestDistribute(t *testing.T) {
	dist := &stubDistributor{}
	b, store := newBoard(t, WithDistributor(dist))

	t1, _ := b.Create(NewTask{Title: "Reel", Description: "old"})
	t2, _ := b.Create(NewTask{Title: "Blog"})
	t3, _ := b.Create(NewTask{Title: "Caption"})
	t4, _ := b.Create(NewTask{Title: "Already started"})
	b.Move(t4.ID, types.StatusInProgress)

	dist.assignments = []Assignment{
		{TaskID: t1.ID, AgentID: "agent-4", Reason: "Leo writes video scripts"},
		{TaskID: t2.ID, AgentID: "agent-5", Reason: ""},
		{TaskID: t3.ID, AgentID: "agent-99", Reason: "unknown agent"},
		{TaskID: t4.ID, AgentID: "agent-6", Reason: "not in backlog"},
		{TaskID: "missing", AgentID: "agent-1"},
	}

	n, err := b.Distribute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 moved, got %d", n)
	}
	if len(dist.gotTasks) != 3 {
		t.Errorf("expected only backlog tasks sent, got %d", len(dist.gotTasks))
	}

	got1, _ := store.Task(t1.ID)
	if got1.Status != types.StatusTodo || got1.AssignedAgentID != "agent-4" || got1.Description != "Leo writes video scripts" {
		t.Errorf("unexpected t1 %+v", got1)
	}
	got2, _ := store.Task(t2.ID)
	if got2.Status != types.StatusTodo || got2.Description != "" {
		t.Errorf("unexpected t2 %+v", got2)
	}
	got3, _ := store.Task(t3.ID)
	if got3.Status != types.StatusBacklog || got3.AssignedAgentID != "" {
		t.Errorf("unknown agent must leave t3 untouched, got %+v", got3)
	}
	got4, _ := store.Task(t4.ID)
	if got4.Status != types.StatusInProgress || got4.AssignedAgentID != "" {
		t.Errorf("non-backlog task changed: %+v", got4)
	}

	notes := store.Notifications()
	if notes[0].Title != "Distribution complete" || !strings.HasPrefix(notes[0].Message, "2 ") {
		t.Errorf("unexpected notification %+v", notes[0])
	}
}

func TestDistributeFailure(t *testing.T) {
	dist := &stubDistributor{err: errors.New("provider down")}
	b, store := newBoard(t, WithDistributor(dist))
	b.Create(NewTask{Title: "Reel"})

	if _, err := b.Distribute(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	notes := store.Notifications()
	if notes[0].Title != "Error" || notes[0].Category != types.CategoryWarning {
		t.Errorf("expected warning notification, got %+v", notes[0])
	}

	b2, _ := newBoard(t)
	if _, err := b2.Distribute(context.Background()); !errors.Is(err, ErrNoDistributor) {
		t.Errorf("expected ErrNoDistributor, got %v", err)
	}
}

func TestApprovalLink(t *testing.T) {
	b, store := newBoard(t, WithPublicURL("https://crew.example/"))
	task := inReview(t, b)
	before := len(store.Notifications())

	link, err := b.RequestApproval(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "crew.example" || u.Path != "/approve/"+string(task.ID) {
		t.Errorf("unexpected link %s", link)
	}
	if u.Query().Get("client") != "Acme" {
		t.Errorf("expected client param, got %s", link)
	}
	if len(store.Notifications())-before != 2 {
		t.Error("expected link and email notifications")
	}

	if _, err := b.DecideWithToken(task.ID, "forged", "approve"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	got, err := b.DecideWithToken(task.ID, u.Query().Get("token"), "reject")
	if err != nil {
		t.Fatal(err)
	}
	if got.ApprovalStatus != types.ApprovalRejected {
		t.Errorf("expected rejected, got %s", got.ApprovalStatus)
	}
	if _, err := b.DecideWithToken(task.ID, u.Query().Get("token"), "approve"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token must be single use, got %v", err)
	}
}

func TestPromoteMedia(t *testing.T) {
	b, store := newBoard(t)
	m := store.AddMedia(types.GeneratedMedia{Type: types.MediaImage, URL: "data:image/png;base64,AA==", Prompt: "sunset over the bay"})

	task, err := b.PromoteMedia(m)
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "Media: sunset over the bay" || task.MediaURL != m.URL {
		t.Errorf("unexpected task %+v", task)
	}
	if task.Status != types.StatusBacklog || task.Priority != types.PriorityMedium {
		t.Errorf("unexpected status/priority %s/%s", task.Status, task.Priority)
	}
	if len(store.Media()) != 1 {
		t.Error("media must stay in the gallery")
	}

	got, err := b.AttachMedia(task.ID, "blob:abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.MediaURL != "blob:abc" {
		t.Errorf("expected blob:abc, got %s", got.MediaURL)
	}
}

func TestFilterStatsDue(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	b, _ := newBoard(t, WithClock(func() time.Time { return now }))

	a, _ := b.Create(NewTask{Title: "A", Channel: types.ChannelInstagram, AssignedAgentID: "agent-3", ScheduledDate: &past})
	c, _ := b.Create(NewTask{Title: "B", Channel: types.ChannelBlog, ScheduledDate: &future})
	b.Create(NewTask{Title: "C", Channel: types.ChannelInstagram})
	b.Move(a.ID, types.StatusScheduled)
	b.Move(c.ID, types.StatusScheduled)
	b.Approve(a.ID)
	b.Move(a.ID, types.StatusScheduled)

	if got := b.Filter(Filter{Channel: types.ChannelInstagram}); len(got) != 2 {
		t.Errorf("expected 2 instagram tasks, got %d", len(got))
	}
	if got := b.Filter(Filter{AgentID: "agent-3"}); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("unexpected agent filter %+v", got)
	}

	stats := b.Stats()
	if stats.Total != 3 || stats.Approved != 1 || stats.ByStatus[types.StatusScheduled] != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	due := b.Due(now)
	if len(due) != 1 || due[0].ID != a.ID {
		t.Errorf("expected only A due, got %+v", due)
	}
}
