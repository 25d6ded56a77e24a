// Package workflow implements the task board: creation, assignment, bulk
// distribution, client approval and free drag-moves between columns.
package workflow

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
)

var (
	// ErrNotReviewable is returned when an approval decision is taken on a
	// task outside the review-eligible columns.
	ErrNotReviewable = errors.New("task is not awaiting review")
	ErrInvalidToken  = errors.New("invalid approval token")
	ErrNoDistributor = errors.New("no distributor configured")
)

// Defaults applied to tasks created without client details.
const (
	DefaultClientName  = "Default Client"
	DefaultClientEmail = "approver@client.com"
)

// Assignment is one task-to-agent pairing proposed by a Distributor.
type Assignment struct {
	TaskID  types.TaskID  `json:"taskId"`
	AgentID types.AgentID `json:"agentId"`
	Reason  string        `json:"reason"`
}

// Distributor proposes assignments for backlog tasks.
type Distributor interface {
	DistributeBacklog(ctx context.Context, tasks []types.Task, roster []types.Agent) ([]Assignment, error)
}

// Board drives task transitions on top of the workspace store. Every
// transition is a single store mutation followed by its notifications.
type Board struct {
	store       *workspace.Store
	distributor Distributor
	publicURL   string
	now         func() time.Time
}

// Option configures a Board.
type Option func(*Board)

// WithDistributor sets the backend used by Distribute.
func WithDistributor(d Distributor) Option {
	return func(b *Board) { b.distributor = d }
}

// WithPublicURL sets the base URL used for approval links.
func WithPublicURL(u string) Option {
	return func(b *Board) { b.publicURL = strings.TrimRight(u, "/") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// NewBoard creates a Board over store.
func NewBoard(store *workspace.Store, opts ...Option) *Board {
	b := &Board{
		store:     store,
		publicURL: "http://localhost:8080",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewTask holds the user-supplied fields of a task.
type NewTask struct {
	Title           string
	Description     string
	Priority        types.Priority
	AssignedAgentID types.AgentID
	Channel         types.SocialChannel
	MediaURL        string
	ScheduledDate   *time.Time
	ClientName      string
	ClientEmail     string
}

// Create adds a task to the backlog with a pending approval.
func (b *Board) Create(in NewTask) (types.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return types.Task{}, errors.New("task title is required")
	}
	if in.Priority == "" {
		in.Priority = types.PriorityMedium
	}
	if !in.Priority.Valid() {
		return types.Task{}, fmt.Errorf("unknown priority: %s", in.Priority)
	}
	if in.Channel != "" && !in.Channel.Valid() {
		return types.Task{}, fmt.Errorf("unknown channel: %s", in.Channel)
	}
	if in.AssignedAgentID != "" {
		if _, ok := b.store.Agent(in.AssignedAgentID); !ok {
			return types.Task{}, fmt.Errorf("%w: %s", workspace.ErrAgentNotFound, in.AssignedAgentID)
		}
	}

	task := types.Task{
		ID:              types.NewTaskID(),
		Title:           title,
		Description:     in.Description,
		Status:          types.StatusBacklog,
		Priority:        in.Priority,
		AssignedAgentID: in.AssignedAgentID,
		Channel:         in.Channel,
		MediaURL:        in.MediaURL,
		ScheduledDate:   in.ScheduledDate,
		ApprovalStatus:  types.ApprovalPending,
		ClientName:      orDefault(in.ClientName, DefaultClientName),
		ClientEmail:     orDefault(in.ClientEmail, DefaultClientEmail),
		CreatedAt:       b.now(),
	}
	if err := b.store.AddTask(task); err != nil {
		return types.Task{}, err
	}
	b.store.Notify("Task created", fmt.Sprintf("%q added.", task.Title), types.CategorySuccess)
	slog.Info("task created", "task_id", task.ID, "title", task.Title)
	return task, nil
}

// Assign gives a task to an agent. A task still in the backlog moves to todo.
func (b *Board) Assign(id types.TaskID, agentID types.AgentID) (types.Task, error) {
	if _, ok := b.store.Agent(agentID); !ok {
		return types.Task{}, fmt.Errorf("%w: %s", workspace.ErrAgentNotFound, agentID)
	}
	return b.store.UpdateTask(id, func(t *types.Task) error {
		t.AssignedAgentID = agentID
		if t.Status == types.StatusBacklog {
			t.Status = types.StatusTodo
		}
		return nil
	})
}

// Distribute asks the distributor to assign every backlog task. Each
// proposed assignment is applied independently; tasks that left the
// backlog in the meantime, unknown tasks and unknown agents are skipped.
// It returns the number of tasks moved to todo.
func (b *Board) Distribute(ctx context.Context) (int, error) {
	if b.distributor == nil {
		return 0, ErrNoDistributor
	}

	backlog := b.Filter(Filter{Status: types.StatusBacklog})
	if len(backlog) == 0 {
		return 0, nil
	}

	assignments, err := b.distributor.DistributeBacklog(ctx, backlog, b.store.Agents())
	if err != nil {
		slog.Error("backlog distribution failed", "error", err)
		b.store.Notify("Error", "Automatic distribution failed.", types.CategoryWarning)
		return 0, fmt.Errorf("distribute backlog: %w", err)
	}

	moved := 0
	for _, a := range assignments {
		if _, ok := b.store.Agent(a.AgentID); !ok {
			slog.Warn("distribution proposed unknown agent", "task_id", a.TaskID, "agent", a.AgentID)
			continue
		}
		_, err := b.store.UpdateTask(a.TaskID, func(t *types.Task) error {
			if t.Status != types.StatusBacklog {
				return errSkip
			}
			t.AssignedAgentID = a.AgentID
			t.Status = types.StatusTodo
			if reason := strings.TrimSpace(a.Reason); reason != "" {
				t.Description = reason
			}
			return nil
		})
		switch {
		case err == nil:
			moved++
		case errors.Is(err, errSkip), errors.Is(err, workspace.ErrTaskNotFound):
		default:
			slog.Warn("apply assignment failed", "task_id", a.TaskID, "error", err)
		}
	}

	b.store.Notify("Distribution complete", fmt.Sprintf("%d tasks assigned to agents.", moved), types.CategorySuccess)
	return moved, nil
}

var errSkip = errors.New("skip")

// Approve records the client's approval and closes the task.
func (b *Board) Approve(id types.TaskID) (types.Task, error) {
	task, err := b.decide(id, types.ApprovalApproved, types.StatusDone)
	if err != nil {
		return types.Task{}, err
	}
	b.store.Notify("Approved", fmt.Sprintf("%q was approved by the client and moved to publication.", task.Title), types.CategorySuccess)
	b.store.Notify("Email sent", "Publication confirmation sent to "+task.ClientEmail, types.CategoryEmail)
	return task, nil
}

// Reject records a change request and sends the task back to todo.
func (b *Board) Reject(id types.TaskID) (types.Task, error) {
	task, err := b.decide(id, types.ApprovalRejected, types.StatusTodo)
	if err != nil {
		return types.Task{}, err
	}
	b.store.Notify("Adjustments requested", fmt.Sprintf("The client asked for changes on %q.", task.Title), types.CategoryWarning)
	b.store.Notify("Email received", fmt.Sprintf("Detailed feedback from %s received.", task.ClientName), types.CategoryEmail)
	return task, nil
}

func (b *Board) decide(id types.TaskID, approval types.ApprovalStatus, status types.TaskStatus) (types.Task, error) {
	task, err := b.store.UpdateTask(id, func(t *types.Task) error {
		if !t.Status.Reviewable() {
			return fmt.Errorf("%w: %s is in %s", ErrNotReviewable, t.ID, t.Status)
		}
		t.ApprovalStatus = approval
		t.Status = status
		t.ApprovalToken = ""
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}
	slog.Info("approval recorded", "task_id", id, "approval", approval)
	return task, nil
}

// Move puts a task in any column. Moves are not validated against the
// pipeline order and emit no notification.
func (b *Board) Move(id types.TaskID, status types.TaskStatus) (types.Task, error) {
	if !status.Valid() {
		return types.Task{}, fmt.Errorf("unknown task status: %s", status)
	}
	return b.store.UpdateTask(id, func(t *types.Task) error {
		t.Status = status
		return nil
	})
}

// RequestApproval mints a one-time token for the task and returns the link
// the client uses to approve or reject it.
func (b *Board) RequestApproval(id types.TaskID) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	task, err := b.store.UpdateTask(id, func(t *types.Task) error {
		t.ApprovalToken = token
		return nil
	})
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("client", task.ClientName)
	link := fmt.Sprintf("%s/approve/%s?%s", b.publicURL, url.PathEscape(string(task.ID)), q.Encode())

	b.store.Notify("Link generated", "External approval link created.", types.CategoryInfo)
	b.store.Notify("Email sent", "Approval request sent to "+task.ClientEmail, types.CategoryEmail)
	return link, nil
}

// DecideWithToken applies a client decision received through an approval
// link. decision is "approve" or "reject".
func (b *Board) DecideWithToken(id types.TaskID, token, decision string) (types.Task, error) {
	task, ok := b.store.Task(id)
	if !ok {
		return types.Task{}, fmt.Errorf("%w: %s", workspace.ErrTaskNotFound, id)
	}
	if task.ApprovalToken == "" || subtle.ConstantTimeCompare([]byte(task.ApprovalToken), []byte(token)) != 1 {
		return types.Task{}, ErrInvalidToken
	}
	switch decision {
	case "approve":
		return b.Approve(id)
	case "reject":
		return b.Reject(id)
	}
	return types.Task{}, fmt.Errorf("unknown decision: %s", decision)
}

// PromoteMedia turns a gallery item into a backlog task referencing it.
// The media and the task are stored independently.
func (b *Board) PromoteMedia(m types.GeneratedMedia) (types.Task, error) {
	return b.Create(NewTask{
		Title:    "Media: " + m.Prompt,
		Priority: types.PriorityMedium,
		MediaURL: m.URL,
	})
}

// AttachMedia replaces the media reference of a task.
func (b *Board) AttachMedia(id types.TaskID, locator string) (types.Task, error) {
	task, err := b.store.UpdateTask(id, func(t *types.Task) error {
		t.MediaURL = locator
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}
	b.store.Notify("Media updated", fmt.Sprintf("New media attached to %q.", task.Title), types.CategoryInfo)
	return task, nil
}

// Filter selects tasks. Zero-valued fields match everything.
type Filter struct {
	Status  types.TaskStatus
	AgentID types.AgentID
	Channel types.SocialChannel
}

func (f Filter) match(t types.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AgentID != "" && t.AssignedAgentID != f.AgentID {
		return false
	}
	if f.Channel != "" && t.Channel != f.Channel {
		return false
	}
	return true
}

// Filter returns the matching tasks in board order.
func (b *Board) Filter(f Filter) []types.Task {
	var out []types.Task
	for _, t := range b.store.Tasks() {
		if f.match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Stats summarises the board.
type Stats struct {
	Total    int                      `json:"total"`
	Approved int                      `json:"approved"`
	Rejected int                      `json:"rejected"`
	ByStatus map[types.TaskStatus]int `json:"by_status"`
}

func (b *Board) Stats() Stats {
	s := Stats{ByStatus: make(map[types.TaskStatus]int)}
	for _, t := range b.store.Tasks() {
		s.Total++
		s.ByStatus[t.Status]++
		switch t.ApprovalStatus {
		case types.ApprovalApproved:
			s.Approved++
		case types.ApprovalRejected:
			s.Rejected++
		}
	}
	return s
}

// Due returns scheduled tasks whose publication date is not after now.
func (b *Board) Due(now time.Time) []types.Task {
	var out []types.Task
	for _, t := range b.store.Tasks() {
		if t.Status == types.StatusScheduled && t.ScheduledDate != nil && !t.ScheduledDate.After(now) {
			out = append(out, t)
		}
	}
	return out
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
