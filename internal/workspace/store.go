// Package workspace holds the application state shared by every surface:
// the roster, the global knowledge pool, the task board, notifications and
// the media gallery. All writes go through Store methods.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/user/crewdesk/internal/types"
)

var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrMediaNotFound    = errors.New("media not found")
)

// Store is the single writer of workspace state. Every mutation runs under
// one lock, persists the affected collection and then notifies subscribers
// in mutation order.
type Store struct {
	mu            sync.RWMutex
	agents        []types.Agent
	knowledge     []types.KnowledgeDocument
	tasks         []types.Task
	notifications []types.Notification
	media         []types.GeneratedMedia

	persist types.Persister
	now     func() time.Time

	// dispatchMu keeps event delivery in mutation order.
	dispatchMu sync.Mutex
	subsMu     sync.Mutex
	subs       map[int]func(Event)
	nextSub    int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an in-memory store seeded with the default roster. A nil
// persister keeps everything in memory.
func New(persist types.Persister, opts ...Option) *Store {
	s := &Store{
		agents:  DefaultAgents(),
		persist: persist,
		now:     time.Now,
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads the persisted collections. Corrupt files
// are logged and replaced by the defaults; other read errors are returned.
func Open(persist types.Persister, opts ...Option) (*Store, error) {
	s := New(persist, opts...)
	if persist == nil {
		return s, nil
	}

	agents, err := persist.LoadAgents()
	if err := recoverable(err, "agents"); err != nil {
		return nil, err
	}
	if len(agents) > 0 {
		s.agents = agents
	}

	tasks, err := persist.LoadTasks()
	if err := recoverable(err, "tasks"); err != nil {
		return nil, err
	}
	s.tasks = tasks

	docs, err := persist.LoadKnowledge()
	if err := recoverable(err, "knowledge"); err != nil {
		return nil, err
	}
	s.knowledge = docs

	return s, nil
}

func recoverable(err error, what string) error {
	if err == nil {
		return nil
	}
	var corrupt *types.PersistenceCorruptionError
	if errors.As(err, &corrupt) {
		slog.Warn("discarding corrupt state, using defaults", "collection", what, "path", corrupt.Path, "error", corrupt.Err)
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// Subscribe registers fn for every future event and returns a function
// that removes it. fn runs on the mutating goroutine and must not call
// back into mutating Store methods.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.subsMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// mutate runs fn under the write lock and publishes the events it returns
// once the lock is released.
func (s *Store) mutate(fn func() ([]Event, error)) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	events, err := fn()
	s.mu.Unlock()

	s.publish(events...)
	return err
}

func (s *Store) event(kind EventKind, id string) Event {
	return Event{Kind: kind, ID: id, At: s.now()}
}

// Agents returns a copy of the roster in order.
func (s *Store) Agents() []types.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAgents(s.agents)
}

// Agent returns the agent with the given id.
func (s *Store) Agent(id types.AgentID) (types.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.agentIndex(id)
	if i < 0 {
		return types.Agent{}, false
	}
	return cloneAgent(s.agents[i]), true
}

func (s *Store) agentIndex(id types.AgentID) int {
	return slices.IndexFunc(s.agents, func(a types.Agent) bool { return a.ID == id })
}

// SetAgents replaces the whole roster.
func (s *Store) SetAgents(agents []types.Agent) error {
	for _, a := range agents {
		if !a.Role.Valid() {
			return fmt.Errorf("agent %s: unknown role %q", a.ID, a.Role)
		}
	}
	return s.mutate(func() ([]Event, error) {
		s.agents = cloneAgents(agents)
		return []Event{s.event(EventAgentsChanged, "")}, s.saveAgents()
	})
}

// ResetAgents restores the default roster.
func (s *Store) ResetAgents() error {
	return s.SetAgents(DefaultAgents())
}

// UpdateAgent applies fn to a copy of the agent and stores the result.
func (s *Store) UpdateAgent(id types.AgentID, fn func(*types.Agent) error) (types.Agent, error) {
	var out types.Agent
	err := s.mutate(func() ([]Event, error) {
		i := s.agentIndex(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		a := cloneAgent(s.agents[i])
		if err := fn(&a); err != nil {
			return nil, err
		}
		if !a.Role.Valid() {
			return nil, fmt.Errorf("agent %s: unknown role %q", id, a.Role)
		}
		a.ID = id
		s.agents[i] = a
		out = cloneAgent(a)
		return []Event{s.event(EventAgentsChanged, string(id))}, s.saveAgents()
	})
	return out, err
}

// AddAgentKnowledge appends documents to an agent's private base.
func (s *Store) AddAgentKnowledge(id types.AgentID, docs ...types.KnowledgeDocument) error {
	_, err := s.UpdateAgent(id, func(a *types.Agent) error {
		a.KnowledgeBase = append(a.KnowledgeBase, s.stamp(docs)...)
		return nil
	})
	return err
}

// RemoveAgentKnowledge drops one document from an agent's private base.
func (s *Store) RemoveAgentKnowledge(id types.AgentID, docID types.DocumentID) error {
	_, err := s.UpdateAgent(id, func(a *types.Agent) error {
		i := slices.IndexFunc(a.KnowledgeBase, func(d types.KnowledgeDocument) bool { return d.ID == docID })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
		}
		a.KnowledgeBase = slices.Delete(a.KnowledgeBase, i, i+1)
		return nil
	})
	return err
}

// Knowledge returns a copy of the global knowledge pool.
func (s *Store) Knowledge() []types.KnowledgeDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.knowledge)
}

// AddKnowledge appends documents to the global pool.
func (s *Store) AddKnowledge(docs ...types.KnowledgeDocument) error {
	return s.mutate(func() ([]Event, error) {
		s.knowledge = append(s.knowledge, s.stamp(docs)...)
		return []Event{s.event(EventKnowledgeChanged, "")}, s.saveKnowledge()
	})
}

// UpsertKnowledge replaces the global document with the same name, or
// appends it when there is none.
func (s *Store) UpsertKnowledge(doc types.KnowledgeDocument) error {
	return s.mutate(func() ([]Event, error) {
		doc = s.stamp([]types.KnowledgeDocument{doc})[0]
		i := slices.IndexFunc(s.knowledge, func(d types.KnowledgeDocument) bool { return d.Name == doc.Name })
		if i < 0 {
			s.knowledge = append(s.knowledge, doc)
		} else {
			doc.ID = s.knowledge[i].ID
			s.knowledge[i] = doc
		}
		return []Event{s.event(EventKnowledgeChanged, string(doc.ID))}, s.saveKnowledge()
	})
}

// RemoveKnowledge drops a global document by id or by name.
func (s *Store) RemoveKnowledge(idOrName string) error {
	return s.mutate(func() ([]Event, error) {
		i := slices.IndexFunc(s.knowledge, func(d types.KnowledgeDocument) bool {
			return string(d.ID) == idOrName || d.Name == idOrName
		})
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, idOrName)
		}
		id := s.knowledge[i].ID
		s.knowledge = slices.Delete(s.knowledge, i, i+1)
		return []Event{s.event(EventKnowledgeChanged, string(id))}, s.saveKnowledge()
	})
}

// stamp fills in missing ids and timestamps.
func (s *Store) stamp(docs []types.KnowledgeDocument) []types.KnowledgeDocument {
	out := slices.Clone(docs)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = types.NewDocumentID()
		}
		if out[i].LastModified.IsZero() {
			out[i].LastModified = s.now()
		}
	}
	return out
}

// Tasks returns a copy of the board in creation order.
func (s *Store) Tasks() []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Task returns the task with the given id.
func (s *Store) Task(id types.TaskID) (types.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.taskIndex(id)
	if i < 0 {
		return types.Task{}, false
	}
	return s.tasks[i], true
}

func (s *Store) taskIndex(id types.TaskID) int {
	return slices.IndexFunc(s.tasks, func(t types.Task) bool { return t.ID == id })
}

// AddTask appends a task to the board.
func (s *Store) AddTask(task types.Task) error {
	return s.mutate(func() ([]Event, error) {
		if s.taskIndex(task.ID) >= 0 {
			return nil, fmt.Errorf("task already exists: %s", task.ID)
		}
		s.tasks = append(s.tasks, task)
		ev := s.event(EventTaskAdded, string(task.ID))
		ev.Task = &task
		return []Event{ev}, s.saveTasks()
	})
}

// UpdateTask applies fn to a copy of the task and stores the result. It
// returns the stored task; fn errors leave the board untouched.
func (s *Store) UpdateTask(id types.TaskID, fn func(*types.Task) error) (types.Task, error) {
	var out types.Task
	err := s.mutate(func() ([]Event, error) {
		i := s.taskIndex(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		t := s.tasks[i]
		if err := fn(&t); err != nil {
			return nil, err
		}
		t.ID = id
		s.tasks[i] = t
		out = t
		ev := s.event(EventTaskUpdated, string(id))
		ev.Task = &t
		return []Event{ev}, s.saveTasks()
	})
	return out, err
}

// Notify records a new unread notification, newest first.
func (s *Store) Notify(title, message string, category types.Category) types.Notification {
	n := types.Notification{
		ID:        types.NewNotificationID(),
		Title:     title,
		Message:   message,
		Category:  category,
		Timestamp: s.now(),
	}
	s.mutate(func() ([]Event, error) {
		s.notifications = slices.Insert(s.notifications, 0, n)
		ev := s.event(EventNotification, string(n.ID))
		ev.Notification = &n
		return []Event{ev}, nil
	})
	return n
}

// Notifications returns a copy of all notifications, newest first.
func (s *Store) Notifications() []types.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notifications)
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, note := range s.notifications {
		if !note.Read {
			n++
		}
	}
	return n
}

// MarkAllRead flags every notification as read and returns how many
// changed. Calling it again is a no-op.
func (s *Store) MarkAllRead() int {
	changed := 0
	s.mutate(func() ([]Event, error) {
		for i := range s.notifications {
			if !s.notifications[i].Read {
				s.notifications[i].Read = true
				changed++
			}
		}
		if changed == 0 {
			return nil, nil
		}
		return []Event{s.event(EventNotificationsRead, "")}, nil
	})
	return changed
}

// AddMedia appends an artifact to the gallery, newest first.
func (s *Store) AddMedia(m types.GeneratedMedia) types.GeneratedMedia {
	if m.ID == "" {
		m.ID = types.NewMediaID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	s.mutate(func() ([]Event, error) {
		s.media = slices.Insert(s.media, 0, m)
		return []Event{s.event(EventMediaAdded, string(m.ID))}, nil
	})
	return m
}

// Media returns the gallery, newest first.
func (s *Store) Media() []types.GeneratedMedia {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.media)
}

// MediaByID returns one gallery item.
func (s *Store) MediaByID(id types.MediaID) (types.GeneratedMedia, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.media {
		if m.ID == id {
			return m, nil
		}
	}
	return types.GeneratedMedia{}, fmt.Errorf("%w: %s", ErrMediaNotFound, id)
}

func (s *Store) saveAgents() error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.SaveAgents(s.agents); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	return nil
}

func (s *Store) saveTasks() error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.SaveTasks(s.tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

func (s *Store) saveKnowledge() error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.SaveKnowledge(s.knowledge); err != nil {
		return fmt.Errorf("save knowledge: %w", err)
	}
	return nil
}

func cloneAgent(a types.Agent) types.Agent {
	a.KnowledgeBase = slices.Clone(a.KnowledgeBase)
	return a
}

func cloneAgents(agents []types.Agent) []types.Agent {
	out := make([]types.Agent, len(agents))
	for i, a := range agents {
		out[i] = cloneAgent(a)
	}
	return out
}
