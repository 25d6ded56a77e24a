// Package scheduler raises reminders for scheduled publications.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/crewdesk/internal/types"
)

// DefaultSpec scans once a minute.
const DefaultSpec = "@every 1m"

// Board lists scheduled tasks that are due.
type Board interface {
	Due(now time.Time) []types.Task
}

// Notifier records a workspace notification.
type Notifier interface {
	Notify(title, message string, category types.Category) types.Notification
}

// Scheduler scans the board on a cron schedule and raises one "Publication
// due" notification per scheduled task whose date has passed.
type Scheduler struct {
	board  Board
	notify Notifier
	spec   string
	now    func() time.Time
	cron   *cron.Cron

	mu       sync.Mutex
	notified map[string]bool
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides time.Now for due checks.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler. An empty spec uses DefaultSpec.
func New(board Board, notify Notifier, spec string, opts ...Option) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	s := &Scheduler{
		board:    board,
		notify:   notify,
		spec:     spec,
		now:      time.Now,
		cron:     cron.New(cron.WithParser(cronParser)),
		notified: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the scan and starts the cron ticker.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Scan() }); err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", s.spec, err)
	}
	slog.Info("publication scan scheduled", "spec", s.spec)
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker and waits for a running scan.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Scan notifies about due tasks not seen before and returns how many
// notifications it raised. A task whose date changes is reported again.
func (s *Scheduler) Scan() int {
	due := s.board.Due(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	raised := 0
	for _, t := range due {
		key := string(t.ID) + "@" + t.ScheduledDate.UTC().Format(time.RFC3339)
		if s.notified[key] {
			continue
		}
		s.notified[key] = true
		s.notify.Notify("Publication due",
			fmt.Sprintf("%q is scheduled for %s.", t.Title, t.ScheduledDate.Format("2006-01-02 15:04")),
			types.CategoryInfo)
		slog.Info("publication due", "task_id", t.ID, "title", t.Title)
		raised++
	}
	return raised
}
