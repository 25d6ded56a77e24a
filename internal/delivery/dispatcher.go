package delivery

import (
	"context"
	"log/slog"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
)

const queueSize = 64

// Subscriber is the part of the workspace store the dispatcher listens to.
type Subscriber interface {
	Subscribe(fn func(workspace.Event)) (unsubscribe func())
}

// Dispatcher forwards every new notification to a fixed set of targets.
// Store subscribers run on the mutating goroutine, so notifications are
// queued and delivered from Run.
type Dispatcher struct {
	reg     *Registry
	targets []string
	queue   chan types.Notification
}

// NewDispatcher creates a Dispatcher delivering to targets through reg.
func NewDispatcher(reg *Registry, targets ...string) *Dispatcher {
	return &Dispatcher{
		reg:     reg,
		targets: targets,
		queue:   make(chan types.Notification, queueSize),
	}
}

// Attach subscribes to notification events and returns the unsubscribe
// function.
func (d *Dispatcher) Attach(store Subscriber) func() {
	return store.Subscribe(func(ev workspace.Event) {
		if ev.Kind != workspace.EventNotification || ev.Notification == nil {
			return
		}
		select {
		case d.queue <- *ev.Notification:
		default:
			slog.Warn("notification delivery queue full, dropping", "title", ev.Notification.Title)
		}
	})
}

// Run delivers queued notifications until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			msg := Format(n)
			for _, target := range d.targets {
				if err := d.reg.Deliver(target, msg); err != nil {
					slog.Warn("notification delivery failed", "target", target, "error", err)
				}
			}
		}
	}
}
