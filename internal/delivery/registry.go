// Package delivery fans workspace notifications out to external sinks.
package delivery

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/user/crewdesk/internal/types"
)

// Handler delivers a message to the sink named by target.
type Handler func(target, message string) error

// Registry routes messages to the appropriate handler based on the target
// prefix (e.g. "telegram:", "log:"). The longest matching prefix wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the target prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(target, message string) error {
	r.mu.RLock()
	var (
		best    string
		handler Handler
	)
	for prefix, h := range r.handlers {
		if strings.HasPrefix(target, prefix) && len(prefix) >= len(best) {
			best, handler = prefix, h
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return fmt.Errorf("no delivery handler for target: %s", target)
	}
	return handler(target, message)
}

// LogHandler writes messages to the structured log.
func LogHandler(target, message string) error {
	slog.Info("notification", "target", target, "message", message)
	return nil
}

// Format renders a notification as plain text.
func Format(n types.Notification) string {
	return fmt.Sprintf("[%s] %s\n%s", n.Category, n.Title, n.Message)
}
