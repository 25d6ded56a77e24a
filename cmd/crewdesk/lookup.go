package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
)

// resolveTask accepts a full task id or a unique prefix of one.
func resolveTask(store *workspace.Store, arg string) (types.Task, error) {
	if t, ok := store.Task(types.TaskID(arg)); ok {
		return t, nil
	}
	var found []types.Task
	for _, t := range store.Tasks() {
		if strings.HasPrefix(string(t.ID), arg) {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return types.Task{}, fmt.Errorf("task not found: %s", arg)
	case 1:
		return found[0], nil
	default:
		return types.Task{}, fmt.Errorf("task id %q is ambiguous (%d matches)", arg, len(found))
	}
}

// resolveAgent accepts an agent id or a case-insensitive part of its name.
func resolveAgent(store *workspace.Store, arg string) (types.Agent, error) {
	if a, ok := store.Agent(types.AgentID(arg)); ok {
		return a, nil
	}
	needle := strings.ToLower(strings.TrimPrefix(arg, "@"))
	for _, a := range store.Agents() {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return a, nil
		}
	}
	return types.Agent{}, fmt.Errorf("agent not found: %s", arg)
}

// parseDate accepts YYYY-MM-DD, YYYY-MM-DD HH:MM (local time) or RFC 3339.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339)", s)
}
