// internal/types/models_test.go
package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestAgentRoleRejectsUnknown(t *testing.T) {
	var a Agent
	err := json.Unmarshal([]byte(`{"id":"x","name":"X","role":"wizard"}`), &a)
	if err == nil {
		t.Fatal("expected error for unknown role")
	}

	if err := json.Unmarshal([]byte(`{"id":"x","name":"X","role":"manager"}`), &a); err != nil {
		t.Fatal(err)
	}
	if a.Role != RoleManager {
		t.Errorf("expected manager, got %s", a.Role)
	}
}

func TestRolesAreValid(t *testing.T) {
	for _, r := range Roles() {
		if !r.Valid() {
			t.Errorf("role %s should be valid", r)
		}
		if r.Label() == string(r) {
			t.Errorf("role %s has no label", r)
		}
	}
	if len(Roles()) != 7 {
		t.Errorf("expected 7 roles, got %d", len(Roles()))
	}
}

func TestReviewableStatuses(t *testing.T) {
	cases := map[TaskStatus]bool{
		StatusBacklog:    false,
		StatusTodo:       false,
		StatusInProgress: false,
		StatusReview:     true,
		StatusScheduled:  true,
		StatusDone:       false,
	}
	for status, want := range cases {
		if got := status.Reviewable(); got != want {
			t.Errorf("%s.Reviewable() = %v, want %v", status, got, want)
		}
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestTaskSerialization(t *testing.T) {
	due := time.Date(2026, 3, 1, 10, 30, 0, 123000000, time.UTC)
	task := Task{
		ID:             NewTaskID(),
		Title:          "Launch post",
		Status:         StatusScheduled,
		Priority:       PriorityHigh,
		ScheduledDate:  &due,
		ApprovalStatus: ApprovalPending,
		CreatedAt:      time.Now(),
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Task
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.ScheduledDate.Equal(due) {
		t.Errorf("expected scheduled date %v, got %v", due, decoded.ScheduledDate)
	}
	if !decoded.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("expected created at %v, got %v", task.CreatedAt, decoded.CreatedAt)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&ModelInvocationError{Model: "gemini-2.5-flash", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("expected invocation error to unwrap to its cause")
	}

	var cfgErr *ConfigurationError
	if !errors.As(error(&ConfigurationError{Setting: "llm.api_key"}), &cfgErr) {
		t.Error("expected configuration error to match")
	}
	if cfgErr.Error() != "configuration: llm.api_key is not set" {
		t.Errorf("unexpected message %q", cfgErr.Error())
	}
}
