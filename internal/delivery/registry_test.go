package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var gotTarget, gotMsg string
	reg.Register("test:", func(target, message string) error {
		gotTarget = target
		gotMsg = message
		return nil
	})

	err := reg.Deliver("test:123", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTarget != "test:123" {
		t.Errorf("expected target %q, got %q", "test:123", gotTarget)
	}
	if gotMsg != "hello" {
		t.Errorf("expected message %q, got %q", "hello", gotMsg)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Deliver("unknown:123", "hello")
	if err == nil {
		t.Fatal("expected error for unregistered prefix, got nil")
	}
}

func TestRegistryLongestPrefix(t *testing.T) {
	reg := NewRegistry()

	var generic, specific int
	reg.Register("telegram:", func(string, string) error {
		generic++
		return nil
	})
	reg.Register("telegram:ops:", func(string, string) error {
		specific++
		return nil
	})

	reg.Deliver("telegram:ops:1", "a")
	reg.Deliver("telegram:42", "b")

	if generic != 1 || specific != 1 {
		t.Errorf("expected one call each, got generic=%d specific=%d", generic, specific)
	}
}

func TestFormat(t *testing.T) {
	got := Format(types.Notification{Title: "Approved", Message: "Post approved.", Category: types.CategorySuccess})
	if got != "[success] Approved\nPost approved." {
		t.Errorf("unexpected format %q", got)
	}
}

func TestDispatcherForwardsNotifications(t *testing.T) {
	reg := NewRegistry()
	var mu sync.Mutex
	got := map[string][]string{}
	record := func(target, message string) error {
		mu.Lock()
		defer mu.Unlock()
		got[target] = append(got[target], message)
		return nil
	}
	reg.Register("telegram:", record)
	reg.Register("log:", record)

	store := workspace.New(nil)
	d := NewDispatcher(reg, "telegram:99", "log:")
	detach := d.Attach(store)
	defer detach()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	store.Notify("Task created", "Reel script", types.CategorySuccess)
	store.MarkAllRead()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got["telegram:99"]) + len(got["log:"])
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got["telegram:99"]) != 1 || len(got["log:"]) != 1 {
		t.Fatalf("expected one delivery per target, got %v", got)
	}
	if got["log:"][0] != "[success] Task created\nReel script" {
		t.Errorf("unexpected message %q", got["log:"][0])
	}
}
