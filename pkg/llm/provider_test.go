package llm

import (
	"context"
	"testing"
)

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, req *Request) (*Response, error)
	StreamFunc   func(ctx context.Context, req *Request) (<-chan Delta, error)
}

func (m *MockProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &Response{Content: "mock response"}, nil
}

func (m *MockProvider) Stream(ctx context.Context, req *Request) (<-chan Delta, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	ch := make(chan Delta, 1)
	ch <- Delta{Content: "mock stream"}
	close(ch)
	return ch, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{}
	ctx := context.Background()
	req := &Request{Model: "test", Messages: []Message{{Role: RoleUser, Content: "test"}}}

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty response")
	}

	stream, err := provider.Stream(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	delta := <-stream
	if delta.Content == "" {
		t.Error("expected non-empty delta")
	}
	if _, ok := <-stream; ok {
		t.Error("expected stream to be closed")
	}
}
