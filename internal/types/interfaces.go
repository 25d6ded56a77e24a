// internal/types/interfaces.go
package types

import "context"

// Persister loads and saves the collections that survive a restart.
// Load methods return (nil, nil) when nothing has been stored yet.
type Persister interface {
	LoadAgents() ([]Agent, error)
	SaveAgents(agents []Agent) error
	LoadTasks() ([]Task, error)
	SaveTasks(tasks []Task) error
	LoadKnowledge() ([]KnowledgeDocument, error)
	SaveKnowledge(docs []KnowledgeDocument) error
}

// BlobStore keeps generated media payloads and hands back a locator.
type BlobStore interface {
	Put(ctx context.Context, data []byte, mimeType string) (string, error)
	Get(ctx context.Context, locator string) ([]byte, string, error)
}
