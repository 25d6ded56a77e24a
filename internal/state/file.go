// internal/state/file.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/crewdesk/internal/types"
)

// File names of the persisted collections under the data directory.
const (
	AgentsFile    = "agents.json"
	TasksFile     = "tasks.json"
	KnowledgeFile = "knowledge.json"
)

// FileStore persists the roster, the task list and the global knowledge
// pool as one JSON document each.
type FileStore struct {
	root string
	mu   sync.RWMutex
}

// NewFileStore creates a FileStore rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Path returns the full path of a collection file.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.root, name)
}

// LoadAgents returns the stored roster, or nil if none was saved.
func (s *FileStore) LoadAgents() ([]types.Agent, error) {
	var agents []types.Agent
	if err := s.load(AgentsFile, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// SaveAgents replaces the stored roster.
func (s *FileStore) SaveAgents(agents []types.Agent) error {
	return s.save(AgentsFile, agents)
}

// LoadTasks returns the stored task list, or nil if none was saved.
func (s *FileStore) LoadTasks() ([]types.Task, error) {
	var tasks []types.Task
	if err := s.load(TasksFile, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveTasks replaces the stored task list.
func (s *FileStore) SaveTasks(tasks []types.Task) error {
	return s.save(TasksFile, tasks)
}

// LoadKnowledge returns the stored global knowledge pool.
func (s *FileStore) LoadKnowledge() ([]types.KnowledgeDocument, error) {
	var docs []types.KnowledgeDocument
	if err := s.load(KnowledgeFile, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveKnowledge replaces the stored global knowledge pool.
func (s *FileStore) SaveKnowledge(docs []types.KnowledgeDocument) error {
	return s.save(KnowledgeFile, docs)
}

// load decodes a collection file into v. A missing file leaves v untouched;
// an unparseable one yields a PersistenceCorruptionError.
func (s *FileStore) load(name string, v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &types.PersistenceCorruptionError{Path: path, Err: err}
	}
	return nil
}

// save writes v to disk using atomic write (temp file + rename).
func (s *FileStore) save(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := s.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp %s: %w", name, err)
	}
	return nil
}
