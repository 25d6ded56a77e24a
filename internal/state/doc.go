// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/crewdesk/internal/types"

// Compile-time interface compliance checks.
var _ types.Persister = (*FileStore)(nil)
var _ types.BlobStore = (*BlobStore)(nil)
