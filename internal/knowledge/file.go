// Package knowledge turns files, GitHub repositories and web pages into
// knowledge documents.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/user/crewdesk/internal/types"
)

// ErrUnsupportedFormat is returned for files that are not plain text.
var ErrUnsupportedFormat = errors.New("unsupported file format: provide extracted text")

// maxFileSize bounds a single imported file.
const maxFileSize = 10 << 20

var extTypes = map[string]types.DocType{
	".txt":      types.DocText,
	".text":     types.DocText,
	".md":       types.DocMD,
	".markdown": types.DocMD,
	".csv":      types.DocCSV,
	".json":     types.DocJSON,
	".eml":      types.DocEmail,
}

// TypeForName returns the document type for a file name.
func TypeForName(name string) (types.DocType, error) {
	ext := strings.ToLower(filepath.Ext(name))
	t, ok := extTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return t, nil
}

// FromText builds a document from content already in memory.
func FromText(name, content string, docType types.DocType, source types.DocSource) types.KnowledgeDocument {
	return types.KnowledgeDocument{
		ID:      types.NewDocumentID(),
		Name:    name,
		Content: content,
		Type:    docType,
		Source:  source,
	}
}

// ReadFile imports a local text file as an uploaded document.
func ReadFile(path string) (types.KnowledgeDocument, error) {
	name := filepath.Base(path)
	docType, err := TypeForName(name)
	if err != nil {
		return types.KnowledgeDocument{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return types.KnowledgeDocument{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.Size() > maxFileSize {
		return types.KnowledgeDocument{}, fmt.Errorf("%s is larger than %d bytes", name, maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.KnowledgeDocument{}, fmt.Errorf("read %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		return types.KnowledgeDocument{}, fmt.Errorf("%w: %s is not UTF-8 text", ErrUnsupportedFormat, name)
	}

	doc := FromText(name, string(data), docType, types.SourceUpload)
	doc.LastModified = info.ModTime()
	return doc, nil
}
