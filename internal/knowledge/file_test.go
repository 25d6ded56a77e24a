package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/user/crewdesk/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReadFileTypes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		want types.DocType
	}{
		{"notes.txt", types.DocText},
		{"brand.MD", types.DocMD},
		{"calendar.csv", types.DocCSV},
		{"config.json", types.DocJSON},
		{"brief.eml", types.DocEmail},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.name)
		if err := os.WriteFile(path, []byte("olá "+tt.name), 0o644); err != nil {
			t.Fatal(err)
		}
		doc, err := ReadFile(path)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if doc.Type != tt.want || doc.Source != types.SourceUpload || doc.Name != tt.name {
			t.Errorf("%s: unexpected doc %+v", tt.name, doc)
		}
		if doc.Content != "olá "+tt.name {
			t.Errorf("%s: content %q", tt.name, doc.Content)
		}
		if doc.ID == "" || doc.LastModified.IsZero() {
			t.Errorf("%s: expected id and timestamp", tt.name)
		}
	}
}

func TestReadFileRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "deck.pdf")
	os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644)
	if _, err := ReadFile(pdf); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for pdf, got %v", err)
	}

	bad := filepath.Join(dir, "bad.txt")
	os.WriteFile(bad, []byte{0xff, 0xfe, 0x00}, 0o644)
	if _, err := ReadFile(bad); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for invalid UTF-8, got %v", err)
	}
}
