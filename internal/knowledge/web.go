package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/crewdesk/internal/types"
)

const (
	maxPageBytes = 5 << 20
	maxPageChars = 200000
)

// Web imports HTML pages as markdown documents.
type Web struct {
	client *http.Client
}

// NewWeb creates a web page importer.
func NewWeb() *Web {
	return &Web{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Import fetches rawURL and converts the page to markdown.
func (w *Web) Import(ctx context.Context, rawURL string) (types.KnowledgeDocument, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.KnowledgeDocument{}, fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return types.KnowledgeDocument{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "crewdesk/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return types.KnowledgeDocument{}, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.KnowledgeDocument{}, fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return types.KnowledgeDocument{}, fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return types.KnowledgeDocument{}, fmt.Errorf("convert to markdown: %w", err)
	}
	if len(md) > maxPageChars {
		md = md[:maxPageChars] + "\n\n[Content truncated]"
	}

	return FromText(pageName(u), md, types.DocMD, types.SourceWeb), nil
}

// pageName derives a document name such as "example.com_blog_post.md".
func pageName(u *url.URL) string {
	p := strings.Trim(path.Clean("/"+u.Path), "/")
	name := u.Host
	if p != "" {
		name += "_" + strings.ReplaceAll(p, "/", "_")
	}
	return strings.TrimSuffix(name, ".html") + ".md"
}
