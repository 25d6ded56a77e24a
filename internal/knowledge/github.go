package knowledge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/crewdesk/internal/types"
)

// ErrInvalidRepo is returned for repository references without an owner.
var ErrInvalidRepo = errors.New("invalid repository: use owner/repo")

const (
	githubAPI        = "https://api.github.com"
	recentIssues     = 5
	issueBodyPreview = 200
)

// GitHub imports public repository context through the REST API.
type GitHub struct {
	token   string
	baseURL string
	client  *http.Client
}

// GitHubOption configures a GitHub importer.
type GitHubOption func(*GitHub)

// WithGitHubToken authenticates requests, raising rate limits and allowing
// private repositories.
func WithGitHubToken(token string) GitHubOption {
	return func(g *GitHub) { g.token = token }
}

// WithGitHubBaseURL points the importer at another API root.
func WithGitHubBaseURL(u string) GitHubOption {
	return func(g *GitHub) { g.baseURL = strings.TrimSuffix(u, "/") }
}

// NewGitHub creates a GitHub importer.
func NewGitHub(opts ...GitHubOption) *GitHub {
	g := &GitHub{
		baseURL: githubAPI,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ParseRepo accepts "owner/repo", a github.com URL, and either form with a
// trailing ".git" or "/".
func ParseRepo(ref string) (owner, repo string, err error) {
	s := strings.TrimSpace(ref)
	s = strings.TrimPrefix(s, "https://github.com/")
	s = strings.TrimPrefix(s, "http://github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, ref)
	}
	repo, _, _ = strings.Cut(repo, "/")
	return owner, repo, nil
}

type readmeResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type issue struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Body   *string `json:"body"`
}

// Import fetches the README and the most recent open issues concurrently.
// A missing README is skipped; at least one document is returned on success.
func (g *GitHub) Import(ctx context.Context, ref string) ([]types.KnowledgeDocument, error) {
	owner, repo, err := ParseRepo(ref)
	if err != nil {
		return nil, err
	}

	var readme, issues *types.KnowledgeDocument
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		doc, err := g.readme(ctx, owner, repo)
		readme = doc
		return err
	})
	eg.Go(func() error {
		doc, err := g.issues(ctx, owner, repo)
		issues = doc
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var docs []types.KnowledgeDocument
	for _, d := range []*types.KnowledgeDocument{readme, issues} {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("repository %s/%s: nothing to import", owner, repo)
	}
	slog.Info("github repository imported", "repo", owner+"/"+repo, "documents", len(docs))
	return docs, nil
}

func (g *GitHub) readme(ctx context.Context, owner, repo string) (*types.KnowledgeDocument, error) {
	var out readmeResponse
	found, err := g.get(ctx, fmt.Sprintf("/repos/%s/%s/readme", owner, repo), &out)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Warn("readme not found or repository private", "repo", owner+"/"+repo)
		return nil, nil
	}
	if out.Content == "" {
		return nil, nil
	}
	// The API wraps base64 at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decode readme: %w", err)
	}
	doc := FromText(repo+"_README.md", string(raw), types.DocMD, types.SourceGitHub)
	return &doc, nil
}

func (g *GitHub) issues(ctx context.Context, owner, repo string) (*types.KnowledgeDocument, error) {
	var list []issue
	path := fmt.Sprintf("/repos/%s/%s/issues?state=open&per_page=%d", owner, repo, recentIssues)
	found, err := g.get(ctx, path, &list)
	if err != nil || !found {
		return nil, err
	}
	doc := FromText(repo+"_Issues_Recent.txt", formatIssues(list), types.DocText, types.SourceGitHub)
	return &doc, nil
}

// formatIssues renders one line per issue with a shortened body.
func formatIssues(list []issue) string {
	var sb strings.Builder
	sb.WriteString("Top open issues:")
	for _, i := range list {
		body := ""
		if i.Body != nil {
			body = *i.Body
		}
		if r := []rune(body); len(r) > issueBodyPreview {
			body = string(r[:issueBodyPreview])
		}
		fmt.Fprintf(&sb, "\n- #%d %s: %s...", i.Number, i.Title, body)
	}
	return sb.String()
}

// get decodes a JSON response into out. A 404 reports found=false with no
// error.
func (g *GitHub) get(ctx context.Context, path string, out any) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "crewdesk/1.0")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("github API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("parse response: %w", err)
	}
	return true, nil
}
