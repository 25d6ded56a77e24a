package knowledge

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/user/crewdesk/internal/types"
)

func TestParseRepo(t *testing.T) {
	for _, in := range []string{
		"octo/site",
		"https://github.com/octo/site",
		"http://github.com/octo/site/",
		"https://github.com/octo/site.git",
		"  octo/site.git  ",
	} {
		owner, repo, err := ParseRepo(in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if owner != "octo" || repo != "site" {
			t.Errorf("%q: got %s/%s", in, owner, repo)
		}
	}

	for _, in := range []string{"site", "", "https://github.com/octo"} {
		if _, _, err := ParseRepo(in); !errors.Is(err, ErrInvalidRepo) {
			t.Errorf("%q: expected ErrInvalidRepo, got %v", in, err)
		}
	}
}

func githubServer(t *testing.T, readme bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		switch r.URL.Path {
		case "/repos/octo/site/readme":
			if !readme {
				http.NotFound(w, r)
				return
			}
			enc := base64.StdEncoding.EncodeToString([]byte("# Site\nLançamento"))
			w.Write([]byte(`{"content":"` + enc[:8] + `\n` + enc[8:] + `","encoding":"base64"}`))
		case "/repos/octo/site/issues":
			if r.URL.Query().Get("per_page") != "5" || r.URL.Query().Get("state") != "open" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			long := strings.Repeat("a", 250)
			w.Write([]byte(`[{"number":7,"title":"Fix hero","body":"` + long + `"},{"number":3,"title":"Copy","body":null}]`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestGitHubImport(t *testing.T) {
	srv := githubServer(t, true)
	defer srv.Close()

	gh := NewGitHub(WithGitHubBaseURL(srv.URL), WithGitHubToken("tok"))
	docs, err := gh.Import(context.Background(), "https://github.com/octo/site")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}

	readme := docs[0]
	if readme.Name != "site_README.md" || readme.Type != types.DocMD || readme.Source != types.SourceGitHub {
		t.Errorf("unexpected readme %+v", readme)
	}
	if readme.Content != "# Site\nLançamento" {
		t.Errorf("unexpected readme content %q", readme.Content)
	}

	issues := docs[1]
	if issues.Name != "site_Issues_Recent.txt" || issues.Type != types.DocText {
		t.Errorf("unexpected issues doc %+v", issues)
	}
	lines := strings.Split(issues.Content, "\n")
	want := []string{
		"Top open issues:",
		"- #7 Fix hero: " + strings.Repeat("a", 200) + "...",
		"- #3 Copy: ...",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestGitHubImportWithoutReadme(t *testing.T) {
	srv := githubServer(t, false)
	defer srv.Close()

	gh := NewGitHub(WithGitHubBaseURL(srv.URL), WithGitHubToken("tok"))
	docs, err := gh.Import(context.Background(), "octo/site")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Name != "site_Issues_Recent.txt" {
		t.Errorf("expected only the issues doc, got %+v", docs)
	}
}

func TestGitHubImportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewGitHub(WithGitHubBaseURL(srv.URL)).Import(context.Background(), "octo/site")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status error, got %v", err)
	}
}
