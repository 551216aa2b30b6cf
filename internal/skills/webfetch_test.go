package skills

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Go Concurrency Patterns</title></head>
<body>
<article>
<h1>Go Concurrency Patterns</h1>
<p>Goroutines are lightweight threads managed by the Go runtime. They make it
practical to structure a program as a set of independently executing
functions that communicate over channels.</p>
<p>Channels provide a way for two goroutines to synchronise and exchange
values without explicit locks or condition variables.</p>
</article>
</body>
</html>`

func TestWebFetchExtractsArticle(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer ts.Close()

	s := NewWebFetchSkill()
	out, err := s.Run(context.Background(), map[string]any{"url": ts.URL})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	res, ok := out.(FetchResult)
	if !ok {
		t.Fatalf("unexpected result type %T", out)
	}
	if !strings.Contains(res.Text, "Goroutines") {
		t.Fatalf("article text missing, got %q", res.Text)
	}
	if res.Status != http.StatusOK {
		t.Fatalf("status = %d", res.Status)
	}
}

func TestWebFetchRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := NewWebFetchSkill()
	if _, err := s.Run(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("missing url must error")
	}
	if _, err := s.Run(context.Background(), map[string]any{"url": "ftp://example.com/x"}); err == nil {
		t.Fatalf("non-http scheme must error")
	}
}

func TestWebFetchUpstreamError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	s := NewWebFetchSkill()
	if _, err := s.Run(context.Background(), map[string]any{"url": ts.URL}); err == nil {
		t.Fatalf("expected error on 404")
	}
}

func TestArgHelpers(t *testing.T) {
	t.Parallel()
	args := map[string]any{
		"s":    "text",
		"n":    float64(7),
		"list": []any{"a", "b", 3},
	}
	if stringArg(args, "s") != "text" || stringArg(args, "missing") != "" {
		t.Fatalf("stringArg misbehaved")
	}
	if intArg(args, "n", 0) != 7 || intArg(args, "missing", 9) != 9 {
		t.Fatalf("intArg misbehaved")
	}
	got := stringSliceArg(args, "list")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("stringSliceArg = %v", got)
	}
	if stringSliceArg(map[string]any{"list": "solo"}, "list")[0] != "solo" {
		t.Fatalf("single string must become one-element slice")
	}
}
