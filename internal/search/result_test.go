package search

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "strips scheme and www", in: "https://www.Example.com/Article", want: "example.com/article"},
		{name: "drops query and fragment", in: "http://example.com/a?utm=1#top", want: "example.com/a"},
		{name: "drops trailing slash", in: "https://example.com/path/", want: "example.com/path"},
		{name: "same page different schemes collapse", in: "http://example.com/x", want: "example.com/x"},
		{name: "empty stays empty", in: "", want: ""},
		{name: "whitespace only", in: "   ", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRemoveDuplicatesKeepsFirst(t *testing.T) {
	t.Parallel()
	in := []Result{
		{Title: "first", Link: "https://example.com/a"},
		{Title: "second", Link: "http://www.example.com/a/"},
		{Title: "other", Link: "https://example.com/b"},
	}
	out := RemoveDuplicates(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].Title != "first" {
		t.Fatalf("expected first occurrence to win, got %q", out[0].Title)
	}
}

func TestRemoveDuplicatesPassesURLLess(t *testing.T) {
	t.Parallel()
	in := []Result{
		{Title: "answer one", Link: ""},
		{Title: "answer two", Link: ""},
		{Title: "page", Link: "https://example.com"},
	}
	out := RemoveDuplicates(in)
	if len(out) != 3 {
		t.Fatalf("URL-less results must never be deduplicated, got %d of 3", len(out))
	}
}
