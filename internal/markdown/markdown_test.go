package markdown

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		meta map[string]any
		body string
	}{
		{"simple", map[string]any{"title": "Hello", "draft": false}, "# Hello\n\nBody text.\n"},
		{"drops empty", map[string]any{"title": "T", "empty": "", "missing": nil}, "body"},
		{"nested", map[string]any{"tags": []any{"go", "cms"}, "seo": map[string]any{"title": "x"}, "count": 3}, "line one\nline two"},
		{"no meta", map[string]any{}, "---\nnot front matter\n---\n"},
		{"nil meta", nil, ""},
		{"tricky strings", map[string]any{"a": "yes", "b": "2024-01-01", "c": "multi\nline\n---\nvalue", "d": "#hash"}, "\n\nleading blank lines"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Stringify(tc.meta, tc.body)
			if err != nil {
				t.Fatalf("Stringify: %v", err)
			}
			doc, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if doc.Content != tc.body {
				t.Errorf("content = %q, want %q", doc.Content, tc.body)
			}

			want := map[string]any{}
			for k, v := range tc.meta {
				if v == nil || v == "" {
					continue
				}
				want[k] = v
			}
			if got, exp := asJSON(t, doc.Data), asJSON(t, want); got != exp {
				t.Errorf("data = %s, want %s", got, exp)
			}
		})
	}
}

func asJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestParseWithoutFrontMatter(t *testing.T) {
	doc, err := Parse("just text\n---\n")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "just text\n---\n" || len(doc.Data) != 0 {
		t.Errorf("unexpected doc: %+v", doc)
	}

	doc, err = Parse("---\ntitle: x\nno closing line")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "---\ntitle: x\nno closing line" {
		t.Errorf("unterminated front matter should stay body, got %q", doc.Content)
	}
}

func TestExtractExcerpt(t *testing.T) {
	short := "A short line of text."
	if got := ExtractExcerpt(short, 160); got != short {
		t.Errorf("short text changed: %q", got)
	}

	md := "# Title\n\nSome **bold** and _italic_ text with a [link](https://example.com).\n\n```go\ncode()\n```\n\n- item one\n- item two"
	got := ExtractExcerpt(md, 160)
	want := "Title Some bold and italic text with a link. item one item two"
	if got != want {
		t.Errorf("ExtractExcerpt = %q, want %q", got, want)
	}

	long := strings.Repeat("lorem ipsum dolor ", 30)
	for _, max := range []int{20, 50, 160} {
		got := ExtractExcerpt(long, max)
		if n := utf8.RuneCountInString(got); n > max {
			t.Errorf("max=%d: excerpt has %d runes", max, n)
		}
		if !strings.HasSuffix(got, ellipsis) {
			t.Errorf("max=%d: missing ellipsis in %q", max, got)
		}
		for _, w := range strings.Fields(strings.TrimSuffix(got, ellipsis)) {
			if w != "lorem" && w != "ipsum" && w != "dolor" {
				t.Errorf("max=%d: split word %q", max, w)
			}
		}
	}
}

func TestExtractExcerptUsesMoreSeparator(t *testing.T) {
	got := ExtractExcerpt("Teaser here.\n<!--more-->\nRest of the post.", 160)
	if got != "Teaser here." {
		t.Errorf("got %q", got)
	}
}

func TestGenerateTableOfContents(t *testing.T) {
	md := "# Intro\n\ntext\n\n## Step 1: Install it!\n\n```\n# not a heading\n```\n\n## Intro\n### Deep ###\n####### too deep"
	got := GenerateTableOfContents(md)
	want := []TOCEntry{
		{Level: 1, Text: "Intro", Slug: "intro"},
		{Level: 2, Text: "Step 1: Install it!", Slug: "step-1-install-it"},
		{Level: 2, Text: "Intro", Slug: "intro-1"},
		{Level: 3, Text: "Deep", Slug: "deep"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TOC = %+v, want %+v", got, want)
	}
}

func TestRenderedHeadingIDsMatchTOC(t *testing.T) {
	md := "## Step 1: Install it!\n\n## Step 1: Install it!\n"
	out, err := NewRenderer().ProcessMarkdown(md)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range GenerateTableOfContents(md) {
		if !strings.Contains(out, `id="`+e.Slug+`"`) {
			t.Errorf("rendered html lacks id %q: %s", e.Slug, out)
		}
	}
}

func TestProcessMarkdownGFM(t *testing.T) {
	md := "| a | b |\n|---|---|\n| 1 | 2 |\n\n~~gone~~\n\n- [x] done\n<!--more-->"
	out, err := NewRenderer().ProcessMarkdown(md)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<table>", "<del>gone</del>", `type="checkbox"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, MoreSeparator) {
		t.Errorf("more separator leaked into html")
	}

	again, _ := NewRenderer().ProcessMarkdown(md)
	if again != out {
		t.Errorf("rendering is not deterministic")
	}
}

func TestEstimateReadingTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{{0, 0}, {1, 1}, {200, 1}, {201, 2}, {1000, 5}}
	for _, tt := range tests {
		content := strings.TrimSpace(strings.Repeat("word ", tt.words))
		if got := EstimateReadingTime(content); got != tt.want {
			t.Errorf("%d words: got %d, want %d", tt.words, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":          "hello-world",
		"  Spaces   everywhere ": "spaces-everywhere",
		"C++ & Go!":            "c-go",
		"snake_case-ok":        "snake_case-ok",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractSections(t *testing.T) {
	content := "# Page\n\n## FAQ\n\n### What is it?\n\nA tool.\n\n### Is it free?\n\nYes.\n\n## Other\n\n### Not a question\n\nNo."
	got := ExtractSections(content, "FAQ", "Frequently Asked Questions")
	if len(got) != 2 {
		t.Fatalf("got %d sections, want 2: %+v", len(got), got)
	}
	if got[0].Text != "What is it?" || got[0].Body != "A tool." {
		t.Errorf("first section = %+v", got[0])
	}
	if got[1].Text != "Is it free?" || got[1].Body != "Yes." {
		t.Errorf("second section = %+v", got[1])
	}
	if ExtractSections(content, "Missing") != nil {
		t.Errorf("expected nil for an absent heading")
	}
}
