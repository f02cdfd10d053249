// Package markdown turns stored markdown into the things readers and search
// engines see: HTML, excerpts, a table of contents and reading time.  It also
// maps front-matter documents to and from plain values.  Nothing here touches
// storage.
package markdown

import (
	"bytes"
	"strings"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	"quire/internal/metrics"
)

// MoreSeparator splits the teaser from the rest of a document.
const MoreSeparator = "<!--more-->"

// Renderer converts markdown to HTML.  It is safe for concurrent use.
type Renderer struct {
	md       goldmark.Markdown
	minifier *minify.M
	log      *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMinify compacts the produced HTML.
func WithMinify() Option {
	return func(r *Renderer) {
		m := minify.New()
		m.Add("text/html", &minhtml.Minifier{KeepEndTags: true, KeepQuotes: true})
		r.minifier = m
	}
}

// WithLogger sets the logger used for degraded renders.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// NewRenderer builds a GFM renderer (tables, strikethrough, task lists,
// autolinks) whose heading ids match GenerateTableOfContents.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ProcessMarkdown renders content to HTML.  Output is deterministic for a
// given input.
func (r *Renderer) ProcessMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	pc := parser.NewContext(parser.WithIDs(&headingIDs{s: newSlugger()}))
	if err := r.md.Convert([]byte(content), &buf, parser.WithContext(pc)); err != nil {
		return "", err
	}
	out := strings.Replace(buf.String(), MoreSeparator, "", -1)
	if r.minifier != nil {
		min, err := r.minifier.String("text/html", out)
		if err != nil {
			return "", err
		}
		out = min
	}
	return out, nil
}

// RenderOrRaw renders content and falls back to the raw text when rendering
// fails.  Rendering is an enhancement, so the failure is only logged.
func (r *Renderer) RenderOrRaw(content string) string {
	out, err := r.ProcessMarkdown(content)
	if err != nil {
		metrics.RenderFailuresTotal.WithLabelValues("html").Inc()
		r.log.Warn("markdown render failed, returning raw text", zap.Error(err))
		return content
	}
	return out
}

// headingIDs feeds goldmark the same slugs the table of contents uses.
type headingIDs struct {
	s *slugger
}

func (h *headingIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	return []byte(h.s.next(string(value)))
}

func (h *headingIDs) Put(value []byte) {
	h.s.reserve(string(value))
}
