package services

import (
	"html/template"
	"strings"
)

// headBuilder collects the tags of a page <head> with deduplication.  It is
// used for one render call and is not safe for concurrent use.
type headBuilder struct {
	title  string
	metas  []string
	links  []string
	jsonLD []string
	seen   map[string]struct{}
}

func newHeadBuilder() *headBuilder {
	return &headBuilder{seen: make(map[string]struct{})}
}

func (b *headBuilder) SetTitle(t string) { b.title = t }

// Meta adds <meta name|property=key content=value>.  Empty values are skipped.
func (b *headBuilder) Meta(attr, key, value string) {
	if value == "" {
		return
	}
	tag := `<meta ` + attr + `="` + template.HTMLEscapeString(key) + `" content="` + template.HTMLEscapeString(value) + `">`
	b.add("meta:"+attr+":"+key, &b.metas, tag)
}

func (b *headBuilder) Link(rel, href string) {
	if href == "" {
		return
	}
	tag := `<link rel="` + rel + `" href="` + template.HTMLEscapeString(href) + `">`
	b.add("link:"+rel, &b.links, tag)
}

// JSONLD adds one serialized graph.
func (b *headBuilder) JSONLD(js string) { b.add("jsonld:"+js, &b.jsonLD, js) }

func (b *headBuilder) add(key string, tgt *[]string, tag string) {
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	*tgt = append(*tgt, tag)
}

// HTML emits title, metas, links and JSON-LD scripts in that order.
func (b *headBuilder) HTML() template.HTML {
	var sb strings.Builder
	if b.title != "" {
		sb.WriteString("<title>" + template.HTMLEscapeString(b.title) + "</title>")
	}
	for _, s := range [][]string{b.metas, b.links} {
		sb.WriteString(strings.Join(s, ""))
	}
	for _, js := range b.jsonLD {
		sb.WriteString(`<script type="application/ld+json">`)
		sb.WriteString(js)
		sb.WriteString(`</script>`)
	}
	return template.HTML(sb.String())
}
