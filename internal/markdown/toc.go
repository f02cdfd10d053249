package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// TOCEntry is one heading of a document.
type TOCEntry struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Slug  string `json:"slug"`
}

// Block is a heading together with the text that follows it up to the next
// heading of any level.
type Block struct {
	TOCEntry
	Body string
}

var (
	atxHeading   = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?(?:[ \t]+#+)?[ \t]*$`)
	fenceOpening = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
)

// Slugify lowercases text, drops everything but letters, digits, spaces,
// hyphens and underscores, then turns runs of spaces into single hyphens.
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}

// slugger hands out unique slugs within one document.
type slugger struct {
	seen map[string]int
}

func newSlugger() *slugger {
	return &slugger{seen: make(map[string]int)}
}

func (s *slugger) next(text string) string {
	base := Slugify(text)
	if base == "" {
		base = "heading"
	}
	n, dup := s.seen[base]
	s.seen[base] = n + 1
	if !dup {
		return base
	}
	for {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, taken := s.seen[candidate]; !taken {
			s.seen[candidate] = 1
			return candidate
		}
		n++
	}
}

func (s *slugger) reserve(id string) {
	s.seen[id]++
}

// Blocks splits content at ATX headings.  Headings inside fenced code are
// ignored.  Text before the first heading is dropped.
func Blocks(content string) []Block {
	var (
		blocks []Block
		body   []string
		fence  string
		slugs  = newSlugger()
	)
	flush := func() {
		if len(blocks) > 0 {
			blocks[len(blocks)-1].Body = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = body[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if m := fenceOpening.FindStringSubmatch(line); m != nil {
			marker := m[1][:3]
			switch {
			case fence == "":
				fence = marker
			case fence == marker:
				fence = ""
			}
			body = append(body, line)
			continue
		}
		if fence != "" {
			body = append(body, line)
			continue
		}
		m := atxHeading.FindStringSubmatch(line)
		if m == nil {
			body = append(body, line)
			continue
		}
		flush()
		text := strings.TrimSpace(m[2])
		blocks = append(blocks, Block{TOCEntry: TOCEntry{
			Level: len(m[1]),
			Text:  text,
			Slug:  slugs.next(text),
		}})
	}
	flush()
	return blocks
}

// GenerateTableOfContents lists the ATX headings of content in order.
func GenerateTableOfContents(content string) []TOCEntry {
	blocks := Blocks(content)
	toc := make([]TOCEntry, 0, len(blocks))
	for _, b := range blocks {
		toc = append(toc, b.TOCEntry)
	}
	return toc
}

// ExtractSections returns the blocks nested under the first heading whose
// text equals one of titles (case-insensitive), up to the next heading of the
// same or a higher level.  The matched heading itself is not included.
func ExtractSections(content string, titles ...string) []Block {
	blocks := Blocks(content)
	for i, b := range blocks {
		if !matchesTitle(b.Text, titles) {
			continue
		}
		var out []Block
		for _, child := range blocks[i+1:] {
			if child.Level <= b.Level {
				break
			}
			out = append(out, child)
		}
		return out
	}
	return nil
}

func matchesTitle(text string, titles []string) bool {
	for _, t := range titles {
		if strings.EqualFold(strings.TrimSpace(text), t) {
			return true
		}
	}
	return false
}
