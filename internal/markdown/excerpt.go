package markdown

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// DefaultExcerptLength is the excerpt size used for meta descriptions.
const DefaultExcerptLength = 160

const ellipsis = "…"

var stripRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("(?s)(```|~~~).*?(```|~~~)"), " "},
	{regexp.MustCompile(`(?s)<!--.*?-->`), " "},
	{regexp.MustCompile(`<[^>\n]+>`), " "},
	{regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`), " "},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\[[^\]]*\]`), "$1"},
	{regexp.MustCompile(`(?m)^\s*\[[^\]]+\]:\s+\S+.*$`), " "},
	{regexp.MustCompile(`(?m)^ {0,3}#{1,6}[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`), "$1"},
	{regexp.MustCompile(`(?m)^ {0,3}([-*_][ \t]*){3,}$`), " "},
	{regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+(?:\[[ xX]\][ \t]+)?`), ""},
	{regexp.MustCompile("`([^`]*)`"), "$1"},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`\*(\S(?:.*?\S)?)\*`), "$1"},
	{regexp.MustCompile(`\b_(\S(?:.*?\S)?)_\b`), "$1"},
	{regexp.MustCompile(`~~(.+?)~~`), "$1"},
	{regexp.MustCompile(`\s+`), " "},
}

// StripMarkdown reduces markdown to plain prose on a single line.
func StripMarkdown(md string) string {
	for _, rule := range stripRules {
		md = rule.re.ReplaceAllString(md, rule.repl)
	}
	return strings.TrimSpace(md)
}

// ExtractExcerpt returns up to maxLength characters of plain text.  When the
// content contains MoreSeparator only the teaser before it is used.  Longer
// text is cut at the last whole word and ends in an ellipsis; the result
// including the ellipsis never exceeds maxLength.
func ExtractExcerpt(content string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultExcerptLength
	}
	if i := strings.Index(content, MoreSeparator); i >= 0 {
		content = content[:i]
	}
	text := StripMarkdown(content)
	return Truncate(text, maxLength)
}

// Truncate shortens plain text on a word boundary.  Text that already fits
// is returned unchanged.
func Truncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	budget := maxLength - len([]rune(ellipsis))
	if budget <= 0 {
		return string(runes[:maxLength])
	}

	cut := runes[:budget]
	if !unicode.IsSpace(runes[budget]) {
		if i := lastSpace(cut); i > 0 {
			cut = cut[:i]
		}
	}
	head := strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;:-–—", r)
	})
	return head + ellipsis
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if unicode.IsSpace(rs[i]) {
			return i
		}
	}
	return -1
}

// WordsPerMinute is the reading speed behind EstimateReadingTime.
const WordsPerMinute = 200

// EstimateReadingTime returns whole minutes, rounded up.  Empty content
// reads in zero minutes.
func EstimateReadingTime(content string) int {
	words := len(strings.Fields(StripMarkdown(content)))
	return int(math.Ceil(float64(words) / WordsPerMinute))
}
