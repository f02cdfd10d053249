package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Document is a parsed front-matter file.
type Document struct {
	Data    map[string]any `json:"data"`
	Content string         `json:"content"`
}

// Parse splits YAML front matter from the markdown body.  Input without a
// leading delimiter line is all body.
func Parse(raw string) (Document, error) {
	doc := Document{Data: map[string]any{}}
	src := strings.TrimPrefix(raw, "\ufeff")

	head, rest, ok := cutLine(src)
	if !ok || strings.TrimRight(head, " \t\r") != delimiter {
		doc.Content = raw
		return doc, nil
	}

	var meta []string
	for {
		line, next, found := cutLine(rest)
		if strings.TrimRight(line, " \t\r") == delimiter {
			doc.Content = next
			break
		}
		if !found {
			// Unterminated front matter: treat the whole input as body.
			doc.Content = raw
			return doc, nil
		}
		meta = append(meta, line)
		rest = next
	}

	block := strings.Join(meta, "\n")
	if strings.TrimSpace(block) == "" {
		return doc, nil
	}
	if err := yaml.Unmarshal([]byte(block), &doc.Data); err != nil {
		return Document{}, fmt.Errorf("front matter: %w", err)
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	return doc, nil
}

// cutLine returns the first line of s (without its newline), the rest, and
// whether a newline was found.
func cutLine(s string) (string, string, bool) {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// Stringify renders meta as YAML front matter followed by content.  nil and
// empty-string values are dropped so round trips do not accumulate
// placeholder keys.
func Stringify(meta map[string]any, content string) (string, error) {
	clean := make(map[string]any, len(meta))
	for k, v := range meta {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		clean[k] = v
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	if len(clean) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(clean); err != nil {
			return "", fmt.Errorf("front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
	}
	buf.WriteString(delimiter + "\n")
	buf.WriteString(content)
	return buf.String(), nil
}
