package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Error describes why a raw value does not fit its field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

func fail(f Field, format string, args ...any) error {
	return &Error{Field: f.Name, Message: fmt.Sprintf(format, args...)}
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts raw into the canonical stored form for f.  Empty values of
// optional fields coerce to nil.  The function has no side effects.
func Coerce(f Field, raw any) (any, error) {
	if isEmpty(raw) {
		if f.Required {
			return nil, fail(f, "is required")
		}
		return nil, nil
	}

	switch f.Type {
	case TypeText, TypeMarkdown, TypeImage:
		s, ok := asString(raw)
		if !ok {
			return nil, fail(f, "expected a string, got %T", raw)
		}
		if f.Type == TypeText {
			if err := checkText(f, s); err != nil {
				return nil, err
			}
		}
		return s, nil

	case TypeBoolean:
		return coerceBool(f, raw)

	case TypeSelect:
		s, ok := asString(raw)
		if !ok {
			return nil, fail(f, "expected a string, got %T", raw)
		}
		if err := checkOption(f, s); err != nil {
			return nil, err
		}
		return s, nil

	case TypeMultiSelect:
		list, err := asStringList(f, raw)
		if err != nil {
			return nil, err
		}
		for _, s := range list {
			if err := checkOption(f, s); err != nil {
				return nil, err
			}
		}
		return list, nil

	case TypeDatetime:
		return coerceDatetime(f, raw)

	case TypeReference:
		s, ok := asString(raw)
		if !ok {
			return nil, fail(f, "expected an identifier, got %T", raw)
		}
		return strings.TrimSpace(s), nil

	case TypeMultiReference:
		return asStringList(f, raw)
	}
	return nil, fail(f, "unknown field type %q", f.Type)
}

func isEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

// SplitList splits a delimited cell (";" preferred, "," accepted) into trimmed,
// non-empty parts.
func SplitList(s string) []string {
	sep := ";"
	if !strings.Contains(s, ";") && strings.Contains(s, ",") {
		sep = ","
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func asStringList(f Field, raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return SplitList(v), nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := asString(item)
			if !ok {
				return nil, fail(f, "list items must be strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fail(f, "expected a list, got %T", raw)
}

func coerceBool(f Field, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
	}
	return nil, fail(f, "expected a boolean, got %v", raw)
}

func coerceDatetime(f Field, raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
		}
		return nil, fail(f, "cannot parse %q as a date", s)
	}
	return nil, fail(f, "expected a date string, got %T", raw)
}

func checkText(f Field, s string) error {
	if f.Validation == nil {
		return nil
	}
	n := utf8.RuneCountInString(s)
	if f.Validation.Min != nil && n < *f.Validation.Min {
		return fail(f, "must be at least %d characters", *f.Validation.Min)
	}
	if f.Validation.Max != nil && n > *f.Validation.Max {
		return fail(f, "must be at most %d characters", *f.Validation.Max)
	}
	if f.Validation.Pattern != "" {
		re, err := regexp.Compile(f.Validation.Pattern)
		if err != nil {
			return fail(f, "invalid pattern %q", f.Validation.Pattern)
		}
		if !re.MatchString(s) {
			return fail(f, "does not match %s", f.Validation.Pattern)
		}
	}
	return nil
}

func checkOption(f Field, s string) error {
	if f.Validation == nil || len(f.Validation.Options) == 0 {
		return nil
	}
	for _, o := range f.Validation.Options {
		if o == s {
			return nil
		}
	}
	return fail(f, "%q is not one of %s", s, strings.Join(f.Validation.Options, ", "))
}
