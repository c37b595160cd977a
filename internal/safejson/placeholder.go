package safejson

import (
	"reflect"
	"strings"
)

// PlaceholderMode selects how cyclic positions are labelled.
type PlaceholderMode int

const (
	// PathPlaceholders replaces back-references to an ancestor with the key
	// path of that ancestor: "[Circular ~.children.0]".
	PathPlaceholders PlaceholderMode = iota

	// TypeTags replaces every repeated reference, including shared
	// references that are not cycles, with the referenced type name:
	// "[Circular Parent]".
	TypeTags
)

const (
	placeholderPrefix = "[Circular ~"
	placeholderSuffix = "]"
)

func (m PlaceholderMode) String() string {
	switch m {
	case PathPlaceholders:
		return "path"
	case TypeTags:
		return "type"
	default:
		return "unknown"
	}
}

// ParsePlaceholderMode accepts the names returned by String.
func ParsePlaceholderMode(s string) (PlaceholderMode, bool) {
	switch s {
	case "", "path":
		return PathPlaceholders, true
	case "type":
		return TypeTags, true
	default:
		return 0, false
	}
}

// FormatPath renders the placeholder for an ancestor reached through keys.
// Keys are not escaped.
func FormatPath(keys []string) string {
	if len(keys) == 0 {
		return placeholderPrefix + placeholderSuffix
	}
	return placeholderPrefix + "." + strings.Join(keys, ".") + placeholderSuffix
}

// FormatType renders the type-tag placeholder for t.
func FormatType(t reflect.Type) string {
	return "[Circular " + typeName(t) + "]"
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.Kind().String()
}

// ParsePlaceholder returns the key path encoded in a path placeholder.
// The root placeholder yields an empty, non-nil path.
func ParsePlaceholder(s string) ([]string, bool) {
	rest, ok := strings.CutPrefix(s, placeholderPrefix)
	if !ok {
		return nil, false
	}

	rest, ok = strings.CutSuffix(rest, placeholderSuffix)
	if !ok {
		return nil, false
	}

	if rest == "" {
		return []string{}, true
	}

	rest, ok = strings.CutPrefix(rest, ".")
	if !ok || rest == "" {
		return nil, false
	}

	return strings.Split(rest, "."), true
}
