package safejson

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/theory/jsonpath"
)

// Locate resolves a path placeholder found in doc to the node it refers to.
func Locate(doc []byte, placeholder string) (any, error) {
	keys, ok := ParsePlaceholder(placeholder)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotPlaceholder, placeholder)
	}

	var data any
	if err := json.Unmarshal(doc, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	expr := JSONPath(keys)
	path, err := jsonpath.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSONPath %s: %v", ErrNotFound, expr, err)
	}

	results := path.Select(data)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, expr)
	}

	return results[0], nil
}

// JSONPath converts placeholder keys into a JSONPath query. A decimal key
// may be an array index or an object member, so it becomes a union of
// both selectors; at most one of them can match a given node.
func JSONPath(keys []string) string {
	var b strings.Builder
	b.WriteByte('$')

	for _, key := range keys {
		name, _ := json.Marshal(key)

		b.WriteByte('[')
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && strconv.Itoa(i) == key {
			b.WriteString(key)
			b.WriteByte(',')
		}
		b.Write(name)
		b.WriteByte(']')
	}

	return b.String()
}
