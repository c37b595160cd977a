package safejson

import (
	"bytes"
	"encoding/json"
)

type member struct {
	key   string
	value any
}

// object is an acyclic JSON object that keeps its members in walk order, so
// struct fields come out in declaration order like encoding/json.
type object struct {
	members    []member
	escapeHTML bool
}

func (o *object) add(key string, value any) {
	o.members = append(o.members, member{key: key, value: value})
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(o.escapeHTML)

	out := make([]byte, 0, 2+16*len(o.members))
	out = append(out, '{')
	for i, m := range o.members {
		if i > 0 {
			out = append(out, ',')
		}

		buf.Reset()
		if err := enc.Encode(m.key); err != nil {
			return nil, err
		}
		out = append(out, bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})...)
		out = append(out, ':')

		buf.Reset()
		if err := enc.Encode(m.value); err != nil {
			return nil, err
		}
		out = append(out, bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})...)
	}
	out = append(out, '}')

	return out, nil
}
