package safejson

import (
	"bytes"
	"encoding/json"
	"io"
)

// Encoder produces cycle-safe JSON documents. It is immutable once built and
// may be shared between goroutines; every call walks with fresh state.
type Encoder struct {
	mode       PlaceholderMode
	prefix     string
	indent     string
	escapeHTML bool
}

type Option func(*Encoder)

// WithIndent forwards indentation to encoding/json unchanged.
func WithIndent(prefix, indent string) Option {
	return func(e *Encoder) {
		e.prefix = prefix
		e.indent = indent
	}
}

// WithEscapeHTML toggles escaping of <, > and & inside strings. Enabled by
// default, matching json.Marshal.
func WithEscapeHTML(on bool) Option {
	return func(e *Encoder) {
		e.escapeHTML = on
	}
}

func WithPlaceholderMode(mode PlaceholderMode) Option {
	return func(e *Encoder) {
		e.mode = mode
	}
}

func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		mode:       PathPlaceholders,
		escapeHTML: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode reports the placeholder mode the encoder was built with.
func (e *Encoder) Mode() PlaceholderMode {
	return e.mode
}

// Marshal returns the JSON document for v. Cyclic positions hold string
// placeholders; nothing is returned unless the whole document succeeded.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	tree, err := newEngine(e.mode, e.escapeHTML).run(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(e.escapeHTML)
	enc.SetIndent(e.prefix, e.indent)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (e *Encoder) MarshalString(v any) (string, error) {
	b, err := e.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode writes the document for v followed by a newline. w sees no bytes
// when encoding fails.
func (e *Encoder) Encode(w io.Writer, v any) error {
	b, err := e.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

var defaultEncoder = NewEncoder()

// Marshal encodes v with path placeholders and no indentation.
func Marshal(v any) ([]byte, error) {
	return defaultEncoder.Marshal(v)
}

func MarshalString(v any) (string, error) {
	return defaultEncoder.MarshalString(v)
}

// MarshalIndent is Marshal with indentation; cycle detection is unaffected.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return NewEncoder(WithIndent(prefix, indent)).Marshal(v)
}
