package redact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
)

// Redactor hides secrets in log records. Values of sensitive headers are
// replaced whole; known secret values are replaced wherever they occur.
// Replacements are [S256:hash] tokens, stable for a given salt, so equal
// secrets still correlate across lines.
type Redactor struct {
	salt    string
	headers map[string]struct{}
	targets []target
}

type target struct {
	secret      string
	replacement string
}

// New builds a Redactor. Header names are matched case-insensitively;
// empty secrets are ignored.
func New(salt string, headers, secrets []string) *Redactor {
	r := &Redactor{
		salt:    salt,
		headers: make(map[string]struct{}, len(headers)),
	}

	for _, name := range headers {
		if name = strings.TrimSpace(name); name != "" {
			r.headers[strings.ToLower(name)] = struct{}{}
		}
	}

	// A secret inside JSON text shows up escaped; every form hashes to the
	// token of the raw secret.
	forms := make(map[string]string, len(secrets))
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		replacement := r.hash(secret)
		forms[secret] = replacement
		for _, escaped := range jsonForms(secret) {
			if _, ok := forms[escaped]; !ok {
				forms[escaped] = replacement
			}
		}
	}
	for secret, replacement := range forms {
		r.targets = append(r.targets, target{
			secret:      secret,
			replacement: replacement,
		})
	}

	// Longest first, so a secret that contains another wins.
	slices.SortFunc(r.targets, func(a, b target) int {
		if len(a.secret) != len(b.secret) {
			return len(b.secret) - len(a.secret)
		}
		return strings.Compare(a.secret, b.secret)
	})

	return r
}

// Enabled reports whether r would ever change anything. A nil Redactor is
// valid and never redacts.
func (r *Redactor) Enabled() bool {
	return r != nil && (len(r.headers) > 0 || len(r.targets) > 0)
}

// Header returns the value to log for header name.
func (r *Redactor) Header(name, value string) string {
	if r == nil || value == "" {
		return value
	}
	if _, ok := r.headers[strings.ToLower(name)]; ok {
		return r.hash(value)
	}
	return r.String(value)
}

// String replaces every occurrence of a known secret in s, raw or as it
// appears inside a JSON string.
func (r *Redactor) String(s string) string {
	if r == nil || len(r.targets) == 0 || s == "" {
		return s
	}

	var out *strings.Builder
	for index := 0; index < len(s); {
		t := r.matchAt(s, index)
		if t == nil {
			if out != nil {
				out.WriteByte(s[index])
			}
			index++
			continue
		}

		if out == nil {
			out = &strings.Builder{}
			out.Grow(len(s))
			out.WriteString(s[:index])
		}

		out.WriteString(t.replacement)
		index += len(t.secret)
	}

	if out == nil {
		return s
	}
	return out.String()
}

func (r *Redactor) matchAt(s string, index int) *target {
	remaining := s[index:]
	for i := range r.targets {
		if strings.HasPrefix(remaining, r.targets[i].secret) {
			return &r.targets[i]
		}
	}
	return nil
}

func (r *Redactor) hash(secret string) string {
	sum := sha256.Sum256([]byte(r.salt + secret))
	return "[S256:" + hex.EncodeToString(sum[:8]) + "]"
}

// jsonForms returns the escaped spellings of s inside a JSON string that
// differ from s, with and without HTML escaping.
func jsonForms(s string) []string {
	var forms []string
	for _, escapeHTML := range []bool{true, false} {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(escapeHTML)
		if err := enc.Encode(s); err != nil {
			continue
		}
		quoted := bytes.TrimSpace(buf.Bytes())
		escaped := string(quoted[1 : len(quoted)-1])
		if escaped != s && !slices.Contains(forms, escaped) {
			forms = append(forms, escaped)
		}
	}
	return forms
}
