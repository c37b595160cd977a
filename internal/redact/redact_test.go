package redact

import (
	"strings"
	"testing"
)

const testSalt = "testsalt-2025-07-05"

func TestRedactor_String(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		secrets []string
		want    string
	}{
		{
			name: "no secrets provided",
			data: "hello world",
			want: "hello world",
		},
		{
			name:    "single secret replacement",
			data:    "hello secret123 world",
			secrets: []string{"secret123"},
			want:    "hello [S256:b693407b4d117bbe] world",
		},
		{
			name:    "multiple different secrets",
			data:    "hello secret123 world token456",
			secrets: []string{"secret123", "token456"},
			want:    "hello [S256:b693407b4d117bbe] world [S256:038b06ee733b06f2]",
		},
		{
			name:    "empty secret value ignored",
			data:    "hello world",
			secrets: []string{""},
			want:    "hello world",
		},
		{
			name:    "multiple occurrences of same secret",
			data:    "secret123 and secret123 again",
			secrets: []string{"secret123", "secret123"},
			want:    "[S256:b693407b4d117bbe] and [S256:b693407b4d117bbe] again",
		},
		{
			name:    "secret with special characters",
			data:    "password: my@secret#123!",
			secrets: []string{"my@secret#123!"},
			want:    "password: [S256:e117bf423bb0b569]",
		},
		{
			name:    "secret with newlines",
			data:    "key:\nmulti\nline\nsecret",
			secrets: []string{"multi\nline\nsecret"},
			want:    "key:\n[S256:1390f75743035739]",
		},
		{
			name:    "secret escaped inside JSON text",
			data:    `{"password":"pa\"ss\\w\u003crd","raw":"pa\"ss\\w<rd"}`,
			secrets: []string{`pa"ss\w<rd`},
			want:    `{"password":"` + New(testSalt, nil, nil).hash(`pa"ss\w<rd`) + `","raw":"` + New(testSalt, nil, nil).hash(`pa"ss\w<rd`) + `"}`,
		},
		{
			name:    "case sensitive replacement",
			data:    "hello Secret123 and secret123",
			secrets: []string{"secret123"},
			want:    "hello Secret123 and [S256:b693407b4d117bbe]",
		},
		{
			name:    "large data with multiple secrets",
			data:    strings.Repeat("data ", 1000) + "secret123 " + strings.Repeat("more data ", 1000) + "token456",
			secrets: []string{"secret123", "token456"},
			want:    strings.Repeat("data ", 1000) + "[S256:b693407b4d117bbe] " + strings.Repeat("more data ", 1000) + "[S256:038b06ee733b06f2]",
		},
		{
			name:    "overlapping secrets longest match first",
			data:    "Bearer abcd",
			secrets: []string{"abc", "abcd"},
			want:    "Bearer " + New(testSalt, nil, nil).hash("abcd"),
		},
		{
			name:    "overlapping secrets deterministic regardless of order",
			data:    "Bearer abcd",
			secrets: []string{"abcd", "abc"},
			want:    "Bearer " + New(testSalt, nil, nil).hash("abcd"),
		},
		{
			name:    "single char secret does not mutate hash marker for longer secret",
			data:    "Bearer abcd",
			secrets: []string{"S", "abcd"},
			want:    "Bearer " + New(testSalt, nil, nil).hash("abcd"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(testSalt, nil, tt.secrets).String(tt.data)
			if got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRedactor_Header(t *testing.T) {
	r := New(testSalt, []string{"Authorization", " cookie "}, []string{"secret123"})

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "authorization", value: "secret123", want: "[S256:b693407b4d117bbe]"},
		{name: "AUTHORIZATION", value: "secret123", want: "[S256:b693407b4d117bbe]"},
		{name: "cookie", value: "", want: ""},
		{name: "accept", value: "text/plain", want: "text/plain"},
		{name: "x-note", value: "has secret123 inside", want: "has [S256:b693407b4d117bbe] inside"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Header(tt.name, tt.value); got != tt.want {
				t.Errorf("Header(%q, %q) = %q, want %q", tt.name, tt.value, got, tt.want)
			}
		})
	}
}

func TestRedactor_Nil(t *testing.T) {
	var r *Redactor

	if r.Enabled() {
		t.Error("nil Redactor should not be enabled")
	}
	if got := r.Header("authorization", "x"); got != "x" {
		t.Errorf("Header() = %q, want x", got)
	}
	if got := r.String("x"); got != "x" {
		t.Errorf("String() = %q, want x", got)
	}
}

func TestRedactor_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		secrets []string
		want    bool
	}{
		{name: "empty", want: false},
		{name: "blank entries", headers: []string{" "}, secrets: []string{""}, want: false},
		{name: "headers", headers: []string{"cookie"}, want: true},
		{name: "secrets", secrets: []string{"s"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New("", tt.headers, tt.secrets).Enabled(); got != tt.want {
				t.Errorf("Enabled() = %t, want %t", got, tt.want)
			}
		})
	}
}
