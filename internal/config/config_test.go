package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jacoelho/ecslog/internal/exit"
	"github.com/jacoelho/ecslog/internal/safejson"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	t.Setenv("HOSTNAME", "test-host")

	dir := t.TempDir()
	input := writeFile(t, dir, "input.yaml", "a: 1\n")
	configFile := writeFile(t, dir, "ecslog.yaml", `
service:
  name: billing
host:
  name: node-1
ecs:
  version: 8.11.0
tags: [api, billing]
level: warn
placeholder: type
indent: 4
rate_limit: 50
burst: 10
generate_trace_id: true
listen: ":9000"
redact:
  salt: pepper
  headers: [authorization]
  values: [hunter2]
`)

	tests := []struct {
		name         string
		args         []string
		want         *Config
		wantExitCode int
		wantStdout   bool
		wantContains string
	}{
		{
			name:         "no arguments",
			args:         []string{},
			wantExitCode: 1,
			wantContains: ErrNoArguments.Error(),
		},
		{
			name:         "no command",
			args:         []string{"ecslog"},
			wantExitCode: 1,
			wantContains: ErrNoCommand.Error(),
		},
		{
			name:         "help",
			args:         []string{"ecslog", "--help"},
			wantExitCode: 0,
			wantStdout:   true,
			wantContains: "Usage:",
		},
		{
			name:         "subcommand help",
			args:         []string{"ecslog", "encode", "-h"},
			wantExitCode: 0,
			wantStdout:   true,
			wantContains: "Usage:",
		},
		{
			name:         "unknown command",
			args:         []string{"ecslog", "tail"},
			wantExitCode: 1,
			wantContains: "unknown command: tail",
		},
		{
			name: "serve defaults",
			args: []string{"ecslog", "serve"},
			want: &Config{
				Command:    CommandServe,
				HostName:   "test-host",
				ECSVersion: "8.10.0",
				Tags:       []string{"request"},
				Level:      slog.LevelInfo,
				Listen:     DefaultListen,
				Burst:      1,
			},
		},
		{
			name: "serve flags",
			args: []string{"ecslog", "serve", "-listen", "127.0.0.1:0", "-service", "api", "-tags", "a, b,,c", "-rate-limit", "5", "-burst", "3", "-generate-trace-id", "-level", "debug"},
			want: &Config{
				Command:         CommandServe,
				ServiceName:     "api",
				HostName:        "test-host",
				ECSVersion:      "8.10.0",
				Tags:            []string{"a", "b", "c"},
				Level:           slog.LevelDebug,
				Listen:          "127.0.0.1:0",
				RateLimit:       5,
				Burst:           3,
				GenerateTraceID: true,
			},
		},
		{
			name: "config file",
			args: []string{"ecslog", "serve", "-config", configFile},
			want: &Config{
				Command:         CommandServe,
				ServiceName:     "billing",
				HostName:        "node-1",
				ECSVersion:      "8.11.0",
				Tags:            []string{"api", "billing"},
				Level:           slog.LevelWarn,
				Placeholder:     safejson.TypeTags,
				Indent:          4,
				Listen:          ":9000",
				RateLimit:       50,
				Burst:           10,
				GenerateTraceID: true,
				RedactSalt:      "pepper",
				RedactHeaders:   []string{"authorization"},
				RedactValues:    []string{"hunter2"},
			},
		},
		{
			name: "flags override config file",
			args: []string{"ecslog", "serve", "-config", configFile, "-service", "override", "-placeholder", "path", "-rate-limit", "0", "-redact-headers", "cookie, x-api-key"},
			want: &Config{
				Command:         CommandServe,
				ServiceName:     "override",
				HostName:        "node-1",
				ECSVersion:      "8.11.0",
				Tags:            []string{"api", "billing"},
				Level:           slog.LevelWarn,
				Placeholder:     safejson.PathPlaceholders,
				Indent:          4,
				Listen:          ":9000",
				RateLimit:       0,
				Burst:           10,
				GenerateTraceID: true,
				RedactSalt:      "pepper",
				RedactHeaders:   []string{"cookie", "x-api-key"},
				RedactValues:    []string{"hunter2"},
			},
		},
		{
			name: "encode file",
			args: []string{"ecslog", "encode", "-indent", "2", "-placeholder", "type", input},
			want: &Config{
				Command:     CommandEncode,
				HostName:    "test-host",
				ECSVersion:  "8.10.0",
				Tags:        []string{"request"},
				Level:       slog.LevelInfo,
				Listen:      DefaultListen,
				Burst:       1,
				Placeholder: safejson.TypeTags,
				Indent:      2,
				Input:       input,
			},
		},
		{
			name: "locate stdin",
			args: []string{"ecslog", "locate", "[Circular ~.a]"},
			want: &Config{
				Command:         CommandLocate,
				HostName:        "test-host",
				ECSVersion:      "8.10.0",
				Tags:            []string{"request"},
				Level:           slog.LevelInfo,
				Listen:          DefaultListen,
				Burst:           1,
				PlaceholderText: "[Circular ~.a]",
			},
		},
		{
			name:         "encode too many files",
			args:         []string{"ecslog", "encode", input, input},
			wantExitCode: 1,
			wantContains: ErrTooManyArguments.Error(),
		},
		{
			name:         "serve positional",
			args:         []string{"ecslog", "serve", "extra"},
			wantExitCode: 1,
			wantContains: ErrTooManyArguments.Error(),
		},
		{
			name:         "encode missing file",
			args:         []string{"ecslog", "encode", filepath.Join(dir, "missing.yaml")},
			wantExitCode: 1,
			wantContains: "not found",
		},
		{
			name:         "locate without placeholder",
			args:         []string{"ecslog", "locate"},
			wantExitCode: 1,
			wantContains: ErrMissingPlaceholder.Error(),
		},
		{
			name:         "locate with bad placeholder",
			args:         []string{"ecslog", "locate", "~.a"},
			wantExitCode: 1,
			wantContains: safejson.ErrNotPlaceholder.Error(),
		},
		{
			name:         "negative indent",
			args:         []string{"ecslog", "encode", "-indent", "-1"},
			wantExitCode: 1,
			wantContains: "indent must be between",
		},
		{
			name:         "negative rate limit",
			args:         []string{"ecslog", "serve", "-rate-limit", "-1"},
			wantExitCode: 1,
			wantContains: "rate limit cannot be negative",
		},
		{
			name:         "bad placeholder mode",
			args:         []string{"ecslog", "encode", "-placeholder", "pointer"},
			wantExitCode: 1,
			wantContains: "unknown placeholder mode",
		},
		{
			name:         "bad level",
			args:         []string{"ecslog", "serve", "-level", "loud"},
			wantExitCode: 1,
			wantContains: ErrInvalidConfig.Error(),
		},
		{
			name:         "unknown flag",
			args:         []string{"ecslog", "serve", "-indent", "2"},
			wantExitCode: 1,
			wantContains: "failed to parse arguments",
		},
		{
			name:         "missing config file",
			args:         []string{"ecslog", "serve", "-config", filepath.Join(dir, "nope.yaml")},
			wantExitCode: 1,
			wantContains: "failed to load config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, result := Parse(tt.args)

			if tt.want != nil {
				if result != nil {
					t.Fatalf("Parse() unexpected exit result: %q", result.Message)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("Parse() =\n%+v\nwant\n%+v", got, tt.want)
				}
				return
			}

			if result == nil {
				t.Fatalf("Parse() = %+v, want exit result", got)
			}
			if result.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", result.ExitCode, tt.wantExitCode)
			}
			if toStdout := result.Stream == exit.Stdout; toStdout != tt.wantStdout {
				t.Errorf("Stream = %d, want stdout %t", result.Stream, tt.wantStdout)
			}
			if !strings.Contains(result.Message, tt.wantContains) {
				t.Errorf("Message = %q, want it to contain %q", result.Message, tt.wantContains)
			}
		})
	}
}

func TestDecodeFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		check   func(t *testing.T, f *File)
	}{
		{
			name:    "empty",
			content: "",
			check: func(t *testing.T, f *File) {
				if f.Indent != nil || f.Tags != nil {
					t.Errorf("DecodeFile() = %+v, want zero File", f)
				}
			},
		},
		{
			name:    "explicit zero kept apart from absent",
			content: "indent: 0\ngenerate_trace_id: false\n",
			check: func(t *testing.T, f *File) {
				if f.Indent == nil || *f.Indent != 0 {
					t.Errorf("Indent = %v, want pointer to 0", f.Indent)
				}
				if f.GenerateTraceID == nil || *f.GenerateTraceID {
					t.Errorf("GenerateTraceID = %v, want pointer to false", f.GenerateTraceID)
				}
				if f.RateLimit != nil {
					t.Errorf("RateLimit = %v, want nil", *f.RateLimit)
				}
			},
		},
		{
			name:    "unknown key",
			content: "services:\n  name: x\n",
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "wrong type",
			content: "indent: wide\n",
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFile(strings.NewReader(tt.content))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeFile() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeFile() error = %v", err)
			}
			tt.check(t, f)
		})
	}
}

func TestConfig_Apply(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantErr bool
	}{
		{name: "bad level", file: File{Level: "chatty"}, wantErr: true},
		{name: "bad placeholder", file: File{Placeholder: "ref"}, wantErr: true},
		{name: "empty", file: File{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default(CommandServe).Apply(&tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %t", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Apply() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Encoder(t *testing.T) {
	cfg := Default(CommandEncode)
	cfg.Indent = 2
	cfg.Placeholder = safejson.TypeTags

	type node struct {
		Next *node `json:"next"`
	}
	n := &node{}
	n.Next = n

	indented, err := cfg.Encoder(true).MarshalString(n)
	if err != nil {
		t.Fatalf("MarshalString() error = %v", err)
	}
	if want := "{\n  \"next\": \"[Circular node]\"\n}"; indented != want {
		t.Errorf("indented = %q, want %q", indented, want)
	}

	compact, err := cfg.Encoder(false).MarshalString(n)
	if err != nil {
		t.Fatalf("MarshalString() error = %v", err)
	}
	if want := `{"next":"[Circular node]"}`; compact != want {
		t.Errorf("compact = %q, want %q", compact, want)
	}
}

func TestConfig_TransformerOptions(t *testing.T) {
	cfg := Default(CommandServe)
	cfg.ServiceName = "billing"
	cfg.Indent = 4
	cfg.GenerateTraceID = true

	opts := cfg.TransformerOptions()
	if opts.ServiceName != "billing" || opts.Version != "8.10.0" || !opts.GenerateTraceID {
		t.Errorf("TransformerOptions() = %+v", opts)
	}
	if opts.Encoder == nil {
		t.Fatal("TransformerOptions() must carry an encoder")
	}

	line, err := opts.Encoder.MarshalString(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("MarshalString() error = %v", err)
	}
	if strings.Contains(line, "\n") {
		t.Errorf("log encoder must not indent, got %q", line)
	}
}

func TestConfig_Redactor(t *testing.T) {
	cfg := Default(CommandServe)
	if cfg.Redactor() != nil {
		t.Fatal("Redactor() should be nil without redaction settings")
	}

	cfg.RedactSalt = "pepper"
	cfg.RedactHeaders = []string{"Authorization"}
	r := cfg.Redactor()
	if r == nil {
		t.Fatal("Redactor() = nil, want a redactor")
	}
	if got := r.Header("authorization", "Bearer x"); got == "Bearer x" {
		t.Errorf("Header() = %q, want it hashed", got)
	}
	if cfg.TransformerOptions().Redactor == nil {
		t.Error("TransformerOptions() should carry the redactor")
	}
}
