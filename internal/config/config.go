package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/jacoelho/ecslog/internal/ecs"
	"github.com/jacoelho/ecslog/internal/exit"
	"github.com/jacoelho/ecslog/internal/redact"
	"github.com/jacoelho/ecslog/internal/safejson"
)

const (
	CommandServe  = "serve"
	CommandEncode = "encode"
	CommandLocate = "locate"

	// DefaultListen is the serve address when neither flag nor file set one.
	DefaultListen = ":8080"

	maxIndent = 16
)

var (
	ErrNoArguments        = errors.New("no arguments provided")
	ErrNoCommand          = errors.New("no command specified")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrTooManyArguments   = errors.New("too many arguments")
	ErrMissingPlaceholder = errors.New("missing placeholder argument")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config is the resolved configuration for one ecslog invocation.
type Config struct {
	Command string

	ServiceName string
	HostName    string
	ECSVersion  string
	Tags        []string
	Level       slog.Level

	Placeholder safejson.PlaceholderMode
	Indent      int

	// Redaction of logged headers, bodies and URLs
	RedactSalt    string
	RedactHeaders []string
	RedactValues  []string

	// Serve
	Listen          string
	RateLimit       float64 // Lines per second (0 = unlimited)
	Burst           int
	GenerateTraceID bool

	// Encode and locate
	Input           string // Empty reads stdin
	PlaceholderText string
}

// File mirrors the YAML configuration file. Pointer fields tell an absent
// key apart from a zero value.
type File struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	Host struct {
		Name string `yaml:"name"`
	} `yaml:"host"`
	ECS struct {
		Version string `yaml:"version"`
	} `yaml:"ecs"`
	Tags            []string `yaml:"tags"`
	Level           string   `yaml:"level"`
	Placeholder     string   `yaml:"placeholder"`
	Indent          *int     `yaml:"indent"`
	RateLimit       *float64 `yaml:"rate_limit"`
	Burst           *int     `yaml:"burst"`
	GenerateTraceID *bool    `yaml:"generate_trace_id"`
	Listen          string   `yaml:"listen"`
	Redact          struct {
		Salt    string   `yaml:"salt"`
		Headers []string `yaml:"headers"`
		Values  []string `yaml:"values"`
	} `yaml:"redact"`
}

// Default returns the configuration used before any file or flag applies.
func Default(command string) *Config {
	return &Config{
		Command:    command,
		HostName:   os.Getenv("HOSTNAME"),
		ECSVersion: ecs.Version,
		Tags:       append([]string(nil), ecs.DefaultTags...),
		Level:      slog.LevelInfo,
		Listen:     DefaultListen,
		Burst:      1,
	}
}

// LoadFile decodes a YAML configuration file. Unknown keys are rejected and
// an empty file yields an empty File.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	return DecodeFile(f)
}

func DecodeFile(r io.Reader) (*File, error) {
	var file File

	decoder := yaml.NewDecoder(r, yaml.DisallowUnknownField())
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &file, nil
}

// Apply overlays every key present in file onto c.
func (c *Config) Apply(file *File) error {
	if file.Service.Name != "" {
		c.ServiceName = file.Service.Name
	}
	if file.Host.Name != "" {
		c.HostName = file.Host.Name
	}
	if file.ECS.Version != "" {
		c.ECSVersion = file.ECS.Version
	}
	if file.Tags != nil {
		c.Tags = file.Tags
	}
	if file.Level != "" {
		if err := c.Level.UnmarshalText([]byte(file.Level)); err != nil {
			return fmt.Errorf("%w: level: %v", ErrInvalidConfig, err)
		}
	}
	if file.Placeholder != "" {
		mode, ok := safejson.ParsePlaceholderMode(file.Placeholder)
		if !ok {
			return fmt.Errorf("%w: unknown placeholder mode %q", ErrInvalidConfig, file.Placeholder)
		}
		c.Placeholder = mode
	}
	if file.Indent != nil {
		c.Indent = *file.Indent
	}
	if file.RateLimit != nil {
		c.RateLimit = *file.RateLimit
	}
	if file.Burst != nil {
		c.Burst = *file.Burst
	}
	if file.GenerateTraceID != nil {
		c.GenerateTraceID = *file.GenerateTraceID
	}
	if file.Listen != "" {
		c.Listen = file.Listen
	}
	if file.Redact.Salt != "" {
		c.RedactSalt = file.Redact.Salt
	}
	if file.Redact.Headers != nil {
		c.RedactHeaders = file.Redact.Headers
	}
	if file.Redact.Values != nil {
		c.RedactValues = file.Redact.Values
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Indent < 0 || c.Indent > maxIndent {
		return fmt.Errorf("%w: indent must be between 0 and %d, got %d", ErrInvalidConfig, maxIndent, c.Indent)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit cannot be negative, got %v", ErrInvalidConfig, c.RateLimit)
	}
	if c.Burst < 1 {
		return fmt.Errorf("%w: burst must be at least 1, got %d", ErrInvalidConfig, c.Burst)
	}
	if c.Command == CommandServe && c.Listen == "" {
		return fmt.Errorf("%w: listen address cannot be empty", ErrInvalidConfig)
	}
	if c.Command == CommandLocate {
		if _, ok := safejson.ParsePlaceholder(c.PlaceholderText); !ok {
			return fmt.Errorf("%w: %q", safejson.ErrNotPlaceholder, c.PlaceholderText)
		}
	}
	if c.Input != "" {
		if _, err := os.Stat(c.Input); err != nil {
			return fmt.Errorf("input file %s not found: %w", c.Input, err)
		}
	}
	return nil
}

// Encoder builds the document encoder. Log lines never use indentation.
func (c *Config) Encoder(indented bool) *safejson.Encoder {
	opts := []safejson.Option{safejson.WithPlaceholderMode(c.Placeholder)}
	if indented && c.Indent > 0 {
		opts = append(opts, safejson.WithIndent("", strings.Repeat(" ", c.Indent)))
	}
	return safejson.NewEncoder(opts...)
}

// TransformerOptions maps the configuration onto the ECS mapper.
func (c *Config) TransformerOptions() ecs.Options {
	return ecs.Options{
		ServiceName:     c.ServiceName,
		HostName:        c.HostName,
		Version:         c.ECSVersion,
		Tags:            c.Tags,
		Encoder:         c.Encoder(false),
		GenerateTraceID: c.GenerateTraceID,
		Redactor:        c.Redactor(),
	}
}

// Redactor returns nil when nothing is configured for redaction.
func (c *Config) Redactor() *redact.Redactor {
	r := redact.New(c.RedactSalt, c.RedactHeaders, c.RedactValues)
	if !r.Enabled() {
		return nil
	}
	return r
}

// listFlag implements flag.Value for a comma-separated list.
type listFlag struct {
	items []string
}

func (l *listFlag) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(l.items, ",")
}

func (l *listFlag) Set(value string) error {
	l.items = l.items[:0]
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			l.items = append(l.items, item)
		}
	}
	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}
	if len(args) < 2 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoCommand, Usage())
	}

	command := args[1]
	switch command {
	case "-h", "-help", "--help", "help":
		return nil, exit.Success(Usage())
	case CommandServe, CommandEncode, CommandLocate:
	default:
		return nil, exit.Errorf("Error: %v: %s\n\n%s", ErrUnknownCommand, command, Usage())
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)

	var (
		configFile  = fs.String("config", "", "Path to YAML configuration file")
		service     = fs.String("service", "", "Service name (service.name)")
		host        = fs.String("host", "", "Host name (host.name)")
		placeholder = fs.String("placeholder", "", "Placeholder mode: path or type")
		level       = fs.String("level", "", "Minimum log level")
		tags        = &listFlag{}
		redacted    = &listFlag{}

		listen          *string
		rateLimit       *float64
		burst           *int
		generateTraceID *bool
		indent          *int
	)
	fs.Var(tags, "tags", "Comma-separated default tags")
	fs.Var(redacted, "redact-headers", "Comma-separated headers whose values are hashed in logs")

	switch command {
	case CommandServe:
		listen = fs.String("listen", "", "Listen address (default "+DefaultListen+")")
		rateLimit = fs.Float64("rate-limit", 0, "Log lines per second (0 for unlimited)")
		burst = fs.Int("burst", 0, "Log line burst size")
		generateTraceID = fs.Bool("generate-trace-id", false, "Assign a trace id to log lines without one")
	case CommandEncode, CommandLocate:
		indent = fs.Int("indent", 0, "Indent output by N spaces")
	}

	if err := fs.Parse(args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	cfg := Default(command)

	if *configFile != "" {
		file, err := LoadFile(*configFile)
		if err != nil {
			return nil, exit.Errorf("Error: failed to load config file: %v\n", err)
		}
		if err := cfg.Apply(file); err != nil {
			return nil, exit.Errorf("Error: %v\n", err)
		}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["service"] {
		cfg.ServiceName = *service
	}
	if set["host"] {
		cfg.HostName = *host
	}
	if set["tags"] {
		cfg.Tags = tags.items
	}
	if set["redact-headers"] {
		cfg.RedactHeaders = redacted.items
	}
	if set["level"] {
		if err := cfg.Level.UnmarshalText([]byte(*level)); err != nil {
			return nil, exit.Errorf("Error: %v: level: %v\n", ErrInvalidConfig, err)
		}
	}
	if set["placeholder"] {
		mode, ok := safejson.ParsePlaceholderMode(*placeholder)
		if !ok {
			return nil, exit.Errorf("Error: %v: unknown placeholder mode %q\n", ErrInvalidConfig, *placeholder)
		}
		cfg.Placeholder = mode
	}
	if set["listen"] {
		cfg.Listen = *listen
	}
	if set["rate-limit"] {
		cfg.RateLimit = *rateLimit
	}
	if set["burst"] {
		cfg.Burst = *burst
	}
	if set["generate-trace-id"] {
		cfg.GenerateTraceID = *generateTraceID
	}
	if set["indent"] {
		cfg.Indent = *indent
	}

	rest := fs.Args()
	switch command {
	case CommandServe:
		if len(rest) > 0 {
			return nil, exit.Errorf("Error: %v: %s\n\n%s", ErrTooManyArguments, strings.Join(rest, " "), Usage())
		}
	case CommandEncode:
		if len(rest) > 1 {
			return nil, exit.Errorf("Error: %v: %s\n\n%s", ErrTooManyArguments, strings.Join(rest, " "), Usage())
		}
		if len(rest) == 1 {
			cfg.Input = rest[0]
		}
	case CommandLocate:
		if len(rest) == 0 {
			return nil, exit.Errorf("Error: %v\n\n%s", ErrMissingPlaceholder, Usage())
		}
		if len(rest) > 2 {
			return nil, exit.Errorf("Error: %v: %s\n\n%s", ErrTooManyArguments, strings.Join(rest[2:], " "), Usage())
		}
		cfg.PlaceholderText = rest[0]
		if len(rest) == 2 {
			cfg.Input = rest[1]
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n", err)
	}

	return cfg, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `ecslog - cycle-safe JSON and ECS logging

Usage:
  ecslog serve  [options]
  ecslog encode [options] [FILE]
  ecslog locate [options] PLACEHOLDER [FILE]

Common options:
  --config FILE           YAML configuration file
  --service NAME          service.name of emitted records
  --host NAME             host.name of emitted records (default: $HOSTNAME)
  --tags A,B              Default tags (default: request)
  --level LEVEL           Minimum log level (default: info)
  --placeholder MODE      Back-reference placeholders: path or type (default: path)
  --redact-headers A,B    Headers whose values are hashed in logs
  -h, --help              Show this help message

Serve options:
  --listen ADDR           Listen address (default: :8080)
  --rate-limit N          Log lines per second (0 for unlimited)
  --burst N               Log line burst size (default: 1)
  --generate-trace-id     Assign a trace id to log lines without one

Encode and locate options:
  --indent N              Indent output by N spaces

Examples:
  ecslog serve --listen :9000 --service billing
  ecslog encode graph.yaml                    # YAML or JSON to cycle-safe JSON
  ecslog encode --placeholder type < in.json
  ecslog locate '[Circular ~.children.0]' out.json`
}
