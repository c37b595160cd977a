package ecs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jacoelho/ecslog/internal/ratelimit"
)

// Attribute keys the handler lifts out of a record into their ECS fields.
// Any other attribute ends up under labels.
const (
	KeyHTTP   = "http"
	KeyUser   = "user"
	KeyTxID   = "tx_id"
	KeyError  = "error"
	KeyTags   = "tags"
	KeyDevice = "device"
)

type HandlerOptions struct {
	// Level defaults to slog.LevelInfo.
	Level slog.Leveler

	// Limiter throttles written lines. Nil writes everything.
	Limiter *ratelimit.Limiter

	// Block waits for the limiter instead of dropping the line.
	Block bool
}

// Handler is a slog.Handler writing one ECS document per line.
type Handler struct {
	transformer *Transformer
	out         *output
	opts        HandlerOptions
	attrs       []scopedAttr
	groups      []string
}

// output is shared by every handler derived through WithAttrs/WithGroup.
type output struct {
	mu sync.Mutex
	w  io.Writer
}

type scopedAttr struct {
	prefix string
	attr   slog.Attr
}

func NewHandler(w io.Writer, t *Transformer, opts *HandlerOptions) *Handler {
	h := &Handler{
		transformer: t,
		out:         &output{w: w},
	}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if limiter := h.opts.Limiter; limiter != nil {
		if h.opts.Block {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		} else if !limiter.Allow() {
			return nil
		}
	}

	info := Info{
		Time:    r.Time,
		Level:   LevelName(r.Level),
		Message: r.Message,
	}

	for _, sa := range h.attrs {
		h.apply(&info, sa.prefix, sa.attr)
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		h.apply(&info, prefix, a)
		return true
	})

	if info.TxID == "" {
		info.TxID = TxIDFromContext(ctx)
	}

	entry, err := h.transformer.Transform(info)
	if err != nil {
		return err
	}

	line := make([]byte, 0, len(entry.Message)+1)
	line = append(line, entry.Message...)
	line = append(line, '\n')

	h.out.mu.Lock()
	defer h.out.mu.Unlock()

	if _, err := h.out.w.Write(line); err != nil {
		return fmt.Errorf("failed to write log line: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	clone := h.clone()
	prefix := h.prefix()
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, scopedAttr{prefix: prefix, attr: a})
	}
	return clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

// Dropped reports how many lines the limiter turned away.
func (h *Handler) Dropped() uint64 {
	if h.opts.Limiter == nil {
		return 0
	}
	return h.opts.Limiter.Dropped()
}

func (h *Handler) clone() *Handler {
	return &Handler{
		transformer: h.transformer,
		out:         h.out,
		opts:        h.opts,
		attrs:       slices.Clone(h.attrs),
		groups:      slices.Clone(h.groups),
	}
}

func (h *Handler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

// apply routes one attribute. Reserved keys only count outside groups.
func (h *Handler) apply(info *Info, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range group {
			h.apply(info, prefix, member)
		}
		return
	}

	if prefix == "" && reserve(info, a) {
		return
	}

	if info.Labels == nil {
		info.Labels = map[string]any{}
	}
	info.Labels[prefix+a.Key] = a.Value.Any()
}

// reserve fills the Info field a stands for and reports whether it did.
// An attribute with a reserved key but an unexpected type is a label.
func reserve(info *Info, a slog.Attr) bool {
	v := a.Value.Any()

	switch a.Key {
	case KeyHTTP:
		switch hc := v.(type) {
		case *HTTPContext:
			info.HTTP = hc
			return true
		case HTTPContext:
			info.HTTP = &hc
			return true
		}
	case KeyUser:
		info.User = v
		return true
	case KeyTxID:
		if a.Value.Kind() == slog.KindString {
			info.TxID = a.Value.String()
			return true
		}
	case KeyError:
		if err, ok := v.(error); ok {
			info.Err = err
			return true
		}
	case KeyTags:
		if tags, ok := v.([]string); ok {
			info.Tags = tags
			return true
		}
	case KeyDevice:
		switch d := v.(type) {
		case *Device:
			info.Device = d
			return true
		case Device:
			info.Device = &d
			return true
		}
	}

	return false
}

// LevelName renders the ECS log.level value for a slog level.
func LevelName(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelInfo:
		return "info"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return strings.ToLower(level.String())
	}
}
