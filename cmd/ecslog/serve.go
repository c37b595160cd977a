package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jacoelho/ecslog/internal/clock"
	"github.com/jacoelho/ecslog/internal/config"
	"github.com/jacoelho/ecslog/internal/ecs"
	"github.com/jacoelho/ecslog/internal/ratelimit"
	"github.com/jacoelho/ecslog/internal/safejson"
)

const (
	maxEchoBody     = 1 << 20
	shutdownTimeout = 5 * time.Second
)

var lifecycle = slog.Any(ecs.KeyTags, []string{"lifecycle"})

// node is the demo graph served on /cycle. Children point back at their
// parent, which plain encoding/json cannot serialize.
type node struct {
	Name     string  `json:"name"`
	Parent   *node   `json:"parent,omitempty"`
	Children []*node `json:"children,omitempty"`
}

func cycleGraph() *node {
	root := &node{Name: "root"}
	for _, name := range []string{"a", "b"} {
		root.Children = append(root.Children, &node{Name: name, Parent: root})
	}
	return root
}

func newRouter(logger *slog.Logger, enc *safejson.Encoder, now clock.Func) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /cycle", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, enc, http.StatusOK, cycleGraph())
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxEchoBody))
		if err != nil {
			ecs.SetError(r.Context(), err)
			writeJSON(w, r, enc, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}

		var body any
		if len(data) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				ecs.SetError(r.Context(), err)
				writeJSON(w, r, enc, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
				return
			}
		}

		writeJSON(w, r, enc, http.StatusOK, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"tx_id":  ecs.TxIDFromContext(r.Context()),
			"body":   body,
		})
	})

	return ecs.Middleware(logger, ecs.MiddlewareOptions{
		Now:         now,
		CaptureBody: true,
	})(mux)
}

func writeJSON(w http.ResponseWriter, r *http.Request, enc *safejson.Encoder, status int, v any) {
	data, err := enc.Marshal(v)
	if err != nil {
		ecs.SetError(r.Context(), err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// serve runs the demo server until ctx is cancelled. Every request and the
// server's own lifecycle are logged as ECS lines on stdout.
func serve(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	limiter := ratelimit.New(cfg.RateLimit, cfg.Burst)
	handler := ecs.NewHandler(stdout, ecs.New(cfg.TransformerOptions()), &ecs.HandlerOptions{
		Level:   cfg.Level,
		Limiter: limiter,
	})
	logger := slog.New(handler)

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	server := &http.Server{
		Handler:           newRouter(logger, cfg.Encoder(false), nil),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(handler, slog.LevelError),
	}

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(listener)
	}()

	logger.Info("listening", lifecycle,
		slog.String("address", listener.Addr().String()),
		slog.Float64("rate_limit", limiter.Limit()),
		slog.Int("burst", limiter.Burst()),
	)

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", lifecycle, slog.Any(ecs.KeyError, err))
		return fmt.Errorf("failed to shut down: %w", err)
	}

	logger.Info("stopped", lifecycle, slog.Uint64("dropped_lines", handler.Dropped()))
	return nil
}
