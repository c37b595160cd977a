package ecs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/jacoelho/ecslog/internal/clock"
)

// RequestIDHeader carries the transaction id in and out of a request.
const RequestIDHeader = "X-Request-Id"

const defaultMaxBody = 64 << 10

type MiddlewareOptions struct {
	Now clock.Func

	// CaptureBody records JSON request bodies up to MaxBody bytes.
	CaptureBody bool
	MaxBody     int64

	// User, when set, extracts the user.* value for a request.
	User func(*http.Request) any
}

type contextKey struct{}

// requestState is what a handler can attach to the in-flight request log.
type requestState struct {
	mu   sync.Mutex
	txID string
	err  error
	user any
}

func withState(ctx context.Context, s *requestState) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func stateFrom(ctx context.Context) *requestState {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(contextKey{}).(*requestState)
	return s
}

// TxIDFromContext returns the transaction id Middleware assigned, or "".
func TxIDFromContext(ctx context.Context) string {
	if s := stateFrom(ctx); s != nil {
		return s.txID
	}
	return ""
}

// SetError attaches err to the request log line. It is a no-op outside
// Middleware.
func SetError(ctx context.Context, err error) {
	if s := stateFrom(ctx); s != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

// SetUser overrides the user.* value for the request log line.
func SetUser(ctx context.Context, user any) {
	if s := stateFrom(ctx); s != nil {
		s.mu.Lock()
		s.user = user
		s.mu.Unlock()
	}
}

// Middleware logs one ECS record per request through logger.
func Middleware(logger *slog.Logger, opts MiddlewareOptions) func(http.Handler) http.Handler {
	now := clock.Or(opts.Now)
	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := now()

			txID := r.Header.Get(RequestIDHeader)
			if txID == "" {
				txID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, txID)

			state := &requestState{txID: txID}
			if opts.User != nil {
				state.user = opts.User(r)
			}
			r = r.WithContext(withState(r.Context(), state))

			var body any
			if opts.CaptureBody {
				body = captureBody(r, maxBody)
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := now().Sub(start).Milliseconds()

			state.mu.Lock()
			err, user := state.err, state.user
			state.mu.Unlock()

			attrs := []slog.Attr{
				slog.Any(KeyHTTP, &HTTPContext{
					Request:        r,
					Body:           body,
					Status:         status,
					ResponseHeader: rec.Header().Clone(),
				}),
				slog.String(KeyTxID, txID),
			}
			if user != nil {
				attrs = append(attrs, slog.Any(KeyUser, user))
			}
			if err != nil {
				attrs = append(attrs, slog.Any(KeyError, err))
			}

			message := fmt.Sprintf("[%s, %s] -> %s\r\n<- %d - %dms", r.Method, txID, r.URL.Path, status, elapsed)
			logger.LogAttrs(r.Context(), LevelForStatus(status), message, attrs...)
		})
	}
}

// LevelForStatus maps 5xx to error, 4xx to warn and everything else to info.
func LevelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// captureBody reads up to limit bytes and puts them back in front of the
// remaining body. Only a complete, valid JSON payload is returned.
func captureBody(r *http.Request, limit int64) any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(data), r.Body),
		Closer: r.Body,
	}
	if err != nil || len(data) == 0 || int64(len(data)) > limit || !json.Valid(data) {
		return nil
	}
	return json.RawMessage(data)
}

type readCloser struct {
	io.Reader
	io.Closer
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(p)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
