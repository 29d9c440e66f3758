package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
)

// Timeout gives each request a deadline. If the handler has not started its
// response by then the client gets a JSON 504 and later writes from the
// handler fail with http.ErrHandlerTimeout. The handler goroutine is not
// stopped; it sees the cancelled context.
func Timeout(limit time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			gw := &guardedWriter{w: w, header: make(http.Header)}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				if ctx.Err() == nil || !gw.expire() {
					return
				}
			case <-ctx.Done():
				if !gw.expire() {
					<-done
					return
				}
			}
			logger.FromContext(r.Context()).Warn("request deadline exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"limit", limit,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGatewayTimeout)
			json.NewEncoder(w).Encode(map[string]string{
				"error":      "request timed out",
				"request_id": logger.RequestID(r.Context()),
			})
		})
	}
}

// guardedWriter lets exactly one party own the response: the handler once it
// writes, or the middleware once the deadline expires first. The handler's
// headers are staged privately and copied out on its first write.
type guardedWriter struct {
	w       http.ResponseWriter
	header  http.Header
	mu      sync.Mutex
	started bool
	expired bool
}

func (g *guardedWriter) Header() http.Header { return g.header }

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired || g.started {
		return
	}
	g.start()
	g.w.WriteHeader(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !g.started {
		g.start()
	}
	return g.w.Write(b)
}

func (g *guardedWriter) start() {
	g.started = true
	dst := g.w.Header()
	for k, v := range g.header {
		dst[k] = v
	}
}

// expire claims the response for the middleware. It fails when the handler
// already started writing, in which case the handler finishes the response.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return false
	}
	g.expired = true
	return true
}
