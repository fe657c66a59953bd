package http

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/session"
)

// DefaultCookieName is the cookie carrying the session id.
const DefaultCookieName = "sid"

// CookieConfig holds the attributes of the session cookie.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// Middleware loads the session before the handler runs and commits it
// when the response starts.
type Middleware struct {
	coord  *session.Coordinator
	cookie CookieConfig
	logger *slog.Logger
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// WithCookie replaces the cookie attributes. An empty name keeps the default.
func WithCookie(cfg CookieConfig) MiddlewareOption {
	return func(m *Middleware) {
		if cfg.Name == "" {
			cfg.Name = m.cookie.Name
		}
		if cfg.Path == "" {
			cfg.Path = m.cookie.Path
		}
		m.cookie = cfg
	}
}

// WithCookieName sets the cookie name.
func WithCookieName(name string) MiddlewareOption {
	return func(m *Middleware) {
		if name != "" {
			m.cookie.Name = name
		}
	}
}

// WithMiddlewareLogger sets the logger.
func WithMiddlewareLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// NewMiddleware returns chi-compatible middleware backed by coord.
func NewMiddleware(coord *session.Coordinator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &Middleware{
		coord: coord,
		cookie: CookieConfig{
			Name:     DefaultCookieName,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m.Handler
}

// Handler wraps next with session loading and committing.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(m.cookie.Name); err == nil {
			sid = c.Value
		}

		defaults := m.coord.DefaultOptions()
		opts := defaults
		// net/http serves every request on its own goroutine.
		opts.Concurrent = true

		id, sess := m.coord.GetSession(r.Context(), sid, opts)
		rs := &requestSession{id: id, sess: sess, opts: &opts}

		cw := &commitWriter{ResponseWriter: w}
		cw.commit = func() {
			if opts.Renew && opts.Drop && defaults.Drop && !rs.dropRequested {
				// Renewing overrides a drop that only came from the defaults.
				opts.Drop = false
			}

			newID, ok := m.coord.SetSession(r.Context(), id, sess, opts)
			if !ok || opts.Defer {
				m.logger.Debug("Session committed without cookie",
					"session_id", id,
					"drop", opts.Drop,
					"defer", opts.Defer,
				)
				return
			}
			if newID == sid && opts.ExpireAfter <= 0 {
				return
			}
			http.SetCookie(w, m.newCookie(newID, opts.ExpireAfter))
		}

		next.ServeHTTP(cw, r.WithContext(withRequestSession(r.Context(), rs)))
		cw.commitOnce()
	})
}

func (m *Middleware) newCookie(id string, expireAfter time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     m.cookie.Name,
		Value:    id,
		Path:     m.cookie.Path,
		Domain:   m.cookie.Domain,
		Secure:   m.cookie.Secure,
		HttpOnly: true,
		SameSite: m.cookie.SameSite,
	}
	if expireAfter > 0 {
		c.MaxAge = int(expireAfter / time.Second)
		c.Expires = time.Now().Add(expireAfter)
	}
	return c
}

// commitWriter commits the session right before the response headers go out.
type commitWriter struct {
	http.ResponseWriter
	commit func()
	once   sync.Once
}

func (cw *commitWriter) commitOnce() {
	cw.once.Do(cw.commit)
}

func (cw *commitWriter) WriteHeader(code int) {
	cw.commitOnce()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.commitOnce()
	return cw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher when the wrapped writer does.
func (cw *commitWriter) Flush() {
	cw.commitOnce()
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (cw *commitWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
