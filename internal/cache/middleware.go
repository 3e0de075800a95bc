package cache

import (
	"net/http"
	"time"
)

// KeyFunc derives the cache key of a request.
type KeyFunc func(r *http.Request) string

// RequestKey keys a request by its URI.
func RequestKey(r *http.Request) string {
	return KeyPrefix + r.URL.RequestURI()
}

// Middleware serves GET requests from the cache and stores successful
// responses for ttl, or until the response's Expires header when that comes
// sooner. Other methods pass through untouched.
func (c *ResponseCache) Middleware(ttl time.Duration, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = RequestKey
	}
	return func(next http.Handler) http.Handler {
		if c == nil || ttl <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			k := key(r)
			if e, ok := c.get(k); ok {
				for name, values := range e.header {
					w.Header()[name] = values
				}
				w.Header().Set(HeaderName, "HIT")
				w.WriteHeader(e.status)
				_, _ = w.Write(e.body)
				return
			}

			w.Header().Set(HeaderName, "MISS")
			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 300 {
				return
			}
			expiresAt, ok := c.expiry(w.Header(), ttl)
			if !ok {
				return
			}
			header := make(http.Header)
			for _, name := range []string{"Content-Type", "Expires"} {
				if v := w.Header().Get(name); v != "" {
					header.Set(name, v)
				}
			}
			c.set(k, entry{
				status:    rec.status,
				header:    header,
				body:      append([]byte(nil), rec.body.Bytes()...),
				expiresAt: expiresAt,
			})
		})
	}
}

// expiry returns when a response stored now stops being served. It reports
// false when the response has already expired.
func (c *ResponseCache) expiry(header http.Header, ttl time.Duration) (time.Time, bool) {
	now := c.now()
	expiresAt := now.Add(ttl)
	if v := header.Get("Expires"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			if !t.After(now) {
				return time.Time{}, false
			}
			if t.Before(expiresAt) {
				expiresAt = t
			}
		}
	}
	return expiresAt, true
}

// InvalidateOnSuccess clears patterns after a non-GET request completes
// with a 2xx status.
func (c *ResponseCache) InvalidateOnSuccess(patterns ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil || len(patterns) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			rec := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 || (rec.status >= 200 && rec.status < 300) {
				for _, pattern := range patterns {
					c.Invalidate(pattern)
				}
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}
