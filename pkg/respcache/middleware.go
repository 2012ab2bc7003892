package respcache

import (
	"bytes"
	"net/http"
	"net/url"
	"path"
	"sort"
	"time"
)

// HeaderName is the response header reporting HIT or MISS.
const HeaderName = "X-Cache"

// Middleware caches successful GET responses of next for ttl. Other methods
// pass through untouched and without an X-Cache header.
func (c *Cache) Middleware(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				c.metrics.observe(resultBypass)
				next.ServeHTTP(w, r)
				return
			}

			key := Key(r)
			if resp, ok := c.Get(key); ok {
				c.metrics.observe(resultHit)
				writeResponse(w, resp, "HIT")
				return
			}

			c.metrics.observe(resultMiss)
			writeResponse(w, c.fill(key, ttl, next, r), "MISS")
		})
	}
}

func (c *Cache) fill(key string, ttl time.Duration, next http.Handler, r *http.Request) *Response {
	if !c.guard {
		return c.capture(key, ttl, next, r)
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		// A caller that lost the race may arrive after the leader stored.
		if resp, ok := c.Get(key); ok {
			return resp, nil
		}
		return c.capture(key, ttl, next, r), nil
	})
	return v.(*Response)
}

// capture runs next into a buffer and stores the result if it succeeded.
func (c *Cache) capture(key string, ttl time.Duration, next http.Handler, r *http.Request) *Response {
	bw := &bufferedWriter{header: make(http.Header)}
	next.ServeHTTP(bw, r)

	resp := bw.response()
	if resp.Status >= 200 && resp.Status < 300 {
		c.Set(key, resp, ttl)
	}
	return resp
}

func writeResponse(w http.ResponseWriter, resp *Response, result string) {
	h := w.Header()
	for k, v := range resp.Header {
		h[k] = append([]string(nil), v...)
	}
	h.Set(HeaderName, result)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// Key returns the cache key for r: the cleaned path followed by the query
// with keys sorted and the values of each key sorted.
func Key(r *http.Request) string {
	p := r.URL.Path
	if p == "" {
		p = "/"
	}
	p = path.Clean(p)

	query := r.URL.Query()
	if len(query) == 0 {
		return p
	}

	canonical := make(url.Values, len(query))
	for k, vs := range query {
		sorted := append([]string(nil), vs...)
		sort.Strings(sorted)
		canonical[k] = sorted
	}
	// Encode sorts by key.
	return p + "?" + canonical.Encode()
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *bufferedWriter) response() *Response {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		Status: status,
		Header: w.header.Clone(),
		Body:   bytes.Clone(w.body.Bytes()),
	}
}
