package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config enables response caching for GET requests. Zero value disables
// caching; callers build it once at startup and pass it down.
type Config struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
}

type Transport struct {
	base http.RoundTripper
	c    *Cache

	keyHeaders []string
}

func NewTransport(base http.RoundTripper, cfg Config) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !cfg.Enabled {
		return base
	}
	return &Transport{
		base: base,
		c:    New(cfg.TTL, cfg.MaxEntries),
		keyHeaders: []string{
			"Authorization",
			"Cookie",
			"Accept",
		},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("httpcache: nil request")
	}
	if !strings.EqualFold(req.Method, http.MethodGet) {
		return t.base.RoundTrip(req)
	}

	key := req.Method + " " + req.URL.String() + " " + fingerprintHeaders(req.Header, t.keyHeaders)

	if ent, ok := t.c.Get(key); ok {
		ttl := t.c.TTL()
		if ttl > 0 && time.Since(ent.storedAt) < ttl {
			return cachedResponse(req, ent), nil
		}

		// TTL expired (or ttl==0): conditional revalidate when the entry
		// carries a validator.
		if ent.revalidatable() {
			req2 := req.Clone(req.Context())
			req2.Header = cloneHeader(req.Header)
			if ent.etag != "" {
				req2.Header.Set("If-None-Match", ent.etag)
			}
			if ent.lastMod != "" {
				req2.Header.Set("If-Modified-Since", ent.lastMod)
			}

			resp, err := t.base.RoundTrip(req2)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotModified {
				t.c.Touch(key, time.Now())
				return cachedResponse(req, ent), nil
			}

			b, _ := io.ReadAll(resp.Body)
			ent2 := t.c.Put(key, resp.StatusCode, resp.Header, b, time.Now())
			return responseWithBody(req, resp, b, ent2.header), nil
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	ent := t.c.Put(key, resp.StatusCode, resp.Header, b, time.Now())
	return responseWithBody(req, resp, b, ent.header), nil
}

func responseWithBody(req *http.Request, resp *http.Response, body []byte, header http.Header) *http.Response {
	r := &http.Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        cloneHeader(header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
	}
	return r
}

func cachedResponse(req *http.Request, ent cacheEntry) *http.Response {
	status := ent.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:        cloneHeader(ent.header),
		Body:          io.NopCloser(bytes.NewReader(ent.body)),
		ContentLength: int64(len(ent.body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
