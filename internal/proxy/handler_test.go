package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/miniogate/internal/metrics"
	"github.com/maxiofs/miniogate/internal/resolver"
	"github.com/maxiofs/miniogate/internal/signer"
)

const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func testUpstream(t *testing.T, ts *httptest.Server) Upstream {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Upstream{Protocol: "http", Host: u.Hostname(), Port: port}
}

func newTestHandler(t *testing.T, upstream Upstream, bucket string, routes []resolver.Route) *Handler {
	t.Helper()
	rslv, err := resolver.New(bucket, upstream.Path, "")
	require.NoError(t, err)

	sgn := signer.NewWithClock(signer.Credentials{
		AccessKey: "minioadmin",
		SecretKey: "minioadmin-secret",
		Region:    "us-east-1",
		Service:   "s3",
	}, func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) })

	client := &http.Client{Timeout: 5 * time.Second}
	return New(upstream, resolver.NewTable(routes), rslv, sgn, client, metrics.New())
}

func TestHandlerSignsAndInjectsBucket(t *testing.T) {
	var received *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Clone(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	upstream := testUpstream(t, ts)
	h := newTestHandler(t, upstream, "test", nil)

	req := httptest.NewRequest(http.MethodGet, "/sample.txt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, received)

	assert.Equal(t, "/test/sample.txt", received.URL.Path)
	assert.True(t, strings.HasPrefix(received.Header.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=minioadmin/20240115/us-east-1/s3/aws4_request"))
	assert.Equal(t, "20240115T120000Z", received.Header.Get("X-Amz-Date"))
	assert.Equal(t, emptyPayloadHash, received.Header.Get("X-Amz-Content-Sha256"))
	assert.Equal(t, upstream.HostHeader(), received.Host)
}

func TestHandlerRouteStripping(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer ts.Close()

	routes := []resolver.Route{{Paths: []string{"/minio"}, StripPath: true}}
	h := newTestHandler(t, testUpstream(t, ts), "test", routes)

	req := httptest.NewRequest(http.MethodGet, "/minio/test/sample.txt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Stripped prefix, bucket already present: no duplication.
	assert.Equal(t, "/test/sample.txt", gotPath)
}

func TestHandlerForwardsBodyAndQuery(t *testing.T) {
	var (
		gotBody  []byte
		gotQuery string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotQuery = r.URL.RawQuery
	}))
	defer ts.Close()

	h := newTestHandler(t, testUpstream(t, ts), "", nil)

	req := httptest.NewRequest(http.MethodPut, "/sample.txt?partNumber=1&uploadId=abc", strings.NewReader("payload"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "payload", string(gotBody))
	assert.Equal(t, "partNumber=1&uploadId=abc", gotQuery)
}

func TestHandlerStripsHopByHopRequestHeaders(t *testing.T) {
	var received http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
	}))
	defer ts.Close()

	h := newTestHandler(t, testUpstream(t, ts), "", nil)

	req := httptest.NewRequest(http.MethodGet, "/sample.txt", nil)
	req.Header.Set("Proxy-Authorization", "Basic c3RhbGU=")
	req.Header.Set("Connection", "X-Hop-Secret")
	req.Header.Set("X-Hop-Secret", "drop-me")
	req.Header.Set("X-Keep", "keep-me")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, received.Get("Proxy-Authorization"))
	assert.Empty(t, received.Get("X-Hop-Secret"))
	assert.Equal(t, "keep-me", received.Get("X-Keep"))
}

func TestHandlerRelaysResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Proxy-Authenticate", "Basic")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("chunk of object"))
	}))
	defer ts.Close()

	h := newTestHandler(t, testUpstream(t, ts), "", nil)

	req := httptest.NewRequest(http.MethodGet, "/sample.txt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Header().Get("Proxy-Authenticate"), "hop-by-hop response header must not be forwarded")
	assert.Equal(t, "chunk of object", rec.Body.String())
}

func TestHandlerUpstreamUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream := testUpstream(t, ts)
	ts.Close() // nothing listens anymore

	h := newTestHandler(t, upstream, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/sample.txt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream unavailable")
}

func TestStripHopByHop(t *testing.T) {
	h := http.Header{
		"Connection":        []string{"X-Custom-Hop"},
		"Keep-Alive":        []string{"timeout=5"},
		"Transfer-Encoding": []string{"chunked"},
		"Upgrade":           []string{"h2c"},
		"Te":                []string{"trailers"},
		"Trailers":          []string{"X-Trailer"},
		"X-Custom-Hop":      []string{"v"},
		"Content-Type":      []string{"text/plain"},
	}

	stripHopByHop(h)

	for _, name := range append(hopByHopHeaders, "X-Custom-Hop") {
		assert.Empty(t, h.Get(name), "header %s should be stripped", name)
	}
	assert.Equal(t, "text/plain", h.Get("Content-Type"))
}
