package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxiofs/miniogate/internal/metrics"
	"github.com/maxiofs/miniogate/internal/resolver"
	"github.com/maxiofs/miniogate/internal/signer"
)

// ErrUpstreamUnavailable marks dispatch failures caused by the storage
// endpoint being unreachable, as opposed to gateway-side errors.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// hopByHopHeaders must not cross a proxy boundary, in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler proxies inbound S3-style requests to the upstream endpoint with
// a fresh SigV4 signature per request. The request body is fully buffered;
// streaming signatures are not supported.
type Handler struct {
	upstream Upstream
	routes   *resolver.Table
	resolver *resolver.Resolver
	signer   *signer.Signer
	client   *http.Client
	metrics  *metrics.Metrics
}

// New creates a proxy handler. The client's timeout bounds the whole
// upstream exchange; signing itself performs no I/O.
func New(upstream Upstream, routes *resolver.Table, rslv *resolver.Resolver, sgn *signer.Signer, client *http.Client, m *metrics.Metrics) *Handler {
	return &Handler{
		upstream: upstream,
		routes:   routes,
		resolver: rslv,
		signer:   sgn,
		client:   client,
		metrics:  m,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read request body")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()

	// Resolve against the escaped path so the signed bytes and the wire
	// bytes are the same string.
	route := h.routes.Match(r.URL.EscapedPath())
	signingPath, requestURI := h.resolver.Resolve(r.URL.EscapedPath(), route, r.URL.RawQuery)

	inbound := r.Header.Clone()
	stripHopByHop(inbound)

	signStart := time.Now()
	signed := h.signer.Sign(signer.Request{
		Method:   r.Method,
		Path:     signingPath,
		RawQuery: r.URL.RawQuery,
		Headers:  inbound,
		Body:     body,
	}, h.upstream.HostHeader())
	if h.metrics != nil {
		h.metrics.SigningDuration.Observe(time.Since(signStart).Seconds())
	}

	target := h.upstream.BaseURL() + requestURI
	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, bytes.NewReader(body))
	if err != nil {
		logrus.WithError(err).WithField("target", target).Error("Failed to build upstream request")
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return
	}
	upstreamReq.Header = signed
	upstreamReq.Host = h.upstream.HostHeader()
	upstreamReq.ContentLength = int64(len(body))

	start := time.Now()
	resp, err := h.client.Do(upstreamReq)
	if h.metrics != nil {
		h.metrics.UpstreamLatency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"target": target,
		}).Error("Upstream request failed")
		http.Error(w, ErrUpstreamUnavailable.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logrus.WithError(err).Debug("Failed to relay response body")
	}

	logrus.WithFields(logrus.Fields{
		"method":       r.Method,
		"path":         r.URL.Path,
		"signing_path": signingPath,
		"status":       resp.StatusCode,
	}).Debug("Proxied request")
}

// stripHopByHop removes hop-by-hop headers, including any named by the
// Connection header itself.
func stripHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// copyResponseHeaders relays upstream response headers minus hop-by-hop
// ones.
func copyResponseHeaders(dst, src http.Header) {
	relayed := src.Clone()
	stripHopByHop(relayed)
	for name, values := range relayed {
		for _, value := range values {
			dst.Add(name, value)
		}
	}
}
