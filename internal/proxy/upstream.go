package proxy

import (
	"net"
	"strconv"
)

// Upstream identifies the storage endpoint requests are signed for and
// forwarded to.
type Upstream struct {
	Protocol string // http or https
	Host     string
	Port     int
	Path     string // service path prefix, usually empty
}

// HostHeader returns host[:port] for the Host header and URL authority.
// The protocol's default port (80/443) is omitted; it must not appear in
// the signed Host value either, or the upstream computes a different
// signature.
func (u Upstream) HostHeader() string {
	if u.Port == 0 {
		return u.Host
	}
	if (u.Protocol == "http" && u.Port == 80) || (u.Protocol == "https" && u.Port == 443) {
		return u.Host
	}
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// BaseURL returns protocol://host[:port] without a trailing slash.
func (u Upstream) BaseURL() string {
	return u.Protocol + "://" + u.HostHeader()
}
