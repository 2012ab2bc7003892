package httputil

import (
	"net"
	"net/http"

	"github.com/tendant/storefront-api/pkg/domain"
)

// ClientIP returns the host part of RemoteAddr. Forwarded headers are not
// read here; deployments behind a trusted proxy rewrite RemoteAddr with
// chi's RealIP middleware first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionMetadata captures the client context recorded on a new session.
func SessionMetadata(r *http.Request) domain.SessionMetadata {
	return domain.SessionMetadata{
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
