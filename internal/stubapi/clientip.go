package stubapi

import (
	"net"
	"net/http"
	"strings"
)

// clientIP extracts the visitor address recorded with a click, checking in order:
// the "X-Forwarded-For" header, the "X-Real-IP" header and the request's RemoteAddr.
// "unknown" header values are skipped.
func clientIP(request *http.Request) string {
	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		value := strings.TrimSpace(request.Header.Get(header))
		if value == "" || strings.EqualFold(value, "unknown") {
			continue
		}
		first, _, _ := strings.Cut(value, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}
