package middleware

import (
	"net/http"
	"strings"
)

const (
	// HeaderCFConnectingIP is the client address header set by Cloudflare.
	HeaderCFConnectingIP = "CF-Connecting-IP"
	// HeaderXForwardedFor is the header name for forwarded client IP.
	HeaderXForwardedFor = "X-Forwarded-For"

	// UnknownCaller is the shared bucket for requests with no identity.
	UnknownCaller = "ip:unknown"
)

// ClientIdentifier derives the caller key used for rate limiting.
//
// An authenticated user always wins. Otherwise the address from the trusted
// proxy header ipHeader is used, then the first X-Forwarded-For entry. With
// neither, every such caller shares the UnknownCaller bucket.
func ClientIdentifier(r *http.Request, ipHeader string) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}

	if ipHeader != "" {
		if ip := strings.TrimSpace(r.Header.Get(ipHeader)); ip != "" {
			return "ip:" + ip
		}
	}

	if xff := r.Header.Get(HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "ip:" + ip
		}
	}

	return UnknownCaller
}
