package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		ipHeader string
		headers  map[string]string
		expected string
	}{
		{
			name:     "authenticated user wins over headers",
			userID:   "u-1",
			ipHeader: HeaderCFConnectingIP,
			headers: map[string]string{
				HeaderCFConnectingIP: "1.1.1.1",
				HeaderXForwardedFor:  "2.2.2.2",
			},
			expected: "user:u-1",
		},
		{
			name:     "trusted proxy header before forwarded-for",
			ipHeader: HeaderCFConnectingIP,
			headers: map[string]string{
				HeaderCFConnectingIP: "1.1.1.1",
				HeaderXForwardedFor:  "2.2.2.2",
			},
			expected: "ip:1.1.1.1",
		},
		{
			name:     "custom proxy header",
			ipHeader: "X-Real-IP",
			headers:  map[string]string{"X-Real-IP": "3.3.3.3"},
			expected: "ip:3.3.3.3",
		},
		{
			name:     "first forwarded-for entry trimmed",
			ipHeader: HeaderCFConnectingIP,
			headers:  map[string]string{HeaderXForwardedFor: " 10.0.0.1 , 10.0.0.2"},
			expected: "ip:10.0.0.1",
		},
		{
			name:     "single forwarded-for entry",
			headers:  map[string]string{HeaderXForwardedFor: "10.0.0.9"},
			expected: "ip:10.0.0.9",
		},
		{
			name:     "empty first forwarded-for entry",
			headers:  map[string]string{HeaderXForwardedFor: " ,10.0.0.2"},
			expected: UnknownCaller,
		},
		{
			name:     "no identity at all",
			ipHeader: HeaderCFConnectingIP,
			expected: UnknownCaller,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:1234"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.userID != "" {
				req = req.WithContext(WithUserID(req.Context(), tt.userID))
			}

			assert.Equal(t, tt.expected, ClientIdentifier(req, tt.ipHeader))
		})
	}
}
