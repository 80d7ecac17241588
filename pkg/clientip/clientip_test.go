package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/flowkit/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"cloudflare first", map[string]string{"CF-Connecting-IP": "203.0.113.5", "X-Real-IP": "198.51.100.1"}, "10.0.0.1:1", "203.0.113.5"},
		{"forwarded for leftmost", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.1"}, "10.0.0.1:1", "198.51.100.1"},
		{"invalid header skipped", map[string]string{"X-Forwarded-For": "garbage", "X-Real-IP": "198.51.100.2"}, "10.0.0.1:1", "198.51.100.2"},
		{"unspecified rejected", map[string]string{"X-Real-IP": "0.0.0.0"}, "10.0.0.1:1", "10.0.0.1"},
		{"ipv6", map[string]string{"X-Real-IP": "2001:db8::1"}, "10.0.0.1:1", "2001:db8::1"},
		{"unparseable remote addr", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(req))
		})
	}
}
