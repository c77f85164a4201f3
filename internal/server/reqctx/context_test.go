package reqctx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "X-Forwarded-For single IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195"},
			remoteAddr: "127.0.0.1:8080",
			want:       "203.0.113.195",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18, 150.172.238.178"},
			remoteAddr: "127.0.0.1:8080",
			want:       "203.0.113.195",
		},
		{
			name:       "X-Forwarded-For with spaces",
			headers:    map[string]string{"X-Forwarded-For": "  203.0.113.195  "},
			remoteAddr: "127.0.0.1:8080",
			want:       "203.0.113.195",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.195"},
			remoteAddr: "127.0.0.1:8080",
			want:       "203.0.113.195",
		},
		{
			name:       "X-Forwarded-For takes precedence over X-Real-IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.195", "X-Real-IP": "10.0.0.1"},
			remoteAddr: "127.0.0.1:8080",
			want:       "203.0.113.195",
		},
		{
			name:       "RemoteAddr with port",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.1",
			want:       "192.168.1.1",
		},
		{
			name:       "IPv6 RemoteAddr with port",
			remoteAddr: "[::1]:8080",
			want:       "::1",
		},
		{
			name:       "IPv6 RemoteAddr without port",
			remoteAddr: "[::1]",
			want:       "::1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{Header: http.Header{}, RemoteAddr: tt.remoteAddr}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/movies", http.NoBody)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("User-Agent", "player/1.0")
	ctx := FromRequest(r)
	if got := ClientIP(ctx); got != "10.1.2.3" {
		t.Errorf("ClientIP() = %q", got)
	}
	if got := UserAgent(ctx); got != "player/1.0" {
		t.Errorf("UserAgent() = %q", got)
	}
	if RequestID(ctx) == 0 {
		t.Error("RequestID() is zero")
	}
	if RequestID(FromRequest(r)) == RequestID(ctx) {
		t.Error("request IDs are not unique")
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := t.Context()
	if ClientIP(ctx) != "" || UserAgent(ctx) != "" || RequestID(ctx) != 0 {
		t.Error("values set on an empty context")
	}
}
