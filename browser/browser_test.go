package browser

import (
	"errors"
	"testing"
	"time"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection reset", errors.New("net::ERR_CONNECTION_RESET"), true},
		{"connection refused", errors.New("page load error net::ERR_CONNECTION_REFUSED"), true},
		{"connection closed lowercase", errors.New("connection closed by peer"), true},
		{"network changed", errors.New("net::ERR_NETWORK_CHANGED"), true},
		{"dns failure", errors.New("net::ERR_NAME_NOT_RESOLVED"), false},
		{"certificate error", errors.New("net::ERR_CERT_AUTHORITY_INVALID"), false},
		{"unrelated", errors.New("context deadline exceeded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestJitterStaysInRange(t *testing.T) {
	min, max := 500*time.Millisecond, 1500*time.Millisecond
	for i := 0; i < 100; i++ {
		d := jitter(min, max)
		if d < min || d >= max {
			t.Fatalf("jitter = %v, want within [%v, %v)", d, min, max)
		}
	}
}
