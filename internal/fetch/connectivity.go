package fetch

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Connectivity answers "is it worth attempting a request right now".
type Connectivity interface {
	Online(ctx context.Context) bool
}

// AlwaysOnline skips the pre-flight check.
type AlwaysOnline struct{}

func (AlwaysOnline) Online(context.Context) bool { return true }

// DialProbe reports online when a TCP connection to Addr succeeds within Timeout.
type DialProbe struct {
	Addr    string // host:port
	Timeout time.Duration
}

// NewDialProbe builds a probe for the host of baseURL.
func NewDialProbe(baseURL string, timeout time.Duration) (*DialProbe, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return &DialProbe{Addr: net.JoinHostPort(u.Hostname(), port), Timeout: timeout}, nil
}

func (p *DialProbe) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
