// Package netcheck runs connectivity preflight checks before a browser is
// launched. Requests use a Chrome TLS fingerprint so the probe sees what
// the browser will see; containers behind a VPN otherwise pass the probe
// and still hang Chrome.
package netcheck

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	tls2 "github.com/refraction-networking/utls"
)

const probeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Result is the outcome of one connectivity check.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

// Run executes the preflight checks against the target booking URL.
// The proxy, when set, is used the same way the browser will use it.
func Run(ctx context.Context, targetURL, proxy string) []Result {
	results := []Result{
		checkDNS(ctx),
		checkHTTPS(ctx, "https://www.google.com", proxy),
		checkHTTPS(ctx, targetURL, proxy),
	}
	return results
}

// Healthy reports whether every check passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

func checkDNS(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var resolver net.Resolver
	if _, err := resolver.LookupHost(ctx, "google.com"); err != nil {
		return Result{Name: "dns", Detail: err.Error()}
	}
	return Result{Name: "dns", OK: true}
}

func checkHTTPS(ctx context.Context, targetURL, proxy string) Result {
	name := "https " + hostOf(targetURL)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	req.Header.Set("User-Agent", probeUA)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Result{Name: name, OK: true, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
}

// dialTLSChrome establishes a TLS connection with a Chrome ClientHello.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
