package camera

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tauraamui/xerror"
)

var defaultPorts = map[string]string{
	"rtsp":  "554",
	"rtsps": "322",
	"http":  "80",
	"https": "443",
}

var reachTimeout = 10 * time.Second

// streamHost resolves the host:port a network stream address points at.
// Local device indexes and file paths have no host and report ok false.
func streamHost(addr string) (host string, ok bool, err error) {
	if !strings.Contains(addr, "://") {
		return "", false, nil
	}

	parsedURL, err := url.Parse(addr)
	if err != nil {
		return "", false, xerror.Errorf("invalid stream address: %w", err)
	}

	port, supported := defaultPorts[parsedURL.Scheme]
	if !supported {
		return "", false, nil
	}

	host = parsedURL.Host
	if len(parsedURL.Port()) == 0 {
		host = net.JoinHostPort(parsedURL.Hostname(), port)
	}
	return host, true, nil
}

// checkReachable dials network stream addresses up front. Opening an
// unreachable stream through OpenCV can block for minutes.
func checkReachable(cancel context.Context, addr string) error {
	host, ok, err := streamHost(addr)
	if err != nil || !ok {
		return err
	}

	ctx, ccancel := context.WithTimeout(cancel, reachTimeout)
	defer ccancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return xerror.Errorf("stream host %s unreachable: %w", host, err)
	}
	return conn.Close()
}
