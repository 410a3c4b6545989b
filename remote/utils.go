package remote

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// findFreePort finds an available TCP port on the loopback interface
func findFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port, nil
}

// ValidatePort checks if a port is in valid range
func ValidatePort(port int) error {
	if port < 1024 || port > 65535 {
		return fmt.Errorf("port %d out of valid range (1024-65535)", port)
	}
	return nil
}

// endpointPort extracts the TCP port of a ZeroMQ endpoint such as
// "tcp://*:5555". Non-TCP endpoints report 0.
func endpointPort(endpoint string) (int, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "tcp" {
		return 0, nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, fmt.Errorf("invalid endpoint %q: missing port", endpoint)
	}
	return port, nil
}

// dialEndpoint turns a listen endpoint into one a local client can dial
func dialEndpoint(endpoint string) string {
	for _, wildcard := range []string{"tcp://*:", "tcp://0.0.0.0:"} {
		if strings.HasPrefix(endpoint, wildcard) {
			return "tcp://localhost:" + strings.TrimPrefix(endpoint, wildcard)
		}
	}
	return endpoint
}
