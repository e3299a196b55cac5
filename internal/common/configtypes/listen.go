package configtypes

import (
	"fmt"
	"net"
	"strconv"
)

// ParseListenAddress splits a listen address into host and port.
// ":9090" yields host="" (all interfaces); "localhost:9090" yields
// host="localhost".
func ParseListenAddress(listen string) (host string, port int, err error) {
	if listen == "" {
		return "", 0, fmt.Errorf("listen address is empty")
	}

	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q: %w", listen, err)
	}

	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in listen address %q", listen)
	}

	return host, port, nil
}

// ValidateListenAddress checks format and port range of a listen address.
func ValidateListenAddress(listen string) error {
	_, port, err := ParseListenAddress(listen)
	if err != nil {
		return err
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}
