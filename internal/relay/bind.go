package relay

import (
	"fmt"
	"net"
)

// Bind claims addr for listening. A conflict with an existing socket is
// reported as ErrAddressInUse so the caller can exit without serving; any
// other failure is returned wrapped.
func Bind(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if isAddrInUse(err) {
			return nil, fmt.Errorf("bind %s: %w", addr, ErrAddressInUse)
		}
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return ln, nil
}
