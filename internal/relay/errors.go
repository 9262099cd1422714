package relay

import "errors"

var (
	// ErrAddressInUse is returned by Bind when another socket already holds
	// the requested address.
	ErrAddressInUse = errors.New("relay: address already in use")

	// ErrDuplicateIdentity is returned by Registry.Insert when the identity is
	// already registered.
	ErrDuplicateIdentity = errors.New("relay: identity already registered")

	// ErrServerClosed is returned by Server.Serve after Server.Close.
	ErrServerClosed = errors.New("relay: server closed")
)
