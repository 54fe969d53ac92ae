package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by the connection manager, adapters and the monitor.
var (
	ErrUnsupportedNetwork   = errors.New("unsupported network")
	ErrUnsupportedProtocol  = errors.New("unsupported protocol")
	ErrConnection           = errors.New("connection error")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrContractCall         = errors.New("contract call failed")
	ErrConfigurationMissing = errors.New("configuration missing")
)

// FetchError attaches protocol, network and address context to an adapter failure.
type FetchError struct {
	Protocol ProtocolID
	Network  NetworkID
	Address  string
	Err      error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Protocol))
	if e.Network != "" {
		b.WriteString(" on ")
		b.WriteString(string(e.Network))
	}
	if e.Address != "" {
		b.WriteString(" (")
		b.WriteString(e.Address)
		b.WriteString(")")
	}
	return fmt.Sprintf("%s: %v", b.String(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnsupportedNetworkError reports an unknown network together with the accepted identifiers.
func UnsupportedNetworkError(network string, supported []NetworkID) error {
	ids := make([]string, len(supported))
	for i, id := range supported {
		ids[i] = string(id)
	}
	return fmt.Errorf("%w: %s. Supported networks: %s", ErrUnsupportedNetwork, network, strings.Join(ids, ", "))
}

// UnsupportedProtocolError reports an unknown protocol together with the accepted identifiers.
func UnsupportedProtocolError(protocol string) error {
	ids := make([]string, len(AllProtocols))
	for i, id := range AllProtocols {
		ids[i] = string(id)
	}
	return fmt.Errorf("%w: %s. Supported protocols: %s", ErrUnsupportedProtocol, protocol, strings.Join(ids, ", "))
}
