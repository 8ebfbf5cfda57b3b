package publicip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

var ErrNoAddress = errors.New("no global unicast address")

// InterfaceProvider reports the first global unicast address of a local
// network interface. It suits hosts that hold their public address directly,
// such as a router with a PPPoE link.
type InterfaceProvider struct {
	name string

	// addrs is replaced in tests.
	addrs func(name string) ([]net.Addr, error)
}

// NewInterfaceProvider creates a provider for the interface called name.
func NewInterfaceProvider(name string) (*InterfaceProvider, error) {
	if name == "" {
		return nil, errors.New("publicip: missing interface name")
	}
	return &InterfaceProvider{name: name, addrs: interfaceAddrs}, nil
}

func (p *InterfaceProvider) String() string {
	return "iface://" + p.name
}

func (p *InterfaceProvider) PublicIP(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ProviderError{Source: p.String(), Err: err}
	}
	addrs, err := p.addrs(p.name)
	if err != nil {
		return "", &ProviderError{Source: p.String(), Err: err}
	}
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		ip := prefix.Addr()
		if ip.IsGlobalUnicast() && !ip.IsPrivate() {
			return ip.Unmap().String(), nil
		}
	}
	return "", &ProviderError{Source: p.String(), Err: fmt.Errorf("%w on %s", ErrNoAddress, p.name)}
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %s: %w", name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("list addresses of %s: %w", name, err)
	}
	return addrs, nil
}
