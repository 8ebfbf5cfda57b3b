// Package publicip observes the public IP address of this host and reports
// changes to it.
package publicip

import (
	"context"
	"fmt"
)

// Provider looks up the public IP address of this host from one source.
type Provider interface {
	// PublicIP returns the address as reported by the source. The value is
	// not validated as an IP address.
	PublicIP(ctx context.Context) (string, error)
	// String identifies the source in logs.
	String() string
}

// ProviderError reports that a single source failed to produce an address.
type ProviderError struct {
	Source string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("publicip: %s: %v", e.Source, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
