package publicip

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
)

// Factory creates a provider from a source URL whose scheme it was
// registered for.
type Factory func(u *url.URL) (Provider, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

func init() {
	web := func(u *url.URL) (Provider, error) {
		return NewHTTPProvider(u.String(), nil)
	}
	Register("http", web)
	Register("https", web)
	Register("iface", func(u *url.URL) (Provider, error) {
		return NewInterfaceProvider(u.Host)
	})
}

// Register makes a source scheme available to NewProvider.
func Register(scheme string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	scheme = strings.ToLower(scheme)
	if _, exists := factories[scheme]; exists {
		panic(fmt.Sprintf("publicip: scheme %q already registered", scheme))
	}
	factories[scheme] = f
}

// NewProvider creates the provider for rawURL based on its scheme,
// e.g. "https://api.ipify.org" or "iface://ppp0".
func NewProvider(rawURL string) (Provider, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("publicip: invalid source %q: %w", rawURL, err)
	}

	mu.Lock()
	f, ok := factories[strings.ToLower(u.Scheme)]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("publicip: unsupported source %q (registered: %v)", rawURL, schemes())
	}
	return f(u)
}

// NewProviders creates one provider per source, keeping their order.
func NewProviders(rawURLs []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(rawURLs))
	for _, raw := range rawURLs {
		p, err := NewProvider(raw)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func schemes() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
