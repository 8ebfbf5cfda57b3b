package publicip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	lookupTimeout = 15 * time.Second
	maxAnswerSize = 1 << 10
)

var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrEmptyAnswer      = errors.New("empty response body")
	ErrAnswerTooLarge   = errors.New("response body too large")
)

// HTTPProvider asks a web service that answers a GET with the caller's
// address as plain text, e.g. https://api.ipify.org.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider for rawURL. If client is nil a default
// client is used. Redirects are never followed.
func NewHTTPProvider(rawURL string, client *http.Client) (*HTTPProvider, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("publicip: invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("publicip: URL %q must be http or https", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("publicip: URL %q has no host", rawURL)
	}

	c := &http.Client{}
	if client != nil {
		cp := *client
		c = &cp
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &HTTPProvider{url: u.String(), client: c}, nil
}

func (p *HTTPProvider) String() string {
	return p.url
}

// PublicIP returns the response body with surrounding whitespace removed.
// Only the first line of a multi-line answer is kept.
func (p *HTTPProvider) PublicIP(ctx context.Context) (string, error) {
	ip, err := p.lookup(ctx)
	if err != nil {
		return "", &ProviderError{Source: p.url, Err: err}
	}
	return ip, nil
}

func (p *HTTPProvider) lookup(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "text/plain")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAnswerSize))
		return "", fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxAnswerSize {
		return "", fmt.Errorf("%w: more than %d bytes", ErrAnswerTooLarge, maxAnswerSize)
	}
	ip, _, _ := strings.Cut(strings.TrimSpace(string(body)), "\n")
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", ErrEmptyAnswer
	}
	return ip, nil
}
