package panel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"
	"golang.org/x/net/publicsuffix"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
)

// DefaultBaseURL is the control panel the tool talks to unless told otherwise.
const DefaultBaseURL = "http://hostingmanager.starthosting.nl/server8"

const (
	logonPath         = "/services/logon/"
	domainChangerPath = "/services/domainchanger/"
	recordsPath       = "/modules/ffdns/?action=edit"

	// loginSuccessMarker is part of the redirect target after a successful login.
	loginSuccessMarker = "/ffstart"

	maxBodySize = 4 << 20
)

// Session drives the control panel's web interface on behalf of one user.
// A Session is not safe for concurrent use.
type Session struct {
	baseURL   string
	userAgent string
	client    *http.Client
	log       logr.Logger

	state        State
	activeDomain string
}

var _ dns.Session = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient makes the session send its requests through a copy of c.
// The copy never follows redirects and gets a cookie jar if c has none.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		if c != nil {
			cp := *c
			s.client = &cp
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		s.userAgent = ua
	}
}

// New creates an anonymous session against the panel at baseURL.
// It performs no I/O; Login is the first request made.
func New(log logr.Logger, baseURL string, opts ...Option) (*Session, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("panel: missing base URL")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("panel: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("panel: base URL %q must be http or https", baseURL)
	}

	s := &Session{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "yk-panel-ddns",
		client:    &http.Client{},
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Success of every panel operation is signalled by the redirect itself.
	s.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if s.client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("panel: create cookie jar: %w", err)
		}
		s.client.Jar = jar
	}
	return s, nil
}

// Dial creates a session and logs in.
func Dial(ctx context.Context, log logr.Logger, baseURL, username, password string, opts ...Option) (*Session, error) {
	s, err := New(log, baseURL, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Login(ctx, username, password); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// State returns how far the session has progressed.
func (s *Session) State() State {
	return s.state
}

// ActiveDomain returns the domain selected by the last ChangeDomain, or "".
func (s *Session) ActiveDomain() string {
	return s.activeDomain
}

// Close releases idle connections held by the session's transport.
func (s *Session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Login authenticates with the panel's logon form.
func (s *Session) Login(ctx context.Context, username, password string) error {
	s.log.Info("logging in", "username", username)

	form := url.Values{
		"login":    {"1"},
		"username": {username},
		"password": {password},
	}
	resp, err := s.doRequest(ctx, http.MethodPost, logonPath, form)
	if err != nil {
		return sessionError("login", fmt.Errorf("could not login as %s: %w", username, err))
	}
	if err := resp.expectStatus(http.StatusFound); err != nil {
		return sessionError("login", fmt.Errorf("could not login as %s: %w", username, err))
	}
	location, err := resp.location()
	if err != nil {
		return sessionError("login", fmt.Errorf("could not login as %s: %w", username, err))
	}
	if !strings.Contains(location, loginSuccessMarker) {
		return sessionError("login", fmt.Errorf("could not login as %s: %w: %s", username, ErrUnexpectedRedirect, location))
	}

	s.log.V(1).Info("logged in", "username", username)
	s.advance(StateAuthenticated)
	return nil
}

// ChangeDomain selects the domain subsequent record operations act on.
// Selecting the already active domain still goes through the panel.
func (s *Session) ChangeDomain(ctx context.Context, domain string) error {
	if err := s.require("change domain", StateAuthenticated); err != nil {
		return err
	}

	if s.activeDomain != "" && strings.EqualFold(domain, s.activeDomain) {
		s.log.V(1).Info("domain already active", "domain", domain)
	}
	s.log.Info("changing active domain", "domain", domain)

	resp, err := s.doRequest(ctx, http.MethodGet, domainChangerPath+"?domain="+url.QueryEscape(domain), nil)
	if err != nil {
		return sessionError("change domain", fmt.Errorf("could not change active domain to %s: %w", domain, err))
	}
	if err := resp.expectStatus(http.StatusFound); err != nil {
		return sessionError("change domain", fmt.Errorf("could not change active domain to %s: %w", domain, err))
	}

	s.log.V(1).Info("changed active domain", "domain", domain)
	s.activeDomain = domain
	s.advance(StateDomainActive)
	return nil
}

// ListRecords returns the records of the active domain in panel order.
func (s *Session) ListRecords(ctx context.Context) ([]dns.Record, error) {
	if err := s.require("list records", StateDomainActive); err != nil {
		return nil, err
	}
	s.log.Info("getting DNS records", "domain", s.activeDomain)

	resp, err := s.doRequest(ctx, http.MethodGet, recordsPath, nil)
	if err != nil {
		return nil, sessionError("list records", err)
	}
	if err := resp.expectStatus(http.StatusOK); err != nil {
		return nil, sessionError("list records", err)
	}

	doc, err := resp.document()
	if err != nil {
		return nil, sessionError("list records", err)
	}
	records, err := parseRecords(doc, s.activeDomain)
	if err != nil {
		return nil, sessionError("list records", err)
	}

	s.log.V(1).Info("got DNS records", "domain", s.activeDomain, "count", len(records))
	return records, nil
}

// UpdateRecord submits record, as edited by the caller, to the panel.
// Records without an ID are rejected before anything is sent.
func (s *Session) UpdateRecord(ctx context.Context, record *dns.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if err := s.require("update record", StateDomainActive); err != nil {
		return err
	}
	s.log.Info("updating DNS record", "domain", s.activeDomain, "record", record.String())

	form := url.Values{
		"process": {"edit_record"},
		"record":  {record.ID},
		"type":    {record.Type},
		"name":    {record.Name},
		"content": {record.Content},
	}
	resp, err := s.doRequest(ctx, http.MethodPost, recordsPath, form)
	if err != nil {
		return sessionError("update record", fmt.Errorf("could not update DNS record %s: %w", record, err))
	}
	if err := resp.expectStatus(http.StatusOK); err != nil {
		return sessionError("update record", fmt.Errorf("could not update DNS record %s: %w", record, err))
	}

	doc, err := resp.document()
	if err != nil {
		return sessionError("update record", fmt.Errorf("could not update DNS record %s: %w", record, err))
	}
	// The panel answers a successful edit with the record listing again.
	if countRecordRows(doc) == 0 {
		return sessionError("update record", fmt.Errorf("could not update DNS record %s: %w: %s", record, ErrRejected, messageText(doc)))
	}

	s.log.V(1).Info("updated DNS record", "id", record.ID)
	return nil
}

func (s *Session) require(op string, min State) error {
	if s.state >= min {
		return nil
	}
	if s.state < StateAuthenticated {
		return sessionError(op, ErrNotLoggedIn)
	}
	return sessionError(op, ErrNoActiveDomain)
}

func (s *Session) advance(to State) {
	if to > s.state {
		s.state = to
	}
}

// response is a fully read panel response; the connection has already been released.
type response struct {
	statusCode int
	status     string
	header     http.Header
	body       []byte
}

// doRequest builds and executes a request against the panel. form, if not
// nil, is sent url-encoded as the request body.
func (s *Session) doRequest(ctx context.Context, method, path string, form url.Values) (*response, error) {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	s.log.V(2).Info("panel response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(body))

	return &response{
		statusCode: resp.StatusCode,
		status:     resp.Status,
		header:     resp.Header,
		body:       body,
	}, nil
}

func (r *response) expectStatus(code int) error {
	if r.statusCode != code {
		return fmt.Errorf("%w: expected %d, got %s", ErrUnexpectedStatus, code, r.status)
	}
	return nil
}

func (r *response) location() (string, error) {
	loc := r.header.Get("Location")
	if loc == "" {
		return "", ErrMissingLocation
	}
	return loc, nil
}

func (r *response) document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	return doc, nil
}
