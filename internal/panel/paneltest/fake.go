// Package paneltest provides an in-memory hosting control panel for tests.
package paneltest

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
)

const sessionCookie = "PHPSESSID"

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><title>DNS</title></head><body>
<div class="content">{{.Message}}</div>
{{if .Rows}}<table>
{{range .Rows}}<tr class="dnsrecord"><td>{{.Type}}</td><td>{{.FQDN}}</td><td>3600</td><td>{{.Content}}</td><td>{{if .ID}}<a href="?action=edit&amp;record={{.ID}}">edit</a> <a href="?action=delete&amp;record={{.ID}}">delete</a>{{else}}<a href="#">help</a>{{end}}</td></tr>
{{end}}</table>{{end}}
</body></html>`))

type row struct {
	ID      string
	Type    string
	FQDN    string
	Content string
}

// Panel is a fake control panel. It implements http.Handler and keeps the
// records of every domain in memory. Virtual records are stored with an empty ID.
type Panel struct {
	Username string
	Password string

	mu       sync.Mutex
	domains  map[string][]dns.Record
	sessions map[string]string // session cookie -> active domain
	nextID   int
	calls    []string

	rejectUpdates string
	listStatus    int
}

// New creates a panel accepting the given credentials.
func New(username, password string) *Panel {
	return &Panel{
		Username: username,
		Password: password,
		domains:  map[string][]dns.Record{},
		sessions: map[string]string{},
	}
}

// AddRecord stores r under domain. The ID is kept as given.
func (p *Panel) AddRecord(domain string, r dns.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.domains[domain] = append(p.domains[domain], r)
}

// RejectUpdates makes record updates fail with msg shown as the panel
// notice. An empty msg accepts updates again.
func (p *Panel) RejectUpdates(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectUpdates = msg
}

// SetListStatus makes the record listing answer with code. Zero restores
// the normal listing.
func (p *Panel) SetListStatus(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listStatus = code
}

// Records returns a copy of the records stored for domain.
func (p *Panel) Records(domain string) []dns.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dns.Record, len(p.domains[domain]))
	copy(out, p.domains[domain])
	return out
}

// Calls returns the requests served so far as "METHOD path?query".
func (p *Panel) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *Panel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.calls = append(p.calls, r.Method+" "+r.URL.RequestURI())
	p.mu.Unlock()

	switch {
	case r.URL.Path == "/services/logon/" && r.Method == http.MethodPost:
		p.handleLogon(w, r)
	case r.URL.Path == "/services/domainchanger/" && r.Method == http.MethodGet:
		p.handleDomainChanger(w, r)
	case r.URL.Path == "/modules/ffdns/" && r.URL.Query().Get("action") == "edit":
		p.handleRecords(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *Panel) handleLogon(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("login") != "1" || r.PostForm.Get("username") != p.Username || r.PostForm.Get("password") != p.Password {
		p.render(w, http.StatusOK, "Invalid username or password", nil)
		return
	}

	p.mu.Lock()
	p.nextID++
	id := fmt.Sprintf("sess-%d", p.nextID)
	p.sessions[id] = ""
	p.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	w.Header().Set("Location", "/ffstart/")
	w.WriteHeader(http.StatusFound)
}

func (p *Panel) handleDomainChanger(w http.ResponseWriter, r *http.Request) {
	id, ok := p.session(r)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	domain := r.URL.Query().Get("domain")

	p.mu.Lock()
	_, known := p.domains[domain]
	if known {
		p.sessions[id] = domain
	}
	p.mu.Unlock()

	if !known {
		p.render(w, http.StatusOK, "Unknown domain "+domain, nil)
		return
	}
	w.Header().Set("Location", "/ffstart/")
	w.WriteHeader(http.StatusFound)
}

func (p *Panel) handleRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := p.session(r)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	p.mu.Lock()
	domain := p.sessions[id]
	listStatus := p.listStatus
	p.mu.Unlock()

	if r.Method == http.MethodPost {
		p.handleUpdate(w, r, domain)
		return
	}
	if listStatus != 0 {
		p.render(w, listStatus, "Internal error", nil)
		return
	}
	p.render(w, http.StatusOK, "", p.rows(domain))
}

func (p *Panel) handleUpdate(w http.ResponseWriter, r *http.Request, domain string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("process") != "edit_record" {
		p.render(w, http.StatusOK, "Unknown action", nil)
		return
	}
	recordID := r.PostForm.Get("record")
	p.mu.Lock()
	if msg := p.rejectUpdates; msg != "" {
		p.mu.Unlock()
		p.render(w, http.StatusOK, msg, nil)
		return
	}
	found := false
	for i, rec := range p.domains[domain] {
		if rec.ID != "" && rec.ID == recordID {
			p.domains[domain][i] = dns.Record{
				ID:      recordID,
				Type:    r.PostForm.Get("type"),
				Name:    r.PostForm.Get("name"),
				Content: r.PostForm.Get("content"),
			}
			found = true
			break
		}
	}
	p.mu.Unlock()

	if !found {
		p.render(w, http.StatusOK, "Record "+recordID+" not found", nil)
		return
	}
	p.render(w, http.StatusOK, "Record saved", p.rows(domain))
}

func (p *Panel) session(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[c.Value]
	return c.Value, ok
}

func (p *Panel) rows(domain string) []row {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := make([]row, 0, len(p.domains[domain]))
	for _, rec := range p.domains[domain] {
		fqdn := domain
		if rec.Name != "" {
			fqdn = rec.Name + "." + domain
		}
		rows = append(rows, row{ID: rec.ID, Type: strings.ToLower(rec.Type), FQDN: fqdn, Content: rec.Content})
	}
	return rows
}

func (p *Panel) render(w http.ResponseWriter, status int, message string, rows []row) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, struct {
		Message string
		Rows    []row
	}{message, rows})
}
