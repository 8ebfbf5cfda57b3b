package panel

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
)

func mustDocument(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return doc
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		domain string
		want   []dns.Record
	}{
		{
			name:   "no rows",
			body:   `<html><body><div class="content">No records</div></body></html>`,
			domain: "example.com",
			want:   []dns.Record{},
		},
		{
			name: "editable and virtual",
			body: `<table>
<tr class="dnsrecord"><td>a</td><td>WWW.Example.com</td><td>3600</td><td>1.2.3.4</td><td><a href="?action=edit&amp;record=7">edit</a></td></tr>
<tr class="dnsrecord"><td>mx</td><td>example.com</td><td>3600</td><td>mail.example.com</td><td><a href="#">help</a></td></tr>
</table>`,
			domain: "example.com",
			want: []dns.Record{
				{ID: "7", Type: "A", Name: "www", Content: "1.2.3.4"},
				{ID: "", Type: "MX", Name: "", Content: "mail.example.com"},
			},
		},
		{
			name: "first record link wins",
			body: `<table><tr class="dnsrecord"><td>A</td><td>x.example.com</td><td>60</td><td>9.9.9.9</td>
<td><a href="/help">?</a><a href="?action=edit&amp;record=12">edit</a><a href="?action=delete&amp;record=99">del</a></td></tr></table>`,
			domain: "example.com",
			want:   []dns.Record{{ID: "12", Type: "A", Name: "x", Content: "9.9.9.9"}},
		},
		{
			name: "nested markup ignored",
			body: `<table><tr class="dnsrecord"><td> A <span>tooltip</span></td><td>  host.example.com </td><td>60</td><td>
  10.0.0.1
</td><td><a href="?record=3">edit</a></td></tr></table>`,
			domain: "example.com",
			want:   []dns.Record{{ID: "3", Type: "A", Name: "host", Content: "10.0.0.1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecords(mustDocument(t, tt.body), tt.domain)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRecords_TooFewCells(t *testing.T) {
	body := `<table><tr class="dnsrecord"><td>A</td><td>www.example.com</td></tr></table>`
	_, err := parseRecords(mustDocument(t, body), "example.com")
	if !errors.Is(err, ErrMalformedPage) {
		t.Fatalf("expected ErrMalformedPage, got %v", err)
	}
}

func TestMessageText(t *testing.T) {
	doc := mustDocument(t, `<div class="content">
   Your quota
   is <b>exceeded</b>
</div>`)
	if got := messageText(doc); got != "Your quota is exceeded" {
		t.Errorf("expected normalized message, got %q", got)
	}
}
