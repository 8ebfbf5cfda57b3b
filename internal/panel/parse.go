package panel

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
)

// The record listing is scraped from markup like:
//
//	<tr class="dnsrecord">
//	  <td>A</td><td>www.example.com</td><td>3600</td><td>1.2.3.4</td>
//	  <td><a href="?action=edit&record=7">edit</a></td>
//	</tr>
const (
	recordRowSelector = ".dnsrecord"
	messageSelector   = ".content"
	minRecordCells    = 4
)

var recordIDPattern = regexp.MustCompile(`record=(\d+)`)

func countRecordRows(doc *goquery.Document) int {
	return doc.Find(recordRowSelector).Length()
}

// parseRecords extracts the record rows of doc. Names are made relative to domain.
func parseRecords(doc *goquery.Document, domain string) ([]dns.Record, error) {
	rows := doc.Find(recordRowSelector)
	records := make([]dns.Record, 0, rows.Length())

	var parseErr error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		record, err := parseRow(row, domain)
		if err != nil {
			parseErr = fmt.Errorf("record row %d: %w", i, err)
			return false
		}
		records = append(records, record)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return records, nil
}

func parseRow(row *goquery.Selection, domain string) (dns.Record, error) {
	cells := row.Children()
	if cells.Length() < minRecordCells {
		return dns.Record{}, fmt.Errorf("%w: expected at least %d cells, got %d", ErrMalformedPage, minRecordCells, cells.Length())
	}

	record := dns.Record{
		Type:    strings.ToUpper(ownText(cells.Eq(0))),
		Name:    dns.TrimDomain(ownText(cells.Eq(1)), domain),
		Content: ownText(cells.Eq(3)),
	}

	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := recordIDPattern.FindStringSubmatch(href); m != nil {
			record.ID = m[1]
			return false
		}
		return true
	})
	return record, nil
}

// messageText returns the text of the page area the panel shows notices in.
func messageText(doc *goquery.Document) string {
	return normalizeSpace(doc.Find(messageSelector).Text())
}

// ownText returns the text directly inside the selected elements, ignoring
// text of nested elements.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return normalizeSpace(b.String())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
