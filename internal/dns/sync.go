package dns

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// DomainResult counts what Sync did for one domain.
type DomainResult struct {
	Domain         string
	Updated        int
	SkippedVirtual int
}

// Result is the outcome of one Sync call, one entry per domain that was
// processed, in processing order.
type Result struct {
	Domains []DomainResult
}

// Updated returns the number of records updated across all domains.
func (r Result) Updated() int {
	n := 0
	for _, d := range r.Domains {
		n += d.Updated
	}
	return n
}

// SkippedVirtual returns the number of matching virtual records that were left alone.
func (r Result) SkippedVirtual() int {
	n := 0
	for _, d := range r.Domains {
		n += d.SkippedVirtual
	}
	return n
}

// Sync points every record matching filter in each of domains at content,
// using one session. Domains are handled in the given order. The first error
// stops the run; domains after the failing one are not touched.
func Sync(ctx context.Context, log logr.Logger, session Session, content string, domains []string, filter Filter) (Result, error) {
	var res Result
	for _, domain := range domains {
		dr, err := syncDomain(ctx, log.WithValues("domain", domain), session, content, domain, filter)
		res.Domains = append(res.Domains, dr)
		if err != nil {
			return res, fmt.Errorf("updating records of %s: %w", domain, err)
		}
	}
	return res, nil
}

func syncDomain(ctx context.Context, log logr.Logger, session Session, content, domain string, filter Filter) (DomainResult, error) {
	dr := DomainResult{Domain: domain}

	if err := session.ChangeDomain(ctx, domain); err != nil {
		return dr, err
	}

	records, err := session.ListRecords(ctx)
	if err != nil {
		return dr, err
	}
	log.V(1).Info("listed records", "count", len(records), "filter", filter.String())

	for i := range records {
		record := &records[i]
		if !filter.Match(*record) {
			continue
		}
		if record.Virtual() {
			log.Error(ErrVirtualRecord, "ignoring virtual DNS record", "reason", "virtual", "type", record.Type, "name", record.Name, "content", record.Content)
			dr.SkippedVirtual++
			continue
		}

		record.Content = content
		if err := session.UpdateRecord(ctx, record); err != nil {
			return dr, err
		}
		log.Info("updated DNS record", "id", record.ID, "type", record.Type, "name", record.Name, "content", content)
		dr.Updated++
	}
	return dr, nil
}
