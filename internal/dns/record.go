package dns

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNilRecord is returned when an update is attempted without a record.
	ErrNilRecord = errors.New("dns: record must not be nil")
	// ErrVirtualRecord is returned when an update is attempted on a record
	// the panel did not give an identifier for.
	ErrVirtualRecord = errors.New("dns: record has no ID")
)

// Record is a DNS record as listed by the hosting panel.
type Record struct {
	ID      string // panel identifier, empty for virtual records
	Type    string // "A", "AAAA", "CNAME", ...
	Name    string // relative to the active domain, "" for the apex
	Content string // IP address or target
}

// Virtual reports whether the record was synthesized by the panel and
// cannot be edited.
func (r Record) Virtual() bool {
	return r.ID == ""
}

// Validate checks that r can be submitted as an update.
func (r *Record) Validate() error {
	if r == nil {
		return ErrNilRecord
	}
	if r.Virtual() {
		return fmt.Errorf("%w: %s", ErrVirtualRecord, r)
	}
	return nil
}

func (r Record) String() string {
	name := r.Name
	if name == "" {
		name = "@"
	}
	id := r.ID
	if id == "" {
		id = "virtual"
	}
	return fmt.Sprintf("%s %s %s (%s)", r.Type, name, r.Content, id)
}

// Session is the part of a hosting panel session the synchronizer drives.
// Implementations must have completed login before being handed to Sync.
type Session interface {
	ChangeDomain(ctx context.Context, domain string) error
	ListRecords(ctx context.Context) ([]Record, error)
	UpdateRecord(ctx context.Context, record *Record) error
}
