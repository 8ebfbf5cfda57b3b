package dns

import (
	"strings"
)

// TrimDomain normalizes a record name shown by the panel to a name relative
// to domain. The name is lower-cased and every occurrence of the domain, with
// and without its leading dot, is removed.
// e.g. ("WWW.example.com", "example.com") → "www"
// e.g. ("example.com", "example.com") → ""
func TrimDomain(name, domain string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if domain == "" {
		return name
	}
	name = strings.ReplaceAll(name, "."+domain, "")
	return strings.ReplaceAll(name, domain, "")
}
