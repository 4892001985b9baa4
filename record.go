package ipupdate

import (
	"errors"
	"net/netip"
	"strings"
)

// ErrRecordNotFound is returned by a Provider when no record matches a lookup.
var ErrRecordNotFound = errors.New("dns record not found")

// DomainConfig describes one DNS record that should follow the public IP.
type DomainConfig struct {
	ZoneID string `json:"cloudflare_zone_id" yaml:"cloudflare_zone_id"`
	Name   string `json:"domain_name" yaml:"domain_name"`
	// RecordType defaults to "A".
	RecordType string `json:"record_type,omitempty" yaml:"record_type,omitempty"`
	Proxied    bool   `json:"proxied" yaml:"proxied"`
	// TTL in seconds. Cloudflare treats 1 as "automatic".
	TTL int `json:"ttl" yaml:"ttl"`
}

// Type returns the record type managed for the domain.
func (d DomainConfig) Type() string {
	if d.RecordType == "" {
		return "A"
	}
	return strings.ToUpper(d.RecordType)
}

// DNSRecord is a record as stored by the provider.
type DNSRecord struct {
	ID      string
	Type    string
	Name    string
	Content string
	TTL     int
	Proxied bool
}

// Status is the outcome of a run for one domain.
type Status int

const (
	Unchanged Status = iota // record already held the public IP
	Updated
	Failed
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result reports what a run did for one domain.
type Result struct {
	Domain string
	Status Status
	// Previous is the record content read from the provider, if it was read.
	Previous string
	// Current is the resolved public IP, if it was resolved.
	Current string
	Err     error
}

func recordType(a netip.Addr) string {
	if a.Is4() || a.Is4In6() {
		return "A"
	}
	return "AAAA"
}

// sameAddr compares the resolved address against record content.
// Content that isn't an address falls back to a plain string comparison.
func sameAddr(a netip.Addr, content string) bool {
	if c, err := netip.ParseAddr(strings.TrimSpace(content)); err == nil {
		return c.Unmap() == a.Unmap()
	}
	return a.String() == content
}
