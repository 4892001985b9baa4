package ipupdate

import (
	"context"
	"net/netip"
)

// Resolver finds the address that DNS records should point at.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

// Resolve implements ipupdate.Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Provider reads and replaces records at a DNS provider.
//
// GetDNSRecord returns the first record matching recordType and name,
// or an error wrapping ErrRecordNotFound when the zone has none.
type Provider interface {
	GetDNSRecord(ctx context.Context, zoneID, recordType, name string) (DNSRecord, error)
	UpdateDNSRecord(ctx context.Context, zoneID string, record DNSRecord) error
}

// Notifier delivers a message about a run to an operator.
type Notifier interface {
	Notify(ctx context.Context, subject, html string) error
}
