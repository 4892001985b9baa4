package ipupdate

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// DefaultDNSEchoServer answers queries for myip.opendns.com with the address of the client.
const DefaultDNSEchoServer = "resolver1.opendns.com:53"

const dnsEchoName = "myip.opendns.com."

// DNSResolver constructs a resolver which finds the public IP by asking a DNS echo server
// for the A record of myip.opendns.com.
// It is useful where outbound HTTP is filtered but DNS is not.
//
// server is a host with an optional port; port 53 is assumed when it is missing.
// An empty server selects DefaultDNSEchoServer.
func DNSResolver(server string) Resolver {
	if server == "" {
		server = DefaultDNSEchoServer
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &dnsResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: DefaultTimeout},
		logger: discard,
	}
}

type dnsResolver struct {
	server string
	client *dns.Client
	logger logrus.FieldLogger
}

func (r *dnsResolver) SetLogger(l logrus.FieldLogger) { r.logger = l }

// Resolve implements ipupdate.Resolver.
func (r *dnsResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dnsEchoName, dns.TypeA)
	r.logger.Debugf("querying %s for %s", r.server, dnsEchoName)
	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dns query to %s failed: %w", r.server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("dns query to %s returned %s", r.server, dns.RcodeToString[in.Rcode])
	}
	for _, rr := range in.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A); ok {
			return addr.Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("dns answer from %s had no A record for %s", r.server, dnsEchoName)
}
