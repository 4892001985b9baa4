package ipupdate_test

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/netip"
	"strings"
	"testing"

	"github.com/Travis-Britz/ipupdate"
)

var home = ipupdate.DomainConfig{ZoneID: "zone-1", Name: "home.example.com", Proxied: true, TTL: 300}

func staticIP(t *testing.T, addr string) ipupdate.Resolver {
	t.Helper()
	r, err := ipupdate.FromString(addr)
	if err != nil {
		t.Fatalf("FromString(%q) failed: %s", addr, err)
	}
	return r
}

func newTestClient(t *testing.T, f *fakeCloudflare, r ipupdate.Resolver, n ipupdate.Notifier) *ipupdate.Client {
	t.Helper()
	c, err := ipupdate.New(
		ipupdate.UsingCloudflare(testEmail, testKey, f.URL),
		ipupdate.UsingResolver(r),
		ipupdate.UsingNotifier(n),
	)
	if err != nil {
		t.Fatalf("ipupdate.New failed: %s", err)
	}
	return c
}

func homeZone(content string) map[string][]cfRecord {
	return map[string][]cfRecord{
		"zone-1": {{ID: "rec-1", Type: "A", Name: "home.example.com", Content: content, TTL: 1}},
	}
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := ipupdate.New(); err == nil {
		t.Fatalf("Expected error without a provider; got err == nil")
	}
}

func TestRunUnchanged(t *testing.T) {
	f := newFakeCloudflare(t, homeZone("1.2.3.4"))
	n := &recordingNotifier{}
	c := newTestClient(t, f, staticIP(t, "1.2.3.4"), n)

	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{home})
	if err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	if got := f.putCount(); got != 0 {
		t.Fatalf("Expected no PUT; got %d", got)
	}
	if got := len(n.messages()); got != 0 {
		t.Fatalf("Expected no email; got %d", got)
	}
	if len(results) != 1 || results[0].Status != ipupdate.Unchanged {
		t.Fatalf("Expected one unchanged result; got %+v", results)
	}
}

func TestRunUpdated(t *testing.T) {
	f := newFakeCloudflare(t, homeZone("1.2.3.4"))
	n := &recordingNotifier{}
	c := newTestClient(t, f, staticIP(t, "5.6.7.8"), n)

	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{home})
	if err != nil {
		t.Fatalf("Run failed: %s", err)
	}

	if got := f.putCount(); got != 1 {
		t.Fatalf("Expected 1 PUT; got %d", got)
	}
	put := f.lastPut()
	if put.ID != "rec-1" || put.Body["content"] != "5.6.7.8" {
		t.Fatalf("Expected PUT of 5.6.7.8 to rec-1; got %+v", put)
	}
	if put.Body["ttl"] != float64(300) || put.Body["proxied"] != true {
		t.Fatalf("Expected configured ttl and proxied; got %+v", put.Body)
	}

	msgs := n.messages()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 email; got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Subject, "home.example.com") {
		t.Errorf("Expected subject to name the domain; got %q", msgs[0].Subject)
	}
	if !strings.Contains(msgs[0].HTML, "5.6.7.8") {
		t.Errorf("Expected body to contain the new IP; got %q", msgs[0].HTML)
	}

	expected := ipupdate.Result{Domain: "home.example.com", Status: ipupdate.Updated, Previous: "1.2.3.4", Current: "5.6.7.8"}
	if len(results) != 1 || results[0] != expected {
		t.Fatalf("Expected %+v; got %+v", expected, results)
	}
}

func TestRunUpdateRejected(t *testing.T) {
	f := newFakeCloudflare(t, homeZone("1.2.3.4"))
	f.putCode = http.StatusBadRequest
	f.putReply = `{"success":false,"errors":[{"code":1004,"message":"DNS Validation Error"}]}`
	n := &recordingNotifier{}
	c := newTestClient(t, f, staticIP(t, "5.6.7.8"), n)

	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{home})
	if err == nil {
		t.Fatalf("Expected error response; got err == nil")
	}
	var apiErr *ipupdate.APIError
	if !errors.As(results[0].Err, &apiErr) {
		t.Fatalf("Expected result error to wrap *ipupdate.APIError; got %v", results[0].Err)
	}
	if results[0].Status != ipupdate.Failed {
		t.Fatalf("Expected failed result; got %s", results[0].Status)
	}
	if got := f.putCount(); got != 1 {
		t.Fatalf("Expected 1 PUT; got %d", got)
	}

	msgs := n.messages()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 email; got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].HTML, html.EscapeString(f.putReply)) {
		t.Errorf("Expected body to contain the provider reply; got %q", msgs[0].HTML)
	}
}

func TestRunRecordMissing(t *testing.T) {
	f := newFakeCloudflare(t, map[string][]cfRecord{})
	n := &recordingNotifier{}
	c := newTestClient(t, f, staticIP(t, "5.6.7.8"), n)

	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{home})
	if !errors.Is(err, ipupdate.ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound; got %v", err)
	}
	if results[0].Status != ipupdate.Failed || !errors.Is(results[0].Err, ipupdate.ErrRecordNotFound) {
		t.Fatalf("Expected failed result wrapping ErrRecordNotFound; got %+v", results[0])
	}
	if got := f.putCount(); got != 0 {
		t.Fatalf("Expected no PUT; got %d", got)
	}
}

func TestRunResolverFailure(t *testing.T) {
	f := newFakeCloudflare(t, homeZone("1.2.3.4"))
	n := &recordingNotifier{}
	failing := ipupdate.ResolverFunc(func(context.Context) (netip.Addr, error) {
		return netip.Addr{}, errors.New("ipify is down")
	})
	c := newTestClient(t, f, failing, n)

	other := ipupdate.DomainConfig{ZoneID: "zone-1", Name: "www.example.com", TTL: 1}
	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{home, other})
	if err == nil {
		t.Fatalf("Expected error response; got err == nil")
	}
	if got := f.putCount(); got != 0 {
		t.Fatalf("Expected no PUT; got %d", got)
	}
	if got := f.getCount(); got != 0 {
		t.Fatalf("Expected no record lookups; got %d", got)
	}
	if len(results) != 2 {
		t.Fatalf("Expected a result for every domain; got %+v", results)
	}
	for _, r := range results {
		if r.Status != ipupdate.Failed || r.Err == nil {
			t.Errorf("Expected failed result with error; got %+v", r)
		}
	}

	msgs := n.messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 1 email per domain; got %d", len(msgs))
	}
	for i, name := range []string{"home.example.com", "www.example.com"} {
		if !strings.Contains(msgs[i].Subject, name) {
			t.Errorf("Expected subject to name %s; got %q", name, msgs[i].Subject)
		}
		if !strings.Contains(msgs[i].HTML, "ipify is down") {
			t.Errorf("Expected body to contain the resolver error; got %q", msgs[i].HTML)
		}
	}
}

func TestRunResolverEmptyAddress(t *testing.T) {
	f := newFakeCloudflare(t, homeZone("1.2.3.4"))
	empty := ipupdate.ResolverFunc(func(context.Context) (netip.Addr, error) {
		return netip.Addr{}, nil
	})
	c := newTestClient(t, f, empty, &recordingNotifier{})

	if _, err := c.Run(context.Background(), []ipupdate.DomainConfig{home}); err == nil {
		t.Fatalf("Expected error for empty address; got err == nil")
	}
	if got := f.putCount(); got != 0 {
		t.Fatalf("Expected no PUT with empty content; got %d", got)
	}
}

func TestRunDomainsAreIndependent(t *testing.T) {
	f := newFakeCloudflare(t, map[string][]cfRecord{
		"zone-2": {{ID: "rec-2", Type: "A", Name: "www.example.org", Content: "1.2.3.4", TTL: 1}},
	})
	n := &recordingNotifier{}
	c := newTestClient(t, f, staticIP(t, "5.6.7.8"), n)

	missing := ipupdate.DomainConfig{ZoneID: "zone-1", Name: "home.example.com", TTL: 1}
	present := ipupdate.DomainConfig{ZoneID: "zone-2", Name: "www.example.org", TTL: 60}
	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{missing, present})
	if err == nil {
		t.Fatalf("Expected error for the missing record; got err == nil")
	}
	if results[0].Status != ipupdate.Failed {
		t.Errorf("Expected first domain to fail; got %s", results[0].Status)
	}
	if results[1].Status != ipupdate.Updated {
		t.Errorf("Expected second domain to be updated; got %s (%v)", results[1].Status, results[1].Err)
	}
	if got := f.putCount(); got != 1 {
		t.Fatalf("Expected 1 PUT; got %d", got)
	}
}

func TestRunNotificationFailureKeepsOutcome(t *testing.T) {
	f := newFakeCloudflare(t, homeZone("1.2.3.4"))
	n := &recordingNotifier{err: errors.New("smtp unavailable")}
	c := newTestClient(t, f, staticIP(t, "5.6.7.8"), n)

	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{home})
	if err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	if results[0].Status != ipupdate.Updated {
		t.Fatalf("Expected updated result; got %+v", results[0])
	}
}

func TestRunRecordTypeMismatch(t *testing.T) {
	f := newFakeCloudflare(t, homeZone("1.2.3.4"))
	c := newTestClient(t, f, staticIP(t, "5.6.7.8"), &recordingNotifier{})

	v6 := ipupdate.DomainConfig{ZoneID: "zone-1", Name: "home.example.com", RecordType: "AAAA", TTL: 1}
	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{v6})
	if err == nil {
		t.Fatalf("Expected error for IPv4 address in AAAA record; got err == nil")
	}
	if results[0].Status != ipupdate.Failed {
		t.Fatalf("Expected failed result; got %s", results[0].Status)
	}
	if f.getCount() != 0 || f.putCount() != 0 {
		t.Fatalf("Expected no provider calls; got %d GETs and %d PUTs", f.getCount(), f.putCount())
	}
}

func TestRunAAAA(t *testing.T) {
	f := newFakeCloudflare(t, map[string][]cfRecord{
		"zone-1": {{ID: "rec-6", Type: "AAAA", Name: "home.example.com", Content: "2001:0db8::0001", TTL: 1}},
	})
	c := newTestClient(t, f, staticIP(t, "2001:db8::1"), &recordingNotifier{})

	v6 := ipupdate.DomainConfig{ZoneID: "zone-1", Name: "home.example.com", RecordType: "aaaa", TTL: 1}
	results, err := c.Run(context.Background(), []ipupdate.DomainConfig{v6})
	if err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	if results[0].Status != ipupdate.Unchanged {
		t.Fatalf("Expected equivalent IPv6 spellings to compare equal; got %s", results[0].Status)
	}
}
