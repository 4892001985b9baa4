package ipupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultIPServiceURL is the IP-echo service used when no resolver is configured.
const DefaultIPServiceURL = "https://api.ipify.org?format=json"

// DefaultTimeout bounds every outbound request made with the default HTTP client.
const DefaultTimeout = 15 * time.Second

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// New constructs a Client from options.
// A Provider must be registered, typically with UsingCloudflare.
// Without a Notifier, notifications are only written to the log.
func New(options ...clientOption) (*Client, error) {
	c := &Client{}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ipupdate.New: option %d returned an error: %s", i, err)
		}
	}

	if c.Provider == nil {
		return nil, fmt.Errorf("ipupdate.New: no DNS provider was registered and there is no default option - use ipupdate.UsingCloudflare or similar")
	}
	if c.Resolver == nil {
		c.Resolver = mustWebResolver(DefaultIPServiceURL)
	}
	if c.Notifier == nil {
		c.Notifier = &logNotifier{}
	}
	if c.logger == nil {
		c.logger = discard
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	// dependencies may have been registered after WithLogger or UsingHTTPClient
	withLogger(c.logger)(c)
	withHTTPClient(c.httpClient)(c)
	return c, nil
}

type clientOption func(*Client) error

// UsingCloudflare registers the Cloudflare API as the DNS provider.
// An empty baseURL selects DefaultCloudflareBaseURL.
func UsingCloudflare(email, apiKey, baseURL string) clientOption {
	return func(c *Client) (err error) {
		if c.Provider, err = newCloudflareProvider(email, apiKey, baseURL); err != nil {
			return fmt.Errorf("ipupdate.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

func UsingProvider(provider Provider) clientOption {
	return func(c *Client) error {
		if provider == nil {
			return fmt.Errorf("ipupdate.UsingProvider: provider cannot be nil")
		}
		c.Provider = provider
		return nil
	}
}

// UsingResolver sets how the public IP is found.
// A nil resolver selects a web resolver for DefaultIPServiceURL.
func UsingResolver(resolver Resolver) clientOption {
	return func(c *Client) error {
		c.Resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL string) clientOption {
	return func(c *Client) (err error) {
		c.Resolver, err = WebResolver(serviceURL)
		return err
	}
}

// UsingSendGrid registers SendGrid as the notifier.
func UsingSendGrid(cfg SendGridConfig) clientOption {
	return func(c *Client) (err error) {
		if c.Notifier, err = newSendGridNotifier(cfg); err != nil {
			return fmt.Errorf("ipupdate.UsingSendGrid: %w", err)
		}
		return nil
	}
}

func UsingNotifier(notifier Notifier) clientOption {
	return func(c *Client) error {
		c.Notifier = notifier
		return nil
	}
}

func WithLogger(logger logrus.FieldLogger) clientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the client used for every HTTP request.
// The default client gives up after DefaultTimeout.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		c.httpClient = httpclient
		return nil
	}
}

func withLogger(logger logrus.FieldLogger) clientOption {
	return func(c *Client) error {
		if logger == nil {
			logger = discard
		}
		type setLogger interface {
			SetLogger(logrus.FieldLogger)
		}
		for _, dep := range []any{c.Resolver, c.Provider, c.Notifier} {
			if d, ok := dep.(setLogger); ok {
				d.SetLogger(logger)
			}
		}
		return nil
	}
}

func withHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		for _, dep := range []any{c.Resolver, c.Provider, c.Notifier} {
			if d, ok := dep.(setHTTPClient); ok {
				d.SetHTTPClient(httpclient)
			}
		}
		return nil
	}
}

// Client runs comparison-and-update cycles.
type Client struct {
	Resolver
	Provider
	Notifier
	logger     logrus.FieldLogger
	httpClient *http.Client
}

// Run resolves the public IP once and brings every domain in line with it.
//
// Domains are handled one after another and independently:
// a failure for one domain is recorded in its Result and the next domain is still processed.
// If the public IP can't be resolved, no record is touched and every domain is marked Failed.
// The returned error joins the errors of all failed domains.
func (c *Client) Run(ctx context.Context, domains []DomainConfig) ([]Result, error) {
	results := make([]Result, 0, len(domains))

	ip, err := c.Resolve(ctx)
	if err == nil && !ip.IsValid() {
		err = errors.New("resolver returned an empty address")
	}
	if err != nil {
		err = fmt.Errorf("error getting public IP: %w", err)
		c.logger.WithError(err).Error("public IP unknown, no DNS records will be changed")
		for _, d := range domains {
			results = append(results, Result{Domain: d.Name, Status: Failed, Err: err})
			c.notify(ctx, c.logger.WithField("domain", d.Name), lookupFailure(d, err))
		}
		return results, err
	}
	ip = ip.Unmap()
	c.logger.Infof("current public IP is %s", ip)

	var errs []error
	for _, d := range domains {
		r := c.runDomain(ctx, ip, d)
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
		results = append(results, r)
	}
	return results, errors.Join(errs...)
}

func (c *Client) runDomain(ctx context.Context, ip netip.Addr, d DomainConfig) Result {
	log := c.logger.WithField("domain", d.Name)
	res := Result{Domain: d.Name, Current: ip.String()}
	rtype := d.Type()

	fail := func(err error, msg message) Result {
		res.Status = Failed
		res.Err = err
		log.WithError(err).Error("run failed")
		c.notify(ctx, log, msg)
		return res
	}

	if rtype != recordType(ip) {
		err := fmt.Errorf("%s: public IP %s cannot be stored in a %s record", d.Name, ip, rtype)
		return fail(err, lookupFailure(d, err))
	}

	log.Debugf("looking up %s record in zone %s", rtype, d.ZoneID)
	current, err := c.GetDNSRecord(ctx, d.ZoneID, rtype, d.Name)
	if err != nil {
		err = fmt.Errorf("error reading %s record for %s: %w", rtype, d.Name, err)
		return fail(err, lookupFailure(d, err))
	}
	res.Previous = current.Content

	if sameAddr(ip, current.Content) {
		log.Infof("%s record already points to %s", rtype, ip)
		res.Status = Unchanged
		return res
	}

	log.Infof("updating %s record from %s to %s", rtype, current.Content, ip)
	err = c.UpdateDNSRecord(ctx, d.ZoneID, DNSRecord{
		ID:      current.ID,
		Type:    rtype,
		Name:    d.Name,
		Content: ip.String(),
		TTL:     d.TTL,
		Proxied: d.Proxied,
	})
	if err != nil {
		err = fmt.Errorf("error updating %s record for %s: %w", rtype, d.Name, err)
		return fail(err, updateFailure(d, err))
	}

	log.Infof("%s record updated to %s", rtype, ip)
	res.Status = Updated
	c.notify(ctx, log, updateSuccess(d, ip))
	return res
}

// notify never changes the outcome of a run; delivery errors are only logged.
func (c *Client) notify(ctx context.Context, log logrus.FieldLogger, m message) {
	if err := c.Notify(ctx, m.subject, m.html); err != nil {
		log.WithError(err).Errorf("unable to send notification %q", m.subject)
		return
	}
	log.Debugf("notification sent: %q", m.subject)
}
