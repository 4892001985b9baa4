package ipupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// WebResolver constructs a resolver which asks an IP-echo web service for the public IP address.
//
// The service must speak http and return status "200 OK"
// with a JSON body of the form {"ip": "203.0.113.7"},
// as https://api.ipify.org?format=json does.
// All other responses are considered an error.
func WebResolver(serviceURL string) (Resolver, error) {
	if serviceURL == "" {
		return nil, errors.New("no IP lookup service URL was provided")
	}
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return &webResolver{serviceURL: u, logger: discard}, nil
}

func mustWebResolver(serviceURL string) Resolver {
	r, err := WebResolver(serviceURL)
	if err != nil {
		panic(err)
	}
	return r
}

type webResolver struct {
	httpClient *http.Client
	serviceURL *url.URL
	logger     logrus.FieldLogger
}

func (wr *webResolver) SetHTTPClient(hc *http.Client) { wr.httpClient = hc }
func (wr *webResolver) SetLogger(l logrus.FieldLogger) { wr.logger = l }

// Resolve implements ipupdate.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that Resolve completes even with context.Background and a client with no timeout.
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wr.serviceURL.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	wr.logger.Debugf("GET %s", wr.serviceURL.Redacted())
	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return netip.Addr{}, fmt.Errorf("error decoding response body: %w", err)
	}
	ip, err := netip.ParseAddr(strings.TrimSpace(body.IP))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return ip, nil
}
