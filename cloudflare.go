package ipupdate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/sirupsen/logrus"
)

// DefaultCloudflareBaseURL is the Cloudflare v4 API root.
const DefaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"

// APIError is returned when the DNS provider answers an update with anything but 200 OK.
// Body holds the provider's reply exactly as it was received.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dns provider returned %s: %s", e.Status, e.Body)
}

func newCloudflareProvider(email, apiKey, baseURL string) (cf *cloudflareProvider, err error) {
	if baseURL == "" {
		baseURL = DefaultCloudflareBaseURL
	}
	cf = &cloudflareProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		logger:     discard,
	}
	// one attempt per request; a missed update is picked up by the next scheduled run
	cf.api, err = cloudflare.New(apiKey, email,
		cloudflare.BaseURL(cf.baseURL),
		cloudflare.UsingRetryPolicy(0, 0, 0),
		cloudflare.HTTPClient(lookupClient(cf.httpClient)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return cf, nil
}

// cloudflareProvider implements ipupdate.Provider.
//
// Lookups go through cloudflare-go.
// Updates are sent as a PUT of the full record so that the reply body can be reported verbatim.
type cloudflareProvider struct {
	api        *cloudflare.API
	baseURL    string
	email      string
	apiKey     string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func (cf *cloudflareProvider) SetLogger(l logrus.FieldLogger) { cf.logger = l }

func (cf *cloudflareProvider) SetHTTPClient(hc *http.Client) {
	cf.httpClient = hc
	cloudflare.HTTPClient(lookupClient(hc))(cf.api)
}

// lookupClient returns a copy of hc whose transport reports every reply other than 200 OK as an error.
// cloudflare-go only rejects statuses of 400 and above.
func lookupClient(hc *http.Client) *http.Client {
	c := *hc
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c.Transport = requireOK{next: next}
	return &c
}

type requireOK struct {
	next http.RoundTripper
}

func (t requireOK) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK || resp.StatusCode >= 400 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
}

func (cf *cloudflareProvider) GetDNSRecord(ctx context.Context, zoneID, recordType, name string) (DNSRecord, error) {
	if cf.api == nil {
		return DNSRecord{}, errors.New("ipupdate: cloudflare provider should be constructed with ipupdate.UsingCloudflare")
	}
	// only the first match is used, so a single page is enough
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type:       recordType,
		Name:       name,
		ResultInfo: cloudflare.ResultInfo{Page: 1, PerPage: 100},
	})
	if err != nil {
		return DNSRecord{}, fmt.Errorf("error listing %s records in zone %s: %w", recordType, zoneID, err)
	}
	cf.logger.Debugf("found %d existing records: %+v", len(records), records)
	if len(records) == 0 {
		return DNSRecord{}, fmt.Errorf("no %s record named %s in zone %s: %w", recordType, name, zoneID, ErrRecordNotFound)
	}

	r := records[0]
	return DNSRecord{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: r.Proxied != nil && *r.Proxied,
	}, nil
}

type recordBody struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func (cf *cloudflareProvider) UpdateDNSRecord(ctx context.Context, zoneID string, record DNSRecord) error {
	if record.ID == "" {
		return errors.New("record ID cannot be empty")
	}
	if record.Content == "" {
		return fmt.Errorf("refusing to write empty content to %s", record.Name)
	}

	body, err := json.Marshal(recordBody{
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
		TTL:     record.TTL,
		Proxied: record.Proxied,
	})
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}

	u := fmt.Sprintf("%s/zones/%s/dns_records/%s", cf.baseURL, url.PathEscape(zoneID), url.PathEscape(record.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("X-Auth-Email", cf.email)
	req.Header.Set("X-Auth-Key", cf.apiKey)
	req.Header.Set("Content-Type", "application/json")

	cf.logger.Debugf("PUT %s %s", u, body)
	resp, err := cf.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(reply)}
	}
	cf.logger.Debugf("update accepted: %s", reply)
	return nil
}
