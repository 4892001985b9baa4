package ipupdate_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	testEmail = "ops@example.com"
	testKey   = "cf-key"
)

type cfRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type putRequest struct {
	Zone string
	ID   string
	Body map[string]any
}

// fakeCloudflare serves the subset of the Cloudflare v4 API used for DNS record lookups and updates.
type fakeCloudflare struct {
	*httptest.Server

	mu       sync.Mutex
	records  map[string][]cfRecord // by zone ID
	gets     int
	puts     []putRequest
	putCode  int    // status for PUT replies; 200 when zero
	putReply string // body for non-200 PUT replies
	getCode  int    // status for GET replies; 200 when zero
	bare     bool   // GET replies carry only the result envelope, no result_info
}

func newFakeCloudflare(t *testing.T, records map[string][]cfRecord) *fakeCloudflare {
	t.Helper()
	f := &fakeCloudflare{records: records}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeCloudflare) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("X-Auth-Email") != testEmail || r.Header.Get("X-Auth-Key") != testKey {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"success":false,"errors":[{"code":9103,"message":"Unknown X-Auth-Key or X-Auth-Email"}],"messages":[],"result":null}`)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "zones" || parts[2] != "dns_records" {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"errors":[{"code":7003,"message":"Could not route"}],"messages":[],"result":null}`)
		return
	}
	zone := parts[1]

	switch {
	case r.Method == http.MethodGet && len(parts) == 3:
		f.gets++
		q := r.URL.Query()
		matched := []cfRecord{}
		for _, rec := range f.records[zone] {
			if rec.Type == q.Get("type") && rec.Name == q.Get("name") {
				matched = append(matched, rec)
			}
		}
		reply := map[string]any{
			"success":  true,
			"errors":   []any{},
			"messages": []any{},
			"result":   matched,
		}
		if !f.bare {
			reply["result_info"] = map[string]int{
				"page": 1, "per_page": 100, "count": len(matched), "total_count": len(matched), "total_pages": 1,
			}
		}
		if f.getCode != 0 {
			w.WriteHeader(f.getCode)
		}
		json.NewEncoder(w).Encode(reply)

	case r.Method == http.MethodPut && len(parts) == 4:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.puts = append(f.puts, putRequest{Zone: zone, ID: parts[3], Body: body})
		if f.putCode != 0 && f.putCode != http.StatusOK {
			w.WriteHeader(f.putCode)
			io.WriteString(w, f.putReply)
			return
		}
		for i, rec := range f.records[zone] {
			if rec.ID == parts[3] {
				rec.Content, _ = body["content"].(string)
				f.records[zone][i] = rec
				json.NewEncoder(w).Encode(map[string]any{"success": true, "errors": []any{}, "messages": []any{}, "result": rec})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"errors":[{"code":81044,"message":"Record does not exist."}],"messages":[],"result":null}`)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeCloudflare) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeCloudflare) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeCloudflare) lastPut() putRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[len(f.puts)-1]
}

type sentMessage struct {
	Subject string
	HTML    string
}

// recordingNotifier implements ipupdate.Notifier and remembers every message.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, subject, html string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{subject, html})
	return n.err
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}
