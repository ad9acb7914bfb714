package ddns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRecord struct {
	ID      string `json:"id"`
	ZoneID  string `json:"zone_id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
	Comment string `json:"comment,omitempty"`
}

// fakeCloudflare implements the subset of the Cloudflare v4 DNS API used by cloudflareStore.
type fakeCloudflare struct {
	*httptest.Server
	zone string

	mu         sync.Mutex
	records    []*fakeRecord
	nextID     int
	lists      int
	creates    int
	updates    int
	failList   bool
	failCreate bool
	failUpdate bool
	lastAuth   string
}

func newFakeCloudflare(t *testing.T, zone string) *fakeCloudflare {
	f := &fakeCloudflare{zone: zone}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeCloudflare) add(r fakeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = fmt.Sprintf("rec%d", f.nextID)
	r.ZoneID = f.zone
	f.records = append(f.records, &r)
}

func (f *fakeCloudflare) snapshot() []fakeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeRecord
	for _, r := range f.records {
		out = append(out, *r)
	}
	return out
}

func (f *fakeCloudflare) counts() (lists, creates, updates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists, f.creates, f.updates
}

func (f *fakeCloudflare) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuth = r.Header.Get("Authorization")

	prefix := "/zones/" + f.zone + "/dns_records"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeCloudflare(w, http.StatusNotFound, nil, nil, "route not found")
		return
	}
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		f.lists++
		if f.failList {
			writeCloudflare(w, http.StatusBadRequest, nil, nil, "list failed")
			return
		}
		q := r.URL.Query()
		matches := []*fakeRecord{}
		for _, rec := range f.records {
			if rec.Name == q.Get("name") && rec.Type == q.Get("type") {
				matches = append(matches, rec)
			}
		}
		info := map[string]int{"page": 1, "per_page": 100, "count": len(matches), "total_count": len(matches), "total_pages": 1}
		writeCloudflare(w, http.StatusOK, matches, info, "")

	case id == "" && r.Method == http.MethodPost:
		f.creates++
		if f.failCreate {
			writeCloudflare(w, http.StatusBadRequest, nil, nil, "create failed")
			return
		}
		var rec fakeRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeCloudflare(w, http.StatusBadRequest, nil, nil, err.Error())
			return
		}
		f.nextID++
		rec.ID = fmt.Sprintf("rec%d", f.nextID)
		rec.ZoneID = f.zone
		f.records = append(f.records, &rec)
		writeCloudflare(w, http.StatusOK, rec, nil, "")

	case id != "":
		var rec *fakeRecord
		for _, candidate := range f.records {
			if candidate.ID == id {
				rec = candidate
			}
		}
		if rec == nil {
			writeCloudflare(w, http.StatusNotFound, nil, nil, "record not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeCloudflare(w, http.StatusOK, rec, nil, "")
		case http.MethodPut, http.MethodPatch:
			f.updates++
			if f.failUpdate {
				writeCloudflare(w, http.StatusBadRequest, nil, nil, "update failed")
				return
			}
			var body fakeRecord
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeCloudflare(w, http.StatusBadRequest, nil, nil, err.Error())
				return
			}
			rec.Type, rec.Name, rec.Content, rec.TTL, rec.Proxied = body.Type, body.Name, body.Content, body.TTL, body.Proxied
			writeCloudflare(w, http.StatusOK, rec, nil, "")
		default:
			writeCloudflare(w, http.StatusMethodNotAllowed, nil, nil, "method not allowed")
		}

	default:
		writeCloudflare(w, http.StatusMethodNotAllowed, nil, nil, "method not allowed")
	}
}

func writeCloudflare(w http.ResponseWriter, status int, result any, info map[string]int, errMsg string) {
	body := map[string]any{
		"success":  errMsg == "",
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
	}
	if errMsg != "" {
		body["errors"] = []any{map[string]any{"code": 1004, "message": errMsg}}
	}
	if info != nil {
		body["result_info"] = info
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestStore(t *testing.T, f *fakeCloudflare) *cloudflareStore {
	t.Helper()
	cf, err := newCloudflareStore("test-token", f.zone, cloudflare.BaseURL(f.URL), cloudflare.UsingRateLimit(1000))
	require.NoError(t, err)
	cf.logger = zaptest.NewLogger(t)
	return cf
}

func TestUpsertCreatesMissingRecord(t *testing.T) {
	f := newFakeCloudflare(t, "zone123")
	f.add(fakeRecord{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1})
	cf := newTestStore(t, f)

	res := cf.Upsert(context.Background(), Record{Type: "AAAA", Name: "home.example.com", Content: "2001:db8::5", TTL: 120, Proxied: true})
	require.NoError(t, res.Err)
	require.Equal(t, Created, res.Outcome)
	require.NotEmpty(t, res.RecordID)
	require.NotNil(t, res.Response)

	_, creates, updates := f.counts()
	require.Equal(t, 1, creates)
	require.Equal(t, 0, updates, "a missing record must be created, not updated")

	recs := f.snapshot()
	require.Len(t, recs, 2)
	require.Equal(t, "AAAA", recs[1].Type)
	require.Equal(t, "2001:db8::5", recs[1].Content)
	require.Equal(t, 120, recs[1].TTL)
	require.True(t, recs[1].Proxied)
	require.Equal(t, "managed by ddns", recs[1].Comment)
	require.Equal(t, "Bearer test-token", f.lastAuth)
}

func TestUpsertRoundTrip(t *testing.T) {
	f := newFakeCloudflare(t, "zone123")
	cf := newTestStore(t, f)
	rc := cloudflare.ZoneIdentifier(f.zone)

	res := cf.Upsert(context.Background(), Record{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1})
	require.Equal(t, Created, res.Outcome)

	id, err := cf.lookup(context.Background(), rc, Record{Type: "A", Name: "home.example.com"})
	require.NoError(t, err)
	require.Equal(t, res.RecordID, id)
}

func TestUpsertIsIdempotent(t *testing.T) {
	f := newFakeCloudflare(t, "zone123")
	f.add(fakeRecord{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1})
	cf := newTestStore(t, f)

	rec := Record{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1}
	first := cf.Upsert(context.Background(), rec)
	second := cf.Upsert(context.Background(), rec)
	require.Equal(t, Updated, first.Outcome)
	require.Equal(t, Updated, second.Outcome)
	require.Equal(t, first.RecordID, second.RecordID)

	_, creates, updates := f.counts()
	require.Equal(t, 0, creates)
	require.Equal(t, 2, updates)
	require.Len(t, f.snapshot(), 1, "no duplicate records")
}

func TestUpsertReplacesFirstMatch(t *testing.T) {
	f := newFakeCloudflare(t, "zone123")
	f.add(fakeRecord{Type: "A", Name: "home.example.com", Content: "198.51.100.1", TTL: 300})
	f.add(fakeRecord{Type: "A", Name: "home.example.com", Content: "198.51.100.2", TTL: 300})
	cf := newTestStore(t, f)

	res := cf.Upsert(context.Background(), Record{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 60})
	require.Equal(t, Updated, res.Outcome)
	require.Equal(t, "rec1", res.RecordID)

	recs := f.snapshot()
	require.Equal(t, "203.0.113.5", recs[0].Content)
	require.Equal(t, 60, recs[0].TTL)
	require.Equal(t, "198.51.100.2", recs[1].Content)
}

func TestUpsertFailures(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		f := newFakeCloudflare(t, "zone123")
		f.failList = true
		res := newTestStore(t, f).Upsert(context.Background(), Record{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1})
		require.Equal(t, TransportError, res.Outcome)
		require.ErrorIs(t, res.Err, ErrLookup)
		_, creates, updates := f.counts()
		require.Zero(t, creates+updates)
	})
	t.Run("create", func(t *testing.T) {
		f := newFakeCloudflare(t, "zone123")
		f.failCreate = true
		res := newTestStore(t, f).Upsert(context.Background(), Record{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1})
		require.Equal(t, CreateFailed, res.Outcome)
		require.ErrorIs(t, res.Err, ErrUpsert)
		require.False(t, res.Outcome.OK())
	})
	t.Run("update", func(t *testing.T) {
		f := newFakeCloudflare(t, "zone123")
		f.add(fakeRecord{Type: "A", Name: "home.example.com", Content: "198.51.100.1", TTL: 1})
		f.failUpdate = true
		res := newTestStore(t, f).Upsert(context.Background(), Record{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1})
		require.Equal(t, UpdateFailed, res.Outcome)
		require.Equal(t, "rec1", res.RecordID)
		require.ErrorIs(t, res.Err, ErrUpsert)
	})
	t.Run("unreachable", func(t *testing.T) {
		f := newFakeCloudflare(t, "zone123")
		cf := newTestStore(t, f)
		f.Close()
		res := cf.Upsert(context.Background(), Record{Type: "A", Name: "home.example.com", Content: "203.0.113.5", TTL: 1})
		require.Equal(t, TransportError, res.Outcome)
	})
}

func TestSyncerWithCloudflare(t *testing.T) {
	f := newFakeCloudflare(t, "zone123")
	src, err := StaticSource("203.0.113.5", "2001:db8::5")
	require.NoError(t, err)

	s, err := New("home.example.com",
		UsingCloudflare("test-token", f.zone, cloudflare.BaseURL(f.URL), cloudflare.UsingRateLimit(1000)),
		UsingSource(src),
		WithIPv6(true),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	require.NoError(t, s.RunStartup(context.Background()))
	require.NoError(t, s.RunStartup(context.Background()))

	recs := f.snapshot()
	require.Len(t, recs, 2)
	_, creates, updates := f.counts()
	require.Equal(t, 2, creates)
	require.Equal(t, 2, updates)
}
