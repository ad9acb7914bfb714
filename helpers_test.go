package ddns_test

import (
	"context"
	"net/netip"
	"strings"
	"sync"

	"github.com/Travis-Britz/ddnsync"
	"github.com/Travis-Britz/ddnsync/auditlog"
)

// memAudit collects entries in memory.
type memAudit struct {
	mu      sync.Mutex
	entries []auditlog.Entry
}

func (m *memAudit) Append(level auditlog.Level, message string, f auditlog.Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := auditlog.Entry{
		Level:   level,
		Message: message,
		Cycle:   f.Cycle,
		Type:    f.Type,
		NewIP:   f.NewIP,
		Attempt: f.Attempt,
	}
	if f.Err != nil {
		e.Error = f.Err.Error()
	}
	m.entries = append(m.entries, e)
}

func (m *memAudit) all() []auditlog.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auditlog.Entry(nil), m.entries...)
}

func (m *memAudit) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

func (m *memAudit) count(level auditlog.Level, contains string) int {
	n := 0
	for _, e := range m.all() {
		if e.Level == level && strings.Contains(e.Message, contains) {
			n++
		}
	}
	return n
}

// stubStore records upserts and replays queued results.
// Without queued results every upsert reports Updated.
type stubStore struct {
	mu      sync.Mutex
	calls   []ddns.Record
	results []ddns.UpsertResult
}

func (s *stubStore) Upsert(_ context.Context, r ddns.Record) ddns.UpsertResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, r)
	if len(s.results) == 0 {
		return ddns.UpsertResult{Outcome: ddns.Updated, RecordID: "rec-1"}
	}
	res := s.results[0]
	s.results = s.results[1:]
	return res
}

func (s *stubStore) records() []ddns.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ddns.Record(nil), s.calls...)
}

// mutableSource returns whatever address is currently set for each family.
type mutableSource struct {
	mu    sync.Mutex
	addrs map[ddns.Family]netip.Addr
	calls int
}

func newMutableSource(v4, v6 string) *mutableSource {
	s := &mutableSource{addrs: map[ddns.Family]netip.Addr{}}
	s.set(ddns.IPv4, v4)
	s.set(ddns.IPv6, v6)
	return s
}

func (s *mutableSource) set(f ddns.Family, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr == "" {
		delete(s.addrs, f)
		return
	}
	s.addrs[f] = netip.MustParseAddr(addr)
}

func (s *mutableSource) Lookup(_ context.Context, f ddns.Family) (netip.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	a, ok := s.addrs[f]
	if !ok {
		return netip.Addr{}, errUnreachable
	}
	return a, nil
}
