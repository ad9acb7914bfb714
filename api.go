package ddns

import (
	"context"
	"net/netip"

	"github.com/Travis-Britz/ddnsync/auditlog"
)

// Source looks up the current address of the host for one address family.
// Sources make a single attempt; retries are handled by Resolver.
type Source interface {
	Lookup(ctx context.Context, family Family) (netip.Addr, error)
}

// SourceFunc adapts an ordinary function to a Source.
type SourceFunc func(ctx context.Context, family Family) (netip.Addr, error)

func (f SourceFunc) Lookup(ctx context.Context, family Family) (netip.Addr, error) {
	return f(ctx, family)
}

// RecordStore creates or replaces a single DNS record at a provider.
type RecordStore interface {
	Upsert(ctx context.Context, r Record) UpsertResult
}

// Auditor receives the outcome of every step of a sync cycle.
// *auditlog.Log implements Auditor.
type Auditor interface {
	Append(level auditlog.Level, message string, f auditlog.Fields)
}

type nopAuditor struct{}

func (nopAuditor) Append(auditlog.Level, string, auditlog.Fields) {}
