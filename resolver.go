package ddns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync/auditlog"
)

const (
	DefaultAttempts       = 3
	DefaultBackoffUnit    = 1 * time.Second
	DefaultResolveTimeout = 5 * time.Second
)

// Resolver wraps a Source with bounded retries.
//
// Each attempt gets its own timeout.
// After failed attempt N the resolver waits N times the backoff unit,
// so the total wait for three attempts is three units.
type Resolver struct {
	source   Source
	attempts int
	unit     time.Duration
	timeout  time.Duration
	audit    Auditor
	logger   *zap.Logger
}

// NewResolver returns a Resolver using the default attempt count, backoff unit and timeout.
func NewResolver(source Source, audit Auditor, logger *zap.Logger) *Resolver {
	if audit == nil {
		audit = nopAuditor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:   source,
		attempts: DefaultAttempts,
		unit:     DefaultBackoffUnit,
		timeout:  DefaultResolveTimeout,
		audit:    audit,
		logger:   logger,
	}
}

// Resolve returns the current address of the family in its canonical string form.
// The returned error wraps ErrResolution when every attempt failed;
// callers must treat the address as unknown rather than changed.
func (r *Resolver) Resolve(ctx context.Context, family Family) (string, error) {
	attempts := r.attempts
	if attempts < 1 {
		attempts = 1
	}
	cycle := cycleFromContext(ctx)

	var (
		attempt int
		addr    string
	)
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		a, err := r.source.Lookup(actx, family)
		if err == nil && !family.Matches(a) {
			err = fmt.Errorf("%w: source returned %q for %s", ErrInvalidAddress, a, family)
		}
		if err != nil {
			resolveFailures.WithLabelValues(family.String()).Inc()
			r.logger.Warn("address lookup failed",
				zap.Stringer("family", family),
				zap.Int("attempt", attempt),
				zap.Int("attempts", attempts),
				zap.Error(err))
			r.audit.Append(auditlog.Warn, fmt.Sprintf("%s lookup attempt %d of %d failed", family, attempt, attempts), auditlog.Fields{
				Cycle:   cycle,
				Type:    family.RecordType(),
				Attempt: attempt,
				Err:     err,
			})
			if errors.Is(err, ErrInvalidAddress) {
				return backoff.Permanent(err)
			}
			return err
		}
		addr = a.Unmap().String()
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{unit: r.unit}, uint64(attempts-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		err = fmt.Errorf("%w: %s: giving up after %d attempts: %w", ErrResolution, family, attempt, err)
		r.logger.Error("unable to resolve address", zap.Stringer("family", family), zap.Error(err))
		r.audit.Append(auditlog.Error, fmt.Sprintf("unable to resolve %s address", family), auditlog.Fields{
			Cycle: cycle,
			Type:  family.RecordType(),
			Err:   err,
		})
		return "", err
	}
	r.logger.Debug("resolved address", zap.Stringer("family", family), zap.String("ip", addr), zap.Int("attempt", attempt))
	return addr, nil
}

// linearBackOff waits n units after the nth failure.
type linearBackOff struct {
	unit time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.unit
}

func (b *linearBackOff) Reset() { b.n = 0 }
