package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync/auditlog"
)

const DefaultInterval = 60 * time.Second

// New constructs a Syncer that keeps the A (and optionally AAAA) record for name pointed at the host.
//
// A RecordStore must be registered with UsingCloudflare or UsingStore.
// Without a source option the addresses are looked up with WebSource(DefaultIPv4URL, DefaultIPv6URL).
func New(name string, options ...Option) (*Syncer, error) {
	if name == "" {
		return nil, fmt.Errorf("ddns.New: record name cannot be empty")
	}
	if !strings.Contains(name, ".") {
		return nil, fmt.Errorf("ddns.New: record name %q must have at least one dot", name)
	}
	o := &settings{
		ttl:             1,
		attempts:        DefaultAttempts,
		backoffUnit:     DefaultBackoffUnit,
		resolveTimeout:  DefaultResolveTimeout,
		providerTimeout: DefaultProviderTimeout,
		comment:         "managed by ddns",
	}
	for i, opt := range options {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %w", i, err)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.audit == nil {
		o.audit = nopAuditor{}
	}

	if o.source == nil {
		ws, err := WebSource(DefaultIPv4URL, DefaultIPv6URL)
		if err != nil {
			return nil, fmt.Errorf("ddns.New: %w", err)
		}
		o.source = ws
	}
	if o.store == nil && o.cfToken != "" {
		cf, err := newCloudflareStore(o.cfToken, o.cfZoneID, o.cfOptions...)
		if err != nil {
			return nil, fmt.Errorf("ddns.New: error creating cloudflare DNS provider: %w", err)
		}
		cf.logger = o.logger.Named("cloudflare")
		cf.comment = o.comment
		cf.timeout = o.providerTimeout
		o.store = cf
	}
	if o.store == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingCloudflare or similar")
	}

	if o.httpClient != nil {
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		if hc, ok := o.source.(setHTTPClient); ok {
			hc.SetHTTPClient(o.httpClient)
		}
		if hc, ok := o.store.(setHTTPClient); ok {
			hc.SetHTTPClient(o.httpClient)
		}
	}

	r := NewResolver(o.source, o.audit, o.logger.Named("resolver"))
	r.attempts = o.attempts
	r.unit = o.backoffUnit
	r.timeout = o.resolveTimeout

	s := &Syncer{
		resolver: r,
		store:    o.store,
		detector: NewDetector(),
		audit:    o.audit,
		logger:   o.logger,
		name:     name,
		ttl:      o.ttl,
		proxied:  o.proxied,
		families: []Family{IPv4},
	}
	if o.ipv6 {
		s.families = append(s.families, IPv6)
	}
	return s, nil
}

type settings struct {
	source     Source
	store      RecordStore
	cfToken    string
	cfZoneID   string
	cfOptions  []cloudflare.Option
	httpClient *http.Client
	audit      Auditor
	logger     *zap.Logger

	ttl             int
	proxied         bool
	ipv6            bool
	attempts        int
	backoffUnit     time.Duration
	resolveTimeout  time.Duration
	providerTimeout time.Duration
	comment         string
}

type Option func(*settings) error

// UsingCloudflare registers a Cloudflare zone as the record store.
// Extra cloudflare options are passed to the API client.
func UsingCloudflare(token, zoneID string, opts ...cloudflare.Option) Option {
	return func(o *settings) error {
		if token == "" {
			return errors.New("ddns.UsingCloudflare: API token cannot be empty")
		}
		if zoneID == "" {
			return errors.New("ddns.UsingCloudflare: zone ID cannot be empty")
		}
		o.cfToken, o.cfZoneID, o.cfOptions = token, zoneID, opts
		return nil
	}
}

func UsingStore(store RecordStore) Option {
	return func(o *settings) error {
		if store == nil {
			return errors.New("ddns.UsingStore: store cannot be nil")
		}
		o.store = store
		return nil
	}
}

func UsingSource(source Source) Option {
	return func(o *settings) error {
		if source == nil {
			return errors.New("ddns.UsingSource: source cannot be nil")
		}
		o.source = source
		return nil
	}
}

func UsingWebSource(ipv4URL, ipv6URL string) Option {
	return func(o *settings) (err error) {
		o.source, err = WebSource(ipv4URL, ipv6URL)
		return err
	}
}

// UsingHTTPClient sets the client used by the web source and the Cloudflare store.
func UsingHTTPClient(httpclient *http.Client) Option {
	return func(o *settings) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		o.httpClient = httpclient
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *settings) error {
		o.logger = logger
		return nil
	}
}

func WithAuditLog(audit Auditor) Option {
	return func(o *settings) error {
		o.audit = audit
		return nil
	}
}

// WithIPv6 enables the AAAA record. Only the A record is managed by default.
func WithIPv6(enabled bool) Option {
	return func(o *settings) error {
		o.ipv6 = enabled
		return nil
	}
}

// WithTTL sets the record TTL in seconds. Cloudflare treats 1 as "automatic".
func WithTTL(seconds int) Option {
	return func(o *settings) error {
		if seconds < 1 {
			return fmt.Errorf("ddns.WithTTL: ttl must be positive; got %d", seconds)
		}
		o.ttl = seconds
		return nil
	}
}

func WithProxied(proxied bool) Option {
	return func(o *settings) error {
		o.proxied = proxied
		return nil
	}
}

// WithRetries sets the number of lookup attempts per family and the linear backoff unit.
func WithRetries(attempts int, unit time.Duration) Option {
	return func(o *settings) error {
		if attempts < 1 {
			return fmt.Errorf("ddns.WithRetries: attempts must be at least 1; got %d", attempts)
		}
		if unit < 0 {
			return fmt.Errorf("ddns.WithRetries: backoff unit cannot be negative")
		}
		o.attempts, o.backoffUnit = attempts, unit
		return nil
	}
}

// WithTimeouts sets the per-attempt lookup timeout and the per-call provider timeout.
func WithTimeouts(resolve, provider time.Duration) Option {
	return func(o *settings) error {
		if resolve <= 0 || provider <= 0 {
			return errors.New("ddns.WithTimeouts: timeouts must be positive")
		}
		o.resolveTimeout, o.providerTimeout = resolve, provider
		return nil
	}
}

// WithComment sets the comment attached to records created by the Cloudflare store.
func WithComment(comment string) Option {
	return func(o *settings) error {
		o.comment = comment
		return nil
	}
}

// Syncer runs the resolve, detect and upsert cycle.
//
// A Syncer owns its address state and must only be driven from one goroutine at a time;
// RunDaemon guarantees this for the scheduled cycles.
type Syncer struct {
	resolver *Resolver
	store    RecordStore
	detector *Detector
	audit    Auditor
	logger   *zap.Logger
	name     string
	ttl      int
	proxied  bool
	families []Family
}

// Address returns the last address successfully published for family.
func (s *Syncer) Address(family Family) string {
	return s.detector.Last(family)
}

// RunStartup resolves every enabled family and pushes whatever was resolved,
// regardless of the remembered state.
// Families whose address could not be resolved are skipped.
//
// Failures are written to the audit log and joined into the returned error;
// they never stop the remaining families from being processed.
func (s *Syncer) RunStartup(ctx context.Context) error {
	ctx, cycle := s.begin(ctx, "startup")
	defer cycles.Inc()

	var errs []error
	addrs := make(map[Family]string, len(s.families))
	for _, f := range s.families {
		a, err := s.resolver.Resolve(ctx, f)
		if err != nil {
			errs = append(errs, err)
		}
		addrs[f] = a
	}
	for _, f := range s.families {
		if addrs[f] == "" {
			s.logger.Warn("skipping startup sync", zap.Stringer("family", f))
			s.audit.Append(auditlog.Warn, fmt.Sprintf("skipping %s record: %s address could not be resolved", f.RecordType(), f), auditlog.Fields{
				Cycle: cycle,
				Type:  f.RecordType(),
			})
			continue
		}
		if err := s.push(ctx, cycle, f, addrs[f]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunCycle processes each enabled family in turn, IPv4 first.
// A record is only pushed when the resolved address differs from the last one published.
func (s *Syncer) RunCycle(ctx context.Context) error {
	ctx, cycle := s.begin(ctx, "cycle")
	defer cycles.Inc()

	var errs []error
	for _, f := range s.families {
		a, err := s.resolver.Resolve(ctx, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !s.detector.ShouldSync(f, a) {
			s.logger.Debug("address unchanged", zap.Stringer("family", f), zap.String("ip", a))
			s.audit.Append(auditlog.Info, fmt.Sprintf("no change: %s record already points to %s", f.RecordType(), a), auditlog.Fields{
				Cycle: cycle,
				Type:  f.RecordType(),
				NewIP: a,
			})
			continue
		}
		s.logger.Info("address changed", zap.Stringer("family", f), zap.String("old", s.detector.Last(f)), zap.String("new", a))
		if err := s.push(ctx, cycle, f, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// push upserts the record for family and commits the address once the provider holds it.
// A failed push leaves the old state in place so the next cycle tries again.
func (s *Syncer) push(ctx context.Context, cycle string, f Family, addr string) error {
	rec := Record{
		Type:    f.RecordType(),
		Name:    s.name,
		Content: addr,
		TTL:     s.ttl,
		Proxied: s.proxied,
	}
	res := s.store.Upsert(ctx, rec)
	upserts.WithLabelValues(rec.Type, res.Outcome.String()).Inc()

	fields := auditlog.Fields{
		Cycle:    cycle,
		Type:     rec.Type,
		NewIP:    addr,
		Response: res.Response,
		Err:      res.Err,
	}
	if res.Outcome.OK() {
		s.detector.Commit(f, addr)
		s.logger.Info("record synced",
			zap.String("name", s.name),
			zap.String("type", rec.Type),
			zap.String("ip", addr),
			zap.Stringer("outcome", res.Outcome))
		s.audit.Append(auditlog.Info, fmt.Sprintf("%s record %s", rec.Type, res.Outcome), fields)
		return nil
	}

	err := res.Err
	if err == nil {
		err = fmt.Errorf("%w: %s", ErrUpsert, res.Outcome)
		fields.Err = err
	}
	s.logger.Error("record sync failed",
		zap.String("name", s.name),
		zap.String("type", rec.Type),
		zap.String("ip", addr),
		zap.Stringer("outcome", res.Outcome),
		zap.Error(err))
	s.audit.Append(auditlog.Error, fmt.Sprintf("%s record sync failed: %s", rec.Type, res.Outcome), fields)
	return err
}

func (s *Syncer) begin(ctx context.Context, kind string) (context.Context, string) {
	id := uuid.NewString()
	s.logger.Debug("starting "+kind, zap.String("cycle", id))
	return withCycle(ctx, id), id
}

// RunDaemon runs the startup sync and then a cycle every interval until ctx is done.
//
// All cycles run on a single worker goroutine.
// A tick that fires while a cycle is still running is dropped rather than queued.
func (s *Syncer) RunDaemon(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticks := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.RunStartup(ctx); err != nil {
			s.logger.Warn("startup sync incomplete", zap.Error(err))
		}
		for range ticks {
			if ctx.Err() != nil {
				return
			}
			if err := s.RunCycle(ctx); err != nil {
				s.logger.Warn("sync cycle incomplete", zap.Error(err))
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(ticks)
			<-done
			return
		case <-ticker.C:
			select {
			case ticks <- struct{}{}:
			default:
				skippedTicks.Inc()
				s.logger.Debug("previous cycle still running, dropping tick")
			}
		}
	}
}

type cycleKey struct{}

func withCycle(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

func cycleFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cycleKey{}).(string)
	return id
}
