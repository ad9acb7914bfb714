package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

const DefaultProviderTimeout = 10 * time.Second

// Record describes the desired state of a single DNS record.
type Record struct {
	Type    string
	Name    string
	Content string
	TTL     int
	Proxied bool
}

// Outcome classifies the result of an upsert.
type Outcome int

const (
	Created Outcome = iota + 1
	Updated
	CreateFailed // no record existed and creating one failed
	UpdateFailed
	TransportError // the lookup failed, so neither create nor update was attempted
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case CreateFailed:
		return "create_failed"
	case UpdateFailed:
		return "update_failed"
	case TransportError:
		return "transport_error"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// OK reports whether the provider now holds the record.
func (o Outcome) OK() bool { return o == Created || o == Updated }

// UpsertResult is returned by RecordStore.Upsert.
// Response holds the record returned by the provider on success;
// Err is set for every failed outcome.
type UpsertResult struct {
	Outcome  Outcome
	RecordID string
	Response any
	Err      error
}

func newCloudflareStore(token, zoneID string, opts ...cloudflare.Option) (cf *cloudflareStore, err error) {
	if zoneID == "" {
		return nil, errors.New("zone ID cannot be empty")
	}
	cf = new(cloudflareStore)
	// A failed call is retried by the next sync cycle, never by the client.
	opts = append([]cloudflare.Option{cloudflare.UsingRetryPolicy(0, 0, 0)}, opts...)
	cf.api, err = cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.zoneID = zoneID
	cf.logger = zap.NewNop()
	cf.comment = "managed by ddns"
	cf.timeout = DefaultProviderTimeout
	return cf, nil
}

// cloudflareStore implements ddns.RecordStore for a single Cloudflare zone.
type cloudflareStore struct {
	api     *cloudflare.API
	zoneID  string
	logger  *zap.Logger
	comment string // optional comment to attach to each new DNS entry
	timeout time.Duration
}

func (cf *cloudflareStore) Upsert(ctx context.Context, r Record) UpsertResult {
	log := cf.logger.With(zap.String("name", r.Name), zap.String("type", r.Type), zap.String("ip", r.Content))
	rc := cloudflare.ZoneIdentifier(cf.zoneID)

	log.Debug("looking up existing record", zap.String("zone", cf.zoneID))
	id, err := cf.lookup(ctx, rc, r)
	if err != nil {
		log.Warn("record lookup failed", zap.Error(err))
		return UpsertResult{Outcome: TransportError, Err: fmt.Errorf("%w: %w", ErrLookup, err)}
	}

	proxied := r.Proxied
	if id == "" {
		log.Debug("no existing record, creating")
		cctx, cancel := context.WithTimeout(ctx, cf.timeout)
		defer cancel()
		record, err := cf.api.CreateDNSRecord(cctx, rc, cloudflare.CreateDNSRecordParams{
			Type:    r.Type,
			Name:    r.Name,
			Content: r.Content,
			TTL:     r.TTL,
			Proxied: &proxied,
			Comment: cf.comment,
		})
		if err != nil {
			log.Warn("record create failed", zap.Error(err))
			return UpsertResult{Outcome: CreateFailed, Err: fmt.Errorf("%w: error creating DNS record: %w", ErrUpsert, err)}
		}
		log.Debug("record created", zap.String("id", record.ID))
		return UpsertResult{Outcome: Created, RecordID: record.ID, Response: record}
	}

	log.Debug("replacing existing record", zap.String("id", id))
	uctx, cancel := context.WithTimeout(ctx, cf.timeout)
	defer cancel()
	record, err := cf.api.UpdateDNSRecord(uctx, rc, cloudflare.UpdateDNSRecordParams{
		ID:      id,
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: &proxied,
	})
	if err != nil {
		log.Warn("record update failed", zap.String("id", id), zap.Error(err))
		return UpsertResult{Outcome: UpdateFailed, RecordID: id, Err: fmt.Errorf("%w: unable to update DNS record %s: %w", ErrUpsert, id, err)}
	}
	if record.ID == "" {
		record.ID = id
	}
	return UpsertResult{Outcome: Updated, RecordID: id, Response: record}
}

// lookup returns the ID of the first record the provider reports for the exact name and type, or "" if there is none.
func (cf *cloudflareStore) lookup(ctx context.Context, rc *cloudflare.ResourceContainer, r Record) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cf.timeout)
	defer cancel()
	records, _, err := cf.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{
		Type: r.Type,
		Name: r.Name,
	})
	if err != nil {
		return "", fmt.Errorf("error listing %s records for %s: %w", r.Type, r.Name, err)
	}
	cf.logger.Debug("found existing records", zap.Int("count", len(records)))
	if len(records) == 0 {
		return "", nil
	}
	return records[0].ID, nil
}

func (cf *cloudflareStore) SetHTTPClient(c *http.Client) {
	cloudflare.HTTPClient(c)(cf.api)
}
