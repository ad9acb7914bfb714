package ddns

import (
	"errors"

	"github.com/Travis-Britz/ddnsync/auditlog"
)

var (
	// ErrResolution is returned by Resolver.Resolve when every attempt failed.
	ErrResolution = errors.New("address resolution failed")
	// ErrLookup wraps failures to list existing records at the provider.
	ErrLookup = errors.New("record lookup failed")
	// ErrUpsert wraps failed create and update calls.
	ErrUpsert = errors.New("record upsert failed")
	// ErrInvalidAddress is returned by sources when the response is not an address of the requested family.
	// Resolver does not retry it.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrLogCorruption is recovered inside the audit log and never surfaces from a cycle.
	ErrLogCorruption = auditlog.ErrCorrupt
	// ErrConfiguration is the only error that should stop the process.
	ErrConfiguration = errors.New("invalid configuration")
)
