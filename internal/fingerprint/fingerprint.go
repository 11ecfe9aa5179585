// Package fingerprint derives a stable device identifier from hardware
// attributes. The identifier binds a license to one machine; the licensing
// service is the authority, the identifier itself is not a security boundary.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DeviceID is a deterministic, fixed-length lowercase hex identifier for a
// machine. Equal hardware attributes always produce the equal DeviceID.
type DeviceID string

// idLength is the number of hex characters kept from the digest. Truncation
// trades collision resistance for a compact identifier; acceptable because
// the server is the authority on bindings.
const idLength = 16

// delimiter joins attribute values before hashing. The join order is fixed:
// processor, then firmware, then disk. Permuting the order changes the ID,
// so the order is part of the contract.
const delimiter = "|"

// ErrHardwareUnavailable is returned when the platform query mechanism as a
// whole cannot run. Individual missing attributes never cause it; they
// degrade to empty strings instead.
var ErrHardwareUnavailable = errors.New("hardware query mechanism unavailable")

// Source provides the raw hardware attributes used for derivation. Each
// query is independently fallible; a failure is treated the same as an
// empty value.
type Source interface {
	ProcessorID(ctx context.Context) (string, error)
	FirmwareSerial(ctx context.Context) (string, error)
	DiskSerial(ctx context.Context) (string, error)
}

// Generator derives and caches the device identifier.
type Generator struct {
	source Source

	cacheMutex sync.RWMutex
	cached     DeviceID
	hasCached  bool
}

// NewGenerator creates a generator backed by the given attribute source.
func NewGenerator(source Source) *Generator {
	return &Generator{source: source}
}

// Generate derives the device identifier. The result is cached for the
// lifetime of the process since it is deterministic for a given machine.
func (g *Generator) Generate(ctx context.Context) (DeviceID, error) {
	g.cacheMutex.RLock()
	if g.hasCached {
		id := g.cached
		g.cacheMutex.RUnlock()
		return id, nil
	}
	g.cacheMutex.RUnlock()

	if g.source == nil {
		return "", ErrHardwareUnavailable
	}

	start := time.Now()
	attrs := g.queryAttributes(ctx)
	id := Derive(attrs)

	nonEmpty := 0
	for _, a := range attrs {
		if a != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		// Degenerate case: virtualization or restricted permissions can
		// blank every attribute. The identifier is still valid, just not
		// unique to this machine.
		slog.WarnContext(ctx, "All hardware attributes unavailable, device identifier is not unique")
	}

	slog.DebugContext(ctx, "Device identifier generated",
		slog.String("device_id", string(id)),
		slog.Int("attributes_used", nonEmpty),
		slog.Duration("generation_time", time.Since(start)),
	)

	g.cacheMutex.Lock()
	g.cached = id
	g.hasCached = true
	g.cacheMutex.Unlock()

	return id, nil
}

// queryAttributes gathers the three attributes concurrently. A failed query
// yields an empty string for its slot; the slot order is fixed.
func (g *Generator) queryAttributes(ctx context.Context) [3]string {
	var attrs [3]string

	queries := [3]func(context.Context) (string, error){
		g.source.ProcessorID,
		g.source.FirmwareSerial,
		g.source.DiskSerial,
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		eg.Go(func() error {
			value, err := query(ctx)
			if err != nil {
				slog.DebugContext(ctx, "Hardware attribute query failed",
					slog.Int("attribute", i),
					slog.String("error", err.Error()),
				)
				return nil
			}
			attrs[i] = strings.TrimSpace(value)
			return nil
		})
	}
	_ = eg.Wait()

	return attrs
}

// Derive reduces the ordered attribute values to a DeviceID. Empty values
// are dropped before joining; the non-empty remainder is joined with the
// fixed delimiter, hashed with SHA-256 and truncated to idLength hex chars.
func Derive(attrs [3]string) DeviceID {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a != "" {
			parts = append(parts, a)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return DeviceID(hex.EncodeToString(sum[:])[:idLength])
}
