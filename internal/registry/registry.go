// Package registry resolves (tenant, channel, role) to the physical table that
// holds that tenant's channel data. Callers never derive table names themselves.
package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"tenant-metrics/internal/model"
)

// ErrNotFound means the channel is not provisioned for the tenant. Callers
// treat it as "skip", not as a failure.
var ErrNotFound = errors.New("registry entry not found")

type Registry interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, channel model.Channel, role model.TableRole) (string, error)
	ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.RegistryEntry, error)
	Register(ctx context.Context, entries []model.RegistryEntry) error
	DeleteForTenant(ctx context.Context, tenantID uuid.UUID) error
}

type key struct {
	channel model.Channel
	role    model.TableRole
}

// Snapshot is one tenant's entries, resolved in memory.
type Snapshot struct {
	TenantID uuid.UUID
	tables   map[key]string
}

func NewSnapshot(tenantID uuid.UUID, entries []model.RegistryEntry) *Snapshot {
	s := &Snapshot{TenantID: tenantID, tables: make(map[key]string, len(entries))}
	for _, e := range entries {
		if e.TenantID != tenantID {
			continue
		}
		s.tables[key{e.Channel, e.Role}] = e.TableName
	}
	return s
}

// Load fetches a tenant's entries in one round-trip.
func Load(ctx context.Context, r Registry, tenantID uuid.UUID) (*Snapshot, error) {
	entries, err := r.ListForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(tenantID, entries), nil
}

func (s *Snapshot) Resolve(channel model.Channel, role model.TableRole) (string, error) {
	name, ok := s.tables[key{channel, role}]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func (s *Snapshot) Len() int {
	return len(s.tables)
}
