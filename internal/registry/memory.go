package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tenant-metrics/internal/model"
)

// Memory is an in-process Registry with the same uniqueness rules as the
// Postgres table.
type Memory struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]map[key]string
	owners  map[string]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[uuid.UUID]map[key]string),
		owners:  make(map[string]uuid.UUID),
	}
}

var _ Registry = (*Memory)(nil)

func (m *Memory) Resolve(_ context.Context, tenantID uuid.UUID, channel model.Channel, role model.TableRole) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.entries[tenantID][key{channel, role}]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func (m *Memory) ListForTenant(_ context.Context, tenantID uuid.UUID) ([]model.RegistryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.RegistryEntry
	for k, name := range m.entries[tenantID] {
		out = append(out, model.RegistryEntry{TenantID: tenantID, Channel: k.channel, Role: k.role, TableName: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out, nil
}

func (m *Memory) Register(_ context.Context, entries []model.RegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if owner, ok := m.owners[e.TableName]; ok && owner != e.TenantID {
			return fmt.Errorf("register %s: table name owned by tenant %s", e.TableName, owner)
		}
	}
	for _, e := range entries {
		byKey, ok := m.entries[e.TenantID]
		if !ok {
			byKey = make(map[key]string)
			m.entries[e.TenantID] = byKey
		}
		k := key{e.Channel, e.Role}
		if _, exists := byKey[k]; exists {
			continue
		}
		byKey[k] = e.TableName
		m.owners[e.TableName] = e.TenantID
	}
	return nil
}

func (m *Memory) DeleteForTenant(_ context.Context, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.entries[tenantID] {
		delete(m.owners, name)
	}
	delete(m.entries, tenantID)
	return nil
}
