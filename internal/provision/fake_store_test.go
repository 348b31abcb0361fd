package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tenant-metrics/internal/model"
)

// fakeStore is an in-memory Store for provisioner tests.
type fakeStore struct {
	mu          sync.Mutex
	tenants     map[uuid.UUID]model.Tenant
	users       map[string]model.User
	links       map[uuid.UUID][]uuid.UUID
	credentials map[uuid.UUID][]model.Credential
	ddlRuns     [][]string
	tables      map[string]bool

	ddlErr  error
	userErr error
	credErr error

	// hidePrefixes makes prefix lookups miss, as when a concurrent
	// provisioning commits between the check and the insert.
	hidePrefixes bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:     make(map[uuid.UUID]model.Tenant),
		users:       make(map[string]model.User),
		links:       make(map[uuid.UUID][]uuid.UUID),
		credentials: make(map[uuid.UUID][]model.Credential),
		tables:      make(map[string]bool),
	}
}

func (f *fakeStore) CreateTenant(_ context.Context, t *model.Tenant, _ *model.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tenants {
		if existing.TablePrefix == t.TablePrefix {
			return fmt.Errorf("%w: %q", model.ErrPrefixInUse, t.TablePrefix)
		}
	}
	f.tenants[t.ID] = *t
	return nil
}

func (f *fakeStore) DeleteTenant(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tenants, id)
	delete(f.links, id)
	return nil
}

func (f *fakeStore) GetTenant(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return nil, model.ErrTenantNotFound
	}
	return &t, nil
}

func (f *fakeStore) FindTenantByPrefix(_ context.Context, prefix string) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hidePrefixes {
		return nil, nil
	}
	for _, t := range f.tenants {
		if t.TablePrefix == prefix {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	u, ok := f.users[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.Email] = *u
	return nil
}

func (f *fakeStore) LinkUser(_ context.Context, tenantID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[tenantID] = append(f.links[tenantID], userID)
	return nil
}

func (f *fakeStore) CreateCredentials(_ context.Context, creds []model.Credential) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credErr != nil {
		return 0, f.credErr
	}
	for _, c := range creds {
		f.credentials[c.TenantID] = append(f.credentials[c.TenantID], c)
	}
	return len(creds), nil
}

func (f *fakeStore) DeleteCredentials(_ context.Context, tenantID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.credentials, tenantID)
	return nil
}

// ApplyDDL records statements and tracks created tables by name, so running
// the same DDL twice leaves one table per name.
func (f *fakeStore) ApplyDDL(_ context.Context, statements []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ddlErr != nil {
		return f.ddlErr
	}
	f.ddlRuns = append(f.ddlRuns, statements)
	for _, name := range tableNamesIn(statements) {
		f.tables[name] = true
	}
	return nil
}

func (f *fakeStore) tenantCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tenants)
}
