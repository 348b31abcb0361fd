// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tenant-metrics/internal/model"
)

type Storage struct {
	DB *sql.DB
}

func NewStorage(dsn string, maxConns, maxIdle int) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return &Storage{DB: db}, nil
}

// EnsureSchema creates the shared tables if they do not exist.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}
	return nil
}

// ApplyDDL runs statements in a single transaction.
func (s *Storage) ApplyDDL(ctx context.Context, statements []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ddl: %w", err)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ddl failed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ddl: %w", err)
	}
	return nil
}

func (s *Storage) CreateTenant(ctx context.Context, t *model.Tenant, addr *model.Address) error {
	addrJSON := []byte("{}")
	if addr != nil {
		var err error
		if addrJSON, err = json.Marshal(addr); err != nil {
			return fmt.Errorf("encode address: %w", err)
		}
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tenants (id, name, table_prefix, email, logo_url, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.Name, t.TablePrefix, t.Email, t.LogoURL, addrJSON)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %q", model.ErrPrefixInUse, t.TablePrefix)
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *Storage) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM tenant_users WHERE tenant_id = $1`, id); err != nil {
		return fmt.Errorf("delete tenant users: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return nil
}

const tenantColumns = `id, name, table_prefix, email, logo_url, created_at`

func scanTenant(row interface{ Scan(...any) error }) (*model.Tenant, error) {
	var t model.Tenant
	var logo sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.TablePrefix, &t.Email, &logo, &t.CreatedAt); err != nil {
		return nil, err
	}
	if logo.Valid {
		t.LogoURL = &logo.String
	}
	return &t, nil
}

// FindTenantByPrefix returns nil, nil when no tenant owns prefix.
func (s *Storage) FindTenantByPrefix(ctx context.Context, prefix string) (*model.Tenant, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE table_prefix = $1`, prefix)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant by prefix: %w", err)
	}
	return t, nil
}

func (s *Storage) GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrTenantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// ListTenants returns every tenant, or only those in ids when ids is non-empty.
func (s *Storage) ListTenants(ctx context.Context, ids []uuid.UUID) ([]model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY name`
	args := []any{}
	if len(ids) > 0 {
		query = `SELECT ` + tenantColumns + ` FROM tenants WHERE id = ANY($1::uuid[]) ORDER BY name`
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = id.String()
		}
		args = append(args, pq.Array(strs))
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// FindUserByEmail returns nil, nil when the user does not exist.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.DB.QueryRowContext(ctx, `SELECT id, email, status FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (id, email, status) VALUES ($1, $2, $3)`, u.ID, u.Email, u.Status)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Storage) LinkUser(ctx context.Context, tenantID, userID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tenant_users (tenant_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("link user: %w", err)
	}
	return nil
}

// CreateCredentials inserts placeholder rows and returns how many were new.
func (s *Storage) CreateCredentials(ctx context.Context, creds []model.Credential) (int, error) {
	created := 0
	for _, c := range creds {
		res, err := s.DB.ExecContext(ctx, `
			INSERT INTO channel_credentials (tenant_id, channel, credential_key, credential_value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING
		`, c.TenantID, string(c.Channel), c.Key, c.Value)
		if err != nil {
			return created, fmt.Errorf("insert credential %s/%s: %w", c.Channel, c.Key, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		}
	}
	return created, nil
}

func (s *Storage) DeleteCredentials(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM channel_credentials WHERE tenant_id = $1`, tenantID)
	return err
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
