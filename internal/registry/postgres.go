package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tenant-metrics/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Registry = (*Postgres)(nil)

func (p *Postgres) Resolve(ctx context.Context, tenantID uuid.UUID, channel model.Channel, role model.TableRole) (string, error) {
	var name string
	err := p.db.QueryRowContext(ctx, `
		SELECT table_name FROM schema_registry
		WHERE tenant_id = $1 AND channel = $2 AND table_role = $3
	`, tenantID, string(channel), string(role)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s/%s: %w", channel, role, err)
	}
	return name, nil
}

func (p *Postgres) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.RegistryEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT tenant_id, channel, table_role, table_name FROM schema_registry
		WHERE tenant_id = $1
		ORDER BY channel, table_role
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list registry entries: %w", err)
	}
	defer rows.Close()

	var entries []model.RegistryEntry
	for rows.Next() {
		var e model.RegistryEntry
		if err := rows.Scan(&e.TenantID, &e.Channel, &e.Role, &e.TableName); err != nil {
			return nil, fmt.Errorf("scan registry entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Register inserts entries in one transaction. Existing (tenant, channel, role)
// triples are left untouched.
func (p *Postgres) Register(ctx context.Context, entries []model.RegistryEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registry write: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schema_registry (tenant_id, channel, table_role, table_name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, channel, table_role) DO NOTHING
		`, e.TenantID, string(e.Channel), string(e.Role), e.TableName)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("register %s: %w", e.TableName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registry write: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteForTenant(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM schema_registry WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("delete registry entries: %w", err)
	}
	return nil
}
