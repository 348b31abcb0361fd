package storage

// schemaStatements bootstraps the shared tables. Per-tenant channel tables are
// created by the provisioner, never here.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		table_prefix TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		logo_url TEXT,
		address JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'invited',
		is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_users (
		tenant_id UUID NOT NULL,
		user_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (tenant_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_registry (
		tenant_id UUID NOT NULL,
		channel TEXT NOT NULL,
		table_role TEXT NOT NULL,
		table_name TEXT NOT NULL UNIQUE,
		PRIMARY KEY (tenant_id, channel, table_role)
	)`,
	`CREATE TABLE IF NOT EXISTS channel_credentials (
		tenant_id UUID NOT NULL,
		channel TEXT NOT NULL,
		credential_key TEXT NOT NULL,
		credential_value TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (tenant_id, channel, credential_key)
	)`,
	`CREATE TABLE IF NOT EXISTS crm_funnel_stages (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL,
		name TEXT NOT NULL,
		stage_order INT NOT NULL,
		is_won BOOLEAN NOT NULL DEFAULT FALSE,
		is_lost BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS crm_deals (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL,
		stage_id UUID NOT NULL,
		title TEXT NOT NULL,
		value NUMERIC(14,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS crm_deals_tenant_created_idx ON crm_deals (tenant_id, created_at)`,
}
