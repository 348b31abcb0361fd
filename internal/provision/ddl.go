package provision

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tenant-metrics/internal/model"
)

func accessFunction(prefix string) string {
	return pq.QuoteIdentifier(prefix + "_has_access")
}

// BuildDDL returns the statements that create a tenant's access function,
// tables and row-level policies. Every statement is safe to re-run.
func BuildDDL(tenantID uuid.UUID, prefix string) []string {
	fn := accessFunction(prefix)
	stmts := []string{
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s() RETURNS boolean
			LANGUAGE sql STABLE AS $fn$
			SELECT EXISTS (
				SELECT 1 FROM users u
				WHERE u.id = NULLIF(current_setting('app.current_user_id', true), '')::uuid
				AND (u.is_super_admin OR EXISTS (
					SELECT 1 FROM tenant_users tu
					WHERE tu.user_id = u.id AND tu.tenant_id = %s::uuid
				))
			)
			$fn$`, fn, pq.QuoteLiteral(tenantID.String())),
	}

	for _, ts := range Catalog {
		name := model.TableName(prefix, ts.Channel, ts.Role)
		table := pq.QuoteIdentifier(name)
		policy := pq.QuoteIdentifier(name + "_access")
		cols := append([]string{"id BIGSERIAL PRIMARY KEY"}, ts.Columns...)

		stmts = append(stmts,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(cols, ",\n\t")),
			fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", table),
			fmt.Sprintf(`DO $do$ BEGIN
				CREATE POLICY %s ON %s FOR ALL USING (%s()) WITH CHECK (%s());
			EXCEPTION WHEN duplicate_object THEN NULL;
			END $do$`, policy, table, fn, fn),
		)
	}
	return stmts
}

// BuildDropDDL removes the given tables and the tenant's access function.
func BuildDropDDL(prefix string, tables []string) []string {
	stmts := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pq.QuoteIdentifier(t)))
	}
	return append(stmts, fmt.Sprintf("DROP FUNCTION IF EXISTS %s()", accessFunction(prefix)))
}
