package channel

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenant-metrics/internal/model"
)

// ExternalCRMReader reads the external CRM deal export ({prefix}_extcrm_deals).
type ExternalCRMReader struct {
	db      Querier
	timeout time.Duration
}

func NewExternalCRMReader(db Querier, timeout time.Duration) *ExternalCRMReader {
	return &ExternalCRMReader{db: db, timeout: timeout}
}

func (r *ExternalCRMReader) Read(ctx context.Context, table string, start, end time.Time) ([]Record, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT deal_name, status, COALESCE(stage_name, ''), COALESCE(amount, 0), created_at
		FROM %s
		WHERE created_at >= $1 AND created_at < $2
	`, quote(table))

	rows, err := r.db.QueryContext(ctx, query, start, dayAfter(end))
	if err != nil {
		return nil, fmt.Errorf("external crm deals %s: %w", table, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			name    string
			status  sql.NullString
			stage   string
			amount  float64
			created time.Time
		)
		if err := rows.Scan(&name, &status, &stage, &amount, &created); err != nil {
			return nil, fmt.Errorf("scan external crm deal: %w", err)
		}
		records = append(records, Record{
			Channel: model.ChannelExternalCRM,
			Name:    name,
			Amount:  amount,
			Count:   1,
			Status:  stage,
			Kind:    ClassifyExternalDeal(nullableString(status), stage),
			Start:   created,
			End:     created,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate external crm deals: %w", err)
	}
	return records, nil
}

// InternalCRMReader reads the shared internal CRM tables. They are keyed by
// tenant id, so there is no registry lookup.
type InternalCRMReader struct {
	db      Querier
	timeout time.Duration
}

func NewInternalCRMReader(db Querier, timeout time.Duration) *InternalCRMReader {
	return &InternalCRMReader{db: db, timeout: timeout}
}

func (r *InternalCRMReader) ReadTenant(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]Record, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT d.title, d.value, d.created_at, s.name, s.stage_order, s.is_won, s.is_lost
		FROM crm_deals d
		JOIN crm_funnel_stages s ON s.id = d.stage_id AND s.tenant_id = d.tenant_id
		WHERE d.tenant_id = $1 AND d.created_at >= $2 AND d.created_at < $3
	`, tenantID, start, dayAfter(end))
	if err != nil {
		return nil, fmt.Errorf("internal crm deals: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			title   string
			value   float64
			created time.Time
			stage   FunnelStage
		)
		if err := rows.Scan(&title, &value, &created, &stage.Name, &stage.Order, &stage.Won, &stage.Lost); err != nil {
			return nil, fmt.Errorf("scan internal crm deal: %w", err)
		}
		records = append(records, Record{
			Channel: model.ChannelInternalCRM,
			Name:    title,
			Amount:  value,
			Count:   1,
			Status:  stage.Name,
			Kind:    ClassifyInternalDeal(stage),
			Start:   created,
			End:     created,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate internal crm deals: %w", err)
	}
	return records, nil
}
