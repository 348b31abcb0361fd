package channel

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tenant-metrics/internal/model"
)

// MetaCampaignReader reads ad-platform campaign insights ({prefix}_meta_campaigns).
// Rows overlapping the range are rolled up per campaign; status comes from
// the most recent row.
type MetaCampaignReader struct {
	db      Querier
	timeout time.Duration
}

func NewMetaCampaignReader(db Querier, timeout time.Duration) *MetaCampaignReader {
	return &MetaCampaignReader{db: db, timeout: timeout}
}

func (r *MetaCampaignReader) Read(ctx context.Context, table string, start, end time.Time) ([]Record, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT campaign_name,
			(ARRAY_AGG(status ORDER BY date_stop DESC, date_start DESC))[1],
			COALESCE(SUM(spend), 0), COALESCE(SUM(results), 0),
			MIN(date_start), MAX(date_stop)
		FROM %s
		WHERE date_start <= $2 AND date_stop >= $1
		GROUP BY campaign_id, campaign_name
	`, quote(table))

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("meta campaigns %s: %w", table, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			name       string
			status     sql.NullString
			spend      float64
			results    int64
			rangeStart time.Time
			rangeEnd   time.Time
		)
		if err := rows.Scan(&name, &status, &spend, &results, &rangeStart, &rangeEnd); err != nil {
			return nil, fmt.Errorf("scan meta campaign: %w", err)
		}
		records = append(records, Record{
			Channel:  model.ChannelMeta,
			Name:     name,
			Amount:   spend,
			Count:    results,
			Status:   status.String,
			Activity: ResolveActivity(nullableString(status), MetaActiveStatus, spend),
			Start:    rangeStart,
			End:      rangeEnd,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meta campaigns: %w", err)
	}
	return records, nil
}
