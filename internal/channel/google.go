package channel

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"tenant-metrics/internal/model"
)

// GoogleMetricsReader reads daily ad metrics ({prefix}_google_metrics) and
// rolls them up per campaign. Status is the latest day's.
type GoogleMetricsReader struct {
	db      Querier
	timeout time.Duration
}

func NewGoogleMetricsReader(db Querier, timeout time.Duration) *GoogleMetricsReader {
	return &GoogleMetricsReader{db: db, timeout: timeout}
}

func (r *GoogleMetricsReader) Read(ctx context.Context, table string, start, end time.Time) ([]Record, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT campaign_name,
			(ARRAY_AGG(campaign_status ORDER BY date DESC))[1],
			COALESCE(SUM(cost), 0), COALESCE(SUM(conversions), 0),
			MIN(date), MAX(date)
		FROM %s
		WHERE date >= $1 AND date <= $2
		GROUP BY campaign_id, campaign_name
	`, quote(table))

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("google metrics %s: %w", table, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			name        string
			status      sql.NullString
			cost        float64
			conversions float64
			first, last time.Time
		)
		if err := rows.Scan(&name, &status, &cost, &conversions, &first, &last); err != nil {
			return nil, fmt.Errorf("scan google metrics: %w", err)
		}
		records = append(records, Record{
			Channel:  model.ChannelGoogle,
			Name:     name,
			Amount:   cost,
			Count:    int64(math.Round(conversions)),
			Status:   status.String,
			Activity: ResolveActivity(nullableString(status), GoogleActiveStatus, cost),
			Start:    first,
			End:      last,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate google metrics: %w", err)
	}
	return records, nil
}
