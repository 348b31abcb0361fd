package channel

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"tenant-metrics/internal/model"
)

// Record is the normalized shape every reader produces.
type Record struct {
	Channel  model.Channel
	Name     string
	Amount   float64
	Count    int64
	Status   string
	Activity ActivityStatus
	Kind     DealKind
	Start    time.Time
	End      time.Time
}

func (r Record) Active() bool {
	return r.Activity == ActivityActive
}

// Reader reads one registry-resolved table for a date range. Missing data is an
// empty slice; only query errors are returned.
type Reader interface {
	Read(ctx context.Context, table string, start, end time.Time) ([]Record, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func quote(table string) string {
	return pq.QuoteIdentifier(table)
}

// dayAfter turns an inclusive end date into an exclusive bound.
func dayAfter(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
