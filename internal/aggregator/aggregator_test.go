package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tenant-metrics/internal/channel"
	"tenant-metrics/internal/model"
	"tenant-metrics/internal/registry"
)

type fakeTenants struct {
	tenants []model.Tenant
	err     error
}

func (f *fakeTenants) ListTenants(_ context.Context, ids []uuid.UUID) ([]model.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(ids) == 0 {
		return f.tenants, nil
	}
	var out []model.Tenant
	for _, t := range f.tenants {
		for _, id := range ids {
			if t.ID == id {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// tableReader serves canned records per physical table.
type tableReader struct {
	mu     sync.Mutex
	tables map[string][]channel.Record
	errs   map[string]error
	calls  []string
}

func (r *tableReader) Read(_ context.Context, table string, _, _ time.Time) ([]channel.Record, error) {
	r.mu.Lock()
	r.calls = append(r.calls, table)
	r.mu.Unlock()
	if err := r.errs[table]; err != nil {
		return nil, err
	}
	return r.tables[table], nil
}

type crmReader struct {
	records map[uuid.UUID][]channel.Record
}

func (r *crmReader) ReadTenant(_ context.Context, tenantID uuid.UUID, _, _ time.Time) ([]channel.Record, error) {
	return r.records[tenantID], nil
}

type failingRegistry struct {
	registry.Registry
	failFor uuid.UUID
}

func (f *failingRegistry) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.RegistryEntry, error) {
	if tenantID == f.failFor {
		return nil, errors.New("registry unavailable")
	}
	return f.Registry.ListForTenant(ctx, tenantID)
}

// blockingRegistry hangs until the caller's context is done.
type blockingRegistry struct {
	registry.Registry
}

func (blockingRegistry) ListForTenant(ctx context.Context, _ uuid.UUID) ([]model.RegistryEntry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func register(t *testing.T, reg registry.Registry, tenantID uuid.UUID, prefix string, pairs ...[2]string) {
	t.Helper()
	var entries []model.RegistryEntry
	for _, p := range pairs {
		ch, role := model.Channel(p[0]), model.TableRole(p[1])
		entries = append(entries, model.RegistryEntry{
			TenantID:  tenantID,
			Channel:   ch,
			Role:      role,
			TableName: model.TableName(prefix, ch, role),
		})
	}
	require.NoError(t, reg.Register(context.Background(), entries))
}

func metaCampaign(name string, spend float64, leads int64, active bool) channel.Record {
	activity := channel.ActivityPaused
	status := "PAUSED"
	if active {
		activity = channel.ActivityActive
		status = "ACTIVE"
	}
	return channel.Record{Channel: model.ChannelMeta, Name: name, Amount: spend, Count: leads, Status: status, Activity: activity}
}

var (
	periodStart = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)
)

func newTestAggregator(tenants TenantLister, reg registry.Registry, opts ...Option) *Aggregator {
	opts = append([]Option{WithErrorCapture(func(error, map[string]string) {})}, opts...)
	return New(tenants, reg, zap.NewNop(), opts...)
}

func TestAggregate_TwoTenantsSortedBySpend(t *testing.T) {
	small := model.Tenant{ID: uuid.New(), Name: "Acme Corp", TablePrefix: "ac"}
	big := model.Tenant{ID: uuid.New(), Name: "Banco do Brasil", TablePrefix: "bdb"}

	reg := registry.NewMemory()
	register(t, reg, small.ID, "ac", [2]string{"meta", "campaigns"})
	register(t, reg, big.ID, "bdb", [2]string{"meta", "campaigns"})

	meta := &tableReader{tables: map[string][]channel.Record{
		"ac_meta_campaigns":  {metaCampaign("Spring", 500, 10, true)},
		"bdb_meta_campaigns": {metaCampaign("Launch", 1500, 30, true)},
	}}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{small, big}}, reg,
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}))

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	assert.Equal(t, 2000.0, report.Totals.TotalSpend)
	assert.Equal(t, int64(40), report.Totals.Leads)
	assert.Equal(t, 2, report.Totals.TenantCount)
	require.Len(t, report.ByClient, 2)
	assert.Equal(t, "Banco do Brasil", report.ByClient[0].TenantName)
	assert.Equal(t, "Acme Corp", report.ByClient[1].TenantName)

	require.Len(t, report.ActiveCampaigns, 2)
	assert.Equal(t, "Launch", report.ActiveCampaigns[0].CampaignName)
	assert.Equal(t, "Banco do Brasil", report.ActiveCampaigns[0].TenantName)
	assert.Equal(t, "2026-10-01", report.Period.Start)
	assert.Equal(t, "2026-10-31", report.Period.End)
}

func TestAggregate_TotalsEqualSumOfTenants(t *testing.T) {
	reg := registry.NewMemory()
	meta := &tableReader{tables: map[string][]channel.Record{}}
	google := &tableReader{tables: map[string][]channel.Record{}}
	ext := &tableReader{tables: map[string][]channel.Record{}}

	var tenants []model.Tenant
	for i, prefix := range []string{"aa", "bb", "cc", "dd"} {
		tn := model.Tenant{ID: uuid.New(), Name: prefix, TablePrefix: prefix}
		tenants = append(tenants, tn)
		register(t, reg, tn.ID, prefix,
			[2]string{"meta", "campaigns"}, [2]string{"google", "metrics"}, [2]string{"extcrm", "deals"})
		f := float64(i + 1)
		meta.tables[prefix+"_meta_campaigns"] = []channel.Record{metaCampaign("m", 100*f, int64(i+2), i%2 == 0)}
		google.tables[prefix+"_google_metrics"] = []channel.Record{{
			Channel: model.ChannelGoogle, Name: "g", Amount: 50 * f, Count: 3, Activity: channel.ActivityActive,
		}}
		ext.tables[prefix+"_extcrm_deals"] = []channel.Record{
			{Channel: model.ChannelExternalCRM, Kind: channel.DealSale, Amount: 300 * f, Count: 1},
			{Channel: model.ChannelExternalCRM, Kind: channel.DealOpportunity, Amount: 10, Count: 1},
			{Channel: model.ChannelExternalCRM, Kind: channel.DealNone, Amount: 99, Count: 1},
		}
	}

	agg := newTestAggregator(&fakeTenants{tenants: tenants}, reg,
		WithConcurrency(2),
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}),
		WithSource(Source{model.ChannelGoogle, model.RoleMetrics, google}),
		WithSource(Source{model.ChannelExternalCRM, model.RoleDeals, ext}),
	)

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	var sum model.GlobalMetrics
	for _, c := range report.ByClient {
		sum.GoogleSpend += c.GoogleSpend
		sum.MetaSpend += c.MetaSpend
		sum.TotalSpend += c.TotalSpend
		sum.Leads += c.Leads
		sum.Opportunities += c.Opportunities
		sum.Sales += c.Sales
		sum.Revenue += c.Revenue
		sum.GoogleActive += c.GoogleActive
		sum.MetaActive += c.MetaActive
		assert.True(t, c.HasSyncedData)
	}
	assert.InDelta(t, sum.GoogleSpend, report.Totals.GoogleSpend, 1e-9)
	assert.InDelta(t, sum.MetaSpend, report.Totals.MetaSpend, 1e-9)
	assert.InDelta(t, sum.TotalSpend, report.Totals.TotalSpend, 1e-9)
	assert.Equal(t, sum.Leads, report.Totals.Leads)
	assert.Equal(t, sum.Opportunities, report.Totals.Opportunities)
	assert.Equal(t, sum.Sales, report.Totals.Sales)
	assert.InDelta(t, sum.Revenue, report.Totals.Revenue, 1e-9)
	assert.Equal(t, sum.GoogleActive, report.Totals.GoogleActive)
	assert.Equal(t, sum.MetaActive, report.Totals.MetaActive)

	assert.Equal(t, 1500.0, report.Totals.TotalSpend)
	assert.Equal(t, int64(4), report.Totals.Sales)
	assert.Equal(t, int64(4), report.Totals.Opportunities)
	assert.Equal(t, 3000.0, report.Totals.Revenue)
	assert.Equal(t, 4, report.Totals.GoogleActive)
	assert.Equal(t, 2, report.Totals.MetaActive)

	want := Derive(1500, report.Totals.Leads, 4, 3000)
	assert.InDelta(t, want.CAL, report.Totals.CAL, 1e-9)
	assert.InDelta(t, 2.0, report.Totals.ROAS, 1e-9)
}

func TestAggregate_ZeroLeadsGivesZeroCAL(t *testing.T) {
	tn := model.Tenant{ID: uuid.New(), Name: "Acme Corp"}
	reg := registry.NewMemory()
	register(t, reg, tn.ID, "ac", [2]string{"meta", "campaigns"})
	meta := &tableReader{tables: map[string][]channel.Record{
		"ac_meta_campaigns": {metaCampaign("Brand", 1000, 0, true)},
	}}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{tn}}, reg,
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}))

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	c := report.ByClient[0]
	assert.Equal(t, 1000.0, c.TotalSpend)
	assert.Zero(t, c.CAL)
	assert.Zero(t, c.CAV)
	assert.Zero(t, c.ConversionRate)
	assert.Zero(t, report.Totals.CAL)
}

func TestAggregate_TenantWithoutRegistryEntries(t *testing.T) {
	tn := model.Tenant{ID: uuid.New(), Name: "Fresh Start"}
	meta := &tableReader{}
	crm := &crmReader{records: map[uuid.UUID][]channel.Record{tn.ID: {
		{Channel: model.ChannelInternalCRM, Kind: channel.DealSale, Amount: 900},
		{Channel: model.ChannelInternalCRM, Kind: channel.DealOpportunity, Amount: 300},
	}}}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{tn}}, registry.NewMemory(),
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}),
		WithInternalCRM(crm))

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	require.Len(t, report.ByClient, 1)
	c := report.ByClient[0]
	assert.False(t, c.HasSyncedData)
	assert.Zero(t, c.TotalSpend)
	assert.Zero(t, c.Leads)
	assert.Zero(t, c.CAL)
	assert.Zero(t, c.ROAS)
	assert.Zero(t, c.Sales)
	assert.Zero(t, c.Opportunities)
	assert.Zero(t, c.Revenue)
	assert.Zero(t, report.Totals.Revenue)
	assert.Empty(t, c.ChannelErrors)
	assert.Empty(t, meta.calls, "unregistered channels must not be read")
}

func TestAggregate_RegisteredButNoActivity(t *testing.T) {
	tn := model.Tenant{ID: uuid.New(), Name: "Quiet Co"}
	reg := registry.NewMemory()
	register(t, reg, tn.ID, "qc", [2]string{"meta", "campaigns"})

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{tn}}, reg,
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, &tableReader{}}))

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)
	assert.False(t, report.ByClient[0].HasSyncedData)
}

func TestAggregate_ChannelFailureIsIsolated(t *testing.T) {
	tn := model.Tenant{ID: uuid.New(), Name: "Acme Corp"}
	reg := registry.NewMemory()
	register(t, reg, tn.ID, "ac", [2]string{"meta", "campaigns"}, [2]string{"google", "metrics"})

	meta := &tableReader{tables: map[string][]channel.Record{
		"ac_meta_campaigns": {metaCampaign("Spring", 400, 8, true)},
	}}
	google := &tableReader{errs: map[string]error{"ac_google_metrics": errors.New("connection reset")}}

	var captured []map[string]string
	agg := New(&fakeTenants{tenants: []model.Tenant{tn}}, reg, zap.NewNop(),
		WithErrorCapture(func(_ error, tags map[string]string) { captured = append(captured, tags) }),
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}),
		WithSource(Source{model.ChannelGoogle, model.RoleMetrics, google}),
	)

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	c := report.ByClient[0]
	assert.Equal(t, 400.0, c.MetaSpend)
	assert.Zero(t, c.GoogleSpend)
	assert.True(t, c.HasSyncedData)
	require.Len(t, c.ChannelErrors, 1)
	assert.Contains(t, c.ChannelErrors[0], "google/metrics")
	require.Len(t, captured, 1)
	assert.Equal(t, "google/metrics", captured[0]["channel"])
}

func TestAggregate_RegistryFailureYieldsZeroRow(t *testing.T) {
	good := model.Tenant{ID: uuid.New(), Name: "Good Co"}
	bad := model.Tenant{ID: uuid.New(), Name: "Bad Co"}

	mem := registry.NewMemory()
	register(t, mem, good.ID, "gc", [2]string{"meta", "campaigns"})
	register(t, mem, bad.ID, "bc", [2]string{"meta", "campaigns"})
	reg := &failingRegistry{Registry: mem, failFor: bad.ID}

	meta := &tableReader{tables: map[string][]channel.Record{
		"gc_meta_campaigns": {metaCampaign("A", 100, 1, false)},
		"bc_meta_campaigns": {metaCampaign("B", 900, 9, true)},
	}}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{good, bad}}, reg,
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}))

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	require.Len(t, report.ByClient, 2)
	assert.Equal(t, "Good Co", report.ByClient[0].TenantName)
	failed := report.ByClient[1]
	assert.Equal(t, "Bad Co", failed.TenantName)
	assert.False(t, failed.HasSyncedData)
	assert.Zero(t, failed.TotalSpend)
	assert.NotEmpty(t, failed.ChannelErrors)
	assert.Equal(t, 100.0, report.Totals.TotalSpend)
	assert.Empty(t, report.ActiveCampaigns)
}

func TestAggregate_RegistryLookupIsBounded(t *testing.T) {
	tn := model.Tenant{ID: uuid.New(), Name: "Slow Co"}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{tn}}, blockingRegistry{Registry: registry.NewMemory()},
		WithReadTimeout(20*time.Millisecond))

	done := make(chan *model.Report, 1)
	go func() {
		report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
		assert.NoError(t, err)
		done <- report
	}()

	select {
	case report := <-done:
		require.Len(t, report.ByClient, 1)
		assert.False(t, report.ByClient[0].HasSyncedData)
		require.NotEmpty(t, report.ByClient[0].ChannelErrors)
		assert.Contains(t, report.ByClient[0].ChannelErrors[0], "registry")
	case <-time.After(5 * time.Second):
		t.Fatal("aggregation did not return after the registry timeout")
	}
}

func TestAggregate_InternalCRMCountsWonDealsOnly(t *testing.T) {
	tn := model.Tenant{ID: uuid.New(), Name: "Acme Corp"}
	reg := registry.NewMemory()
	register(t, reg, tn.ID, "ac", [2]string{"meta", "campaigns"})

	crm := &crmReader{records: map[uuid.UUID][]channel.Record{tn.ID: {
		{Channel: model.ChannelInternalCRM, Kind: channel.DealSale, Amount: 1200},
		{Channel: model.ChannelInternalCRM, Kind: channel.DealOpportunity, Amount: 800},
		{Channel: model.ChannelInternalCRM, Kind: channel.DealNone, Amount: 50},
	}}}
	meta := &tableReader{tables: map[string][]channel.Record{
		"ac_meta_campaigns": {metaCampaign("Spring", 600, 4, true)},
	}}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{tn}}, reg,
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}),
		WithInternalCRM(crm))

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	c := report.ByClient[0]
	assert.Equal(t, int64(1), c.Sales)
	assert.Equal(t, int64(1), c.Opportunities)
	assert.Equal(t, 1200.0, c.Revenue)
	assert.InDelta(t, 2.0, c.ROAS, 1e-9)
	assert.InDelta(t, 600.0, c.CAV, 1e-9)
	assert.InDelta(t, 150.0, c.CAL, 1e-9)
	assert.InDelta(t, 25.0, c.ConversionRate, 1e-9)
}

func TestAggregate_ActiveCampaignsCapped(t *testing.T) {
	tn := model.Tenant{ID: uuid.New(), Name: "Big Spender"}
	reg := registry.NewMemory()
	register(t, reg, tn.ID, "bs", [2]string{"meta", "campaigns"})

	var records []channel.Record
	for i := 0; i < 30; i++ {
		records = append(records, metaCampaign("c", float64(i), 1, true))
	}
	records = append(records, metaCampaign("paused", 1000, 1, false))
	meta := &tableReader{tables: map[string][]channel.Record{"bs_meta_campaigns": records}}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{tn}}, reg,
		WithTopCampaigns(5),
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, meta}))

	report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
	require.NoError(t, err)

	require.Len(t, report.ActiveCampaigns, 5)
	assert.Equal(t, 29.0, report.ActiveCampaigns[0].Spend)
	assert.Equal(t, 25.0, report.ActiveCampaigns[4].Spend)
	assert.Equal(t, 30, report.ByClient[0].MetaActive)
}

func TestAggregate_FiltersByTenantID(t *testing.T) {
	a := model.Tenant{ID: uuid.New(), Name: "A"}
	b := model.Tenant{ID: uuid.New(), Name: "B"}

	agg := newTestAggregator(&fakeTenants{tenants: []model.Tenant{a, b}}, registry.NewMemory())

	report, err := agg.Aggregate(context.Background(), []uuid.UUID{b.ID}, periodStart, periodEnd)
	require.NoError(t, err)
	require.Len(t, report.ByClient, 1)
	assert.Equal(t, b.ID, report.ByClient[0].TenantID)
}

func TestAggregate_Errors(t *testing.T) {
	t.Run("should fail when tenants cannot be listed", func(t *testing.T) {
		agg := newTestAggregator(&fakeTenants{err: errors.New("db down")}, registry.NewMemory())
		_, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("should reject an inverted range", func(t *testing.T) {
		agg := newTestAggregator(&fakeTenants{}, registry.NewMemory())
		_, err := agg.Aggregate(context.Background(), nil, periodEnd, periodStart)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("should return an empty report with no tenants", func(t *testing.T) {
		agg := newTestAggregator(&fakeTenants{}, registry.NewMemory())
		report, err := agg.Aggregate(context.Background(), nil, periodStart, periodEnd)
		require.NoError(t, err)
		assert.Empty(t, report.ByClient)
		assert.Zero(t, report.Totals.TenantCount)
		assert.Zero(t, report.Totals.ROAS)
	})
}
