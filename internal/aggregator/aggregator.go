// Package aggregator builds the cross-tenant metrics report. Each tenant is
// processed in its own task, each channel in its own sub-task, and the global
// totals are reduced only after every tenant has finished.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tenant-metrics/internal/channel"
	"tenant-metrics/internal/metrics"
	"tenant-metrics/internal/model"
	"tenant-metrics/internal/registry"
	"tenant-metrics/internal/tracking"
)

const (
	DefaultConcurrency  = 8
	DefaultTopCampaigns = 20
)

// TenantLister returns the tenants to aggregate. No ids means all tenants.
type TenantLister interface {
	ListTenants(ctx context.Context, ids []uuid.UUID) ([]model.Tenant, error)
}

// TenantReader reads channels that are keyed by tenant id instead of a
// registry-resolved table.
type TenantReader interface {
	ReadTenant(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]channel.Record, error)
}

// Source binds a registry (channel, role) to the reader for that table.
type Source struct {
	Channel model.Channel
	Role    model.TableRole
	Reader  channel.Reader
}

// ErrorCapture reports an unexpected failure to an error tracker.
type ErrorCapture func(err error, tags map[string]string)

type Aggregator struct {
	tenants      TenantLister
	registry     registry.Registry
	sources      []Source
	internalCRM  TenantReader
	concurrency  int
	topCampaigns int
	readTimeout  time.Duration
	capture      ErrorCapture
	logger       *zap.Logger
}

type Option func(*Aggregator)

func WithSource(src Source) Option {
	return func(a *Aggregator) { a.sources = append(a.sources, src) }
}

func WithInternalCRM(r TenantReader) Option {
	return func(a *Aggregator) { a.internalCRM = r }
}

func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithTopCampaigns(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topCampaigns = n
		}
	}
}

// WithReadTimeout bounds each tenant's registry lookup.
func WithReadTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.readTimeout = d }
}

func WithErrorCapture(fn ErrorCapture) Option {
	return func(a *Aggregator) { a.capture = fn }
}

func New(tenants TenantLister, reg registry.Registry, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		tenants:      tenants,
		registry:     reg,
		concurrency:  DefaultConcurrency,
		topCampaigns: DefaultTopCampaigns,
		capture:      tracking.CaptureError,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultSources wires the registry-backed readers over one database handle.
func DefaultSources(db channel.Querier, timeout time.Duration) []Option {
	return []Option{
		WithSource(Source{model.ChannelMeta, model.RoleCampaigns, channel.NewMetaCampaignReader(db, timeout)}),
		WithSource(Source{model.ChannelGoogle, model.RoleMetrics, channel.NewGoogleMetricsReader(db, timeout)}),
		WithSource(Source{model.ChannelExternalCRM, model.RoleDeals, channel.NewExternalCRMReader(db, timeout)}),
		WithInternalCRM(channel.NewInternalCRMReader(db, timeout)),
		WithReadTimeout(timeout),
	}
}

type tenantResult struct {
	metrics   model.TenantMetrics
	campaigns []model.ActiveCampaign
}

// Aggregate returns a best-effort report for the given tenants. Only a failure
// to list tenants is returned as an error; channel and registry failures are
// isolated to the tenant they belong to.
func (a *Aggregator) Aggregate(ctx context.Context, tenantIDs []uuid.UUID, start, end time.Time) (*model.Report, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			end.Format(DateLayout), start.Format(DateLayout))
	}

	metrics.AggregationRuns.WithLabelValues("live").Inc()
	began := time.Now()
	defer func() { metrics.AggregationDuration.Observe(time.Since(began).Seconds()) }()

	tenants, err := a.tenants.ListTenants(ctx, tenantIDs)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	results := make([]tenantResult, len(tenants))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, t := range tenants {
		g.Go(func() error {
			results[i] = a.aggregateTenant(ctx, t, start, end)
			return nil
		})
	}
	_ = g.Wait()

	a.logger.Info("Aggregation finished",
		zap.Int("tenants", len(tenants)),
		zap.String("start", start.Format(DateLayout)),
		zap.String("end", end.Format(DateLayout)),
		zap.Duration("elapsed", time.Since(began)),
	)

	return a.buildReport(results, start, end), nil
}

type channelOutcome struct {
	label   string
	channel model.Channel
	records []channel.Record
	err     error
	read    bool
}

func (a *Aggregator) aggregateTenant(ctx context.Context, t model.Tenant, start, end time.Time) tenantResult {
	tm := model.TenantMetrics{
		TenantID:   t.ID,
		TenantName: t.Name,
		LogoURL:    t.LogoURL,
	}

	snap, err := a.loadSnapshot(ctx, t.ID)
	if err != nil {
		a.logger.Error("Registry lookup failed",
			zap.String("tenant_id", t.ID.String()),
			zap.Error(err),
		)
		metrics.TenantFailures.Inc()
		a.capture(err, map[string]string{"tenant_id": t.ID.String(), "stage": "registry"})
		tm.ChannelErrors = append(tm.ChannelErrors, "registry: "+err.Error())
		return tenantResult{metrics: tm}
	}
	// Unprovisioned tenants report zeros, including the shared internal CRM.
	if snap.Len() == 0 {
		return tenantResult{metrics: tm}
	}

	outcomes := make([]channelOutcome, len(a.sources)+1)

	var g errgroup.Group
	for i, src := range a.sources {
		table, err := snap.Resolve(src.Channel, src.Role)
		if errors.Is(err, registry.ErrNotFound) {
			continue
		}
		label := string(src.Channel) + "/" + string(src.Role)
		g.Go(func() error {
			records, err := src.Reader.Read(ctx, table, start, end)
			outcomes[i] = channelOutcome{label: label, channel: src.Channel, records: records, err: err, read: true}
			return nil
		})
	}
	if a.internalCRM != nil {
		g.Go(func() error {
			records, err := a.internalCRM.ReadTenant(ctx, t.ID, start, end)
			outcomes[len(a.sources)] = channelOutcome{
				label:   string(model.ChannelInternalCRM),
				channel: model.ChannelInternalCRM,
				records: records,
				err:     err,
				read:    true,
			}
			return nil
		})
	}
	_ = g.Wait()

	var campaigns []model.ActiveCampaign
	for _, o := range outcomes {
		if !o.read {
			continue
		}
		if o.err != nil {
			a.logger.Warn("Channel read failed",
				zap.String("tenant_id", t.ID.String()),
				zap.String("channel", o.label),
				zap.Error(o.err),
			)
			metrics.ChannelReadFailures.WithLabelValues(string(o.channel)).Inc()
			a.capture(o.err, map[string]string{"tenant_id": t.ID.String(), "channel": o.label})
			tm.ChannelErrors = append(tm.ChannelErrors, o.label+": "+o.err.Error())
			continue
		}
		campaigns = append(campaigns, accumulate(&tm, o.records)...)
	}

	tm.TotalSpend = tm.GoogleSpend + tm.MetaSpend
	applyDerived(&tm)
	tm.HasSyncedData = hasNonZeroMetric(tm)

	return tenantResult{metrics: tm, campaigns: campaigns}
}

func (a *Aggregator) loadSnapshot(ctx context.Context, tenantID uuid.UUID) (*registry.Snapshot, error) {
	if a.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.readTimeout)
		defer cancel()
	}
	return registry.Load(ctx, a.registry, tenantID)
}

// accumulate folds one channel's records into the tenant totals and returns
// the campaigns that count as active.
func accumulate(tm *model.TenantMetrics, records []channel.Record) []model.ActiveCampaign {
	var active []model.ActiveCampaign
	for _, r := range records {
		switch r.Channel {
		case model.ChannelMeta, model.ChannelGoogle:
			if r.Channel == model.ChannelMeta {
				tm.MetaSpend += r.Amount
			} else {
				tm.GoogleSpend += r.Amount
			}
			tm.Leads += r.Count
			if !r.Active() {
				continue
			}
			if r.Channel == model.ChannelMeta {
				tm.MetaActive++
			} else {
				tm.GoogleActive++
			}
			status := r.Status
			if status == "" {
				status = r.Activity.String()
			}
			active = append(active, model.ActiveCampaign{
				TenantName:   tm.TenantName,
				CampaignName: r.Name,
				Channel:      r.Channel,
				Spend:        r.Amount,
				ResultCount:  r.Count,
				Status:       status,
			})
		case model.ChannelExternalCRM, model.ChannelInternalCRM:
			switch r.Kind {
			case channel.DealOpportunity:
				tm.Opportunities++
			case channel.DealSale:
				tm.Sales++
				tm.Revenue += r.Amount
			}
		}
	}
	return active
}

func applyDerived(tm *model.TenantMetrics) {
	d := Derive(tm.TotalSpend, tm.Leads, tm.Sales, tm.Revenue)
	tm.CAL, tm.CAV, tm.ROAS, tm.ConversionRate = d.CAL, d.CAV, d.ROAS, d.ConversionRate
}

func hasNonZeroMetric(tm model.TenantMetrics) bool {
	return tm.TotalSpend != 0 || tm.Leads != 0 || tm.Opportunities != 0 || tm.Sales != 0 || tm.Revenue != 0
}

func (a *Aggregator) buildReport(results []tenantResult, start, end time.Time) *model.Report {
	byClient := lo.Map(results, func(r tenantResult, _ int) model.TenantMetrics { return r.metrics })

	totals := model.GlobalMetrics{
		GoogleSpend:   lo.SumBy(byClient, func(m model.TenantMetrics) float64 { return m.GoogleSpend }),
		MetaSpend:     lo.SumBy(byClient, func(m model.TenantMetrics) float64 { return m.MetaSpend }),
		Leads:         lo.SumBy(byClient, func(m model.TenantMetrics) int64 { return m.Leads }),
		Opportunities: lo.SumBy(byClient, func(m model.TenantMetrics) int64 { return m.Opportunities }),
		Sales:         lo.SumBy(byClient, func(m model.TenantMetrics) int64 { return m.Sales }),
		Revenue:       lo.SumBy(byClient, func(m model.TenantMetrics) float64 { return m.Revenue }),
		GoogleActive:  lo.SumBy(byClient, func(m model.TenantMetrics) int { return m.GoogleActive }),
		MetaActive:    lo.SumBy(byClient, func(m model.TenantMetrics) int { return m.MetaActive }),
		TenantCount:   len(byClient),
	}
	totals.TotalSpend = totals.GoogleSpend + totals.MetaSpend
	d := Derive(totals.TotalSpend, totals.Leads, totals.Sales, totals.Revenue)
	totals.CAL, totals.CAV, totals.ROAS, totals.ConversionRate = d.CAL, d.CAV, d.ROAS, d.ConversionRate

	sort.SliceStable(byClient, func(i, j int) bool {
		if byClient[i].TotalSpend != byClient[j].TotalSpend {
			return byClient[i].TotalSpend > byClient[j].TotalSpend
		}
		return byClient[i].TenantName < byClient[j].TenantName
	})

	campaigns := lo.FlatMap(results, func(r tenantResult, _ int) []model.ActiveCampaign { return r.campaigns })
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].Spend > campaigns[j].Spend
	})
	if len(campaigns) > a.topCampaigns {
		campaigns = campaigns[:a.topCampaigns]
	}

	return &model.Report{
		Totals:          totals,
		ByClient:        byClient,
		ActiveCampaigns: campaigns,
		Period: model.Period{
			Start: start.Format(DateLayout),
			End:   end.Format(DateLayout),
		},
	}
}
