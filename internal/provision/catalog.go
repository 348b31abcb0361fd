package provision

import (
	"github.com/google/uuid"

	"tenant-metrics/internal/model"
)

// TableSpec is one physical table created for every tenant.
type TableSpec struct {
	Channel model.Channel
	Role    model.TableRole
	Columns []string
}

var (
	dailyAdColumns = []string{
		"spend NUMERIC(14,2) NOT NULL DEFAULT 0",
		"results BIGINT NOT NULL DEFAULT 0",
		"date_start DATE NOT NULL",
		"date_stop DATE NOT NULL",
	}

	// Catalog lists every (channel, role) a tenant gets, in creation order.
	Catalog = []TableSpec{
		{model.ChannelGoogle, model.RoleMetrics, []string{
			"date DATE NOT NULL",
			"campaign_id TEXT NOT NULL",
			"campaign_name TEXT NOT NULL",
			"campaign_status TEXT",
			"cost NUMERIC(14,2) NOT NULL DEFAULT 0",
			"conversions NUMERIC(14,2) NOT NULL DEFAULT 0",
			"clicks BIGINT NOT NULL DEFAULT 0",
			"impressions BIGINT NOT NULL DEFAULT 0",
			"UNIQUE (date, campaign_id)",
		}},
		{model.ChannelGoogle, model.RoleKeywords, []string{
			"date DATE NOT NULL",
			"campaign_id TEXT NOT NULL",
			"keyword TEXT NOT NULL",
			"match_type TEXT",
			"cost NUMERIC(14,2) NOT NULL DEFAULT 0",
			"conversions NUMERIC(14,2) NOT NULL DEFAULT 0",
			"clicks BIGINT NOT NULL DEFAULT 0",
			"impressions BIGINT NOT NULL DEFAULT 0",
		}},
		{model.ChannelMeta, model.RoleCampaigns, append([]string{
			"campaign_id TEXT NOT NULL",
			"campaign_name TEXT NOT NULL",
			"status TEXT",
			"objective TEXT",
			"impressions BIGINT NOT NULL DEFAULT 0",
			"clicks BIGINT NOT NULL DEFAULT 0",
			"synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		}, dailyAdColumns...)},
		{model.ChannelMeta, model.RoleAdSets, append([]string{
			"adset_id TEXT NOT NULL",
			"campaign_id TEXT NOT NULL",
			"adset_name TEXT NOT NULL",
			"status TEXT",
		}, dailyAdColumns...)},
		{model.ChannelMeta, model.RoleAds, append([]string{
			"ad_id TEXT NOT NULL",
			"adset_id TEXT NOT NULL",
			"ad_name TEXT NOT NULL",
			"status TEXT",
			"impressions BIGINT NOT NULL DEFAULT 0",
			"clicks BIGINT NOT NULL DEFAULT 0",
		}, dailyAdColumns...)},
		{model.ChannelMeta, model.RoleBreakdowns, append([]string{
			"campaign_id TEXT NOT NULL",
			"age TEXT",
			"gender TEXT",
		}, dailyAdColumns...)},
		{model.ChannelMeta, model.RoleRegions, append([]string{
			"campaign_id TEXT NOT NULL",
			"region TEXT NOT NULL",
		}, dailyAdColumns...)},
		{model.ChannelMeta, model.RoleSyncState, []string{
			"entity TEXT NOT NULL UNIQUE",
			"cursor TEXT",
			"status TEXT",
			"last_synced_at TIMESTAMPTZ",
		}},
		{model.ChannelLeadSource, model.RoleMetrics, []string{
			"date DATE NOT NULL",
			"source TEXT NOT NULL",
			"leads BIGINT NOT NULL DEFAULT 0",
			"cost NUMERIC(14,2) NOT NULL DEFAULT 0",
		}},
		{model.ChannelLeadSource, model.RoleLeads, []string{
			"lead_id TEXT NOT NULL UNIQUE",
			"name TEXT",
			"email TEXT",
			"phone TEXT",
			"source TEXT",
			"created_at TIMESTAMPTZ NOT NULL",
		}},
		{model.ChannelExternalCRM, model.RoleDeals, []string{
			"deal_id TEXT NOT NULL UNIQUE",
			"deal_name TEXT NOT NULL",
			"status TEXT",
			"stage_name TEXT",
			"amount NUMERIC(14,2) NOT NULL DEFAULT 0",
			"created_at TIMESTAMPTZ NOT NULL",
			"closed_at TIMESTAMPTZ",
		}},
		{model.ChannelExternalCRM, model.RoleMetrics, []string{
			"date DATE NOT NULL",
			"pipeline TEXT NOT NULL",
			"open_deals BIGINT NOT NULL DEFAULT 0",
			"won_deals BIGINT NOT NULL DEFAULT 0",
			"won_amount NUMERIC(14,2) NOT NULL DEFAULT 0",
		}},
	}
)

// Entries returns the registry rows for a tenant over the whole catalog.
func Entries(tenantID uuid.UUID, prefix string) []model.RegistryEntry {
	entries := make([]model.RegistryEntry, 0, len(Catalog))
	for _, ts := range Catalog {
		entries = append(entries, model.RegistryEntry{
			TenantID:  tenantID,
			Channel:   ts.Channel,
			Role:      ts.Role,
			TableName: model.TableName(prefix, ts.Channel, ts.Role),
		})
	}
	return entries
}
