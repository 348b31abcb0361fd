package model

import "github.com/google/uuid"

// TenantMetrics is the per-tenant accumulator plus its derived ratios.
type TenantMetrics struct {
	TenantID       uuid.UUID `json:"clientId"`
	TenantName     string    `json:"clientName"`
	LogoURL        *string   `json:"logoUrl,omitempty"`
	GoogleSpend    float64   `json:"googleSpend"`
	MetaSpend      float64   `json:"metaSpend"`
	TotalSpend     float64   `json:"totalSpend"`
	Leads          int64     `json:"leads"`
	Opportunities  int64     `json:"opportunities"`
	Sales          int64     `json:"sales"`
	Revenue        float64   `json:"revenue"`
	GoogleActive   int       `json:"googleActiveCampaigns"`
	MetaActive     int       `json:"metaActiveCampaigns"`
	CAL            float64   `json:"cal"`
	CAV            float64   `json:"cav"`
	ROAS           float64   `json:"roas"`
	ConversionRate float64   `json:"conversionRate"`
	HasSyncedData  bool      `json:"hasSyncedData"`
	ChannelErrors  []string  `json:"channelErrors,omitempty"`
}

// GlobalMetrics is the sum of every TenantMetrics plus global ratios.
type GlobalMetrics struct {
	GoogleSpend    float64 `json:"googleSpend"`
	MetaSpend      float64 `json:"metaSpend"`
	TotalSpend     float64 `json:"totalSpend"`
	Leads          int64   `json:"leads"`
	Opportunities  int64   `json:"opportunities"`
	Sales          int64   `json:"sales"`
	Revenue        float64 `json:"revenue"`
	GoogleActive   int     `json:"googleActiveCampaigns"`
	MetaActive     int     `json:"metaActiveCampaigns"`
	CAL            float64 `json:"cal"`
	CAV            float64 `json:"cav"`
	ROAS           float64 `json:"roas"`
	ConversionRate float64 `json:"conversionRate"`
	TenantCount    int     `json:"clientCount"`
}

type ActiveCampaign struct {
	TenantName   string  `json:"tenantName"`
	CampaignName string  `json:"campaignName"`
	Channel      Channel `json:"channel"`
	Spend        float64 `json:"spend"`
	ResultCount  int64   `json:"resultCount"`
	Status       string  `json:"status"`
}

// Report is the aggregation response consumed by the dashboard.
type Report struct {
	Totals          GlobalMetrics    `json:"totals"`
	ByClient        []TenantMetrics  `json:"byClient"`
	ActiveCampaigns []ActiveCampaign `json:"activeCampaigns"`
	Period          Period           `json:"period"`
}

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
