package model

import (
	"fmt"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelGoogle      Channel = "google"
	ChannelMeta        Channel = "meta"
	ChannelLeadSource  Channel = "leadsource"
	ChannelExternalCRM Channel = "extcrm"
	// ChannelInternalCRM lives in shared tables keyed by tenant_id and never has registry entries.
	ChannelInternalCRM Channel = "crm"
)

type TableRole string

const (
	RoleMetrics    TableRole = "metrics"
	RoleKeywords   TableRole = "keywords"
	RoleCampaigns  TableRole = "campaigns"
	RoleAdSets     TableRole = "adsets"
	RoleAds        TableRole = "ads"
	RoleBreakdowns TableRole = "breakdowns"
	RoleRegions    TableRole = "regions"
	RoleSyncState  TableRole = "sync_state"
	RoleLeads      TableRole = "leads"
	RoleDeals      TableRole = "deals"
)

// RegistryEntry maps (tenant, channel, role) to a physical table.
type RegistryEntry struct {
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Channel   Channel   `db:"channel" json:"channel"`
	Role      TableRole `db:"table_role" json:"table_role"`
	TableName string    `db:"table_name" json:"table_name"`
}

// TableName builds the physical name for a tenant table: {prefix}_{channel}_{role}.
func TableName(prefix string, channel Channel, role TableRole) string {
	return fmt.Sprintf("%s_%s_%s", prefix, channel, role)
}
