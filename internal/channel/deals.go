package channel

import "strings"

// DealKind is the funnel position a deal contributes to.
type DealKind int

const (
	DealNone DealKind = iota
	DealOpportunity
	DealSale
)

func (k DealKind) String() string {
	switch k {
	case DealOpportunity:
		return "opportunity"
	case DealSale:
		return "sale"
	default:
		return "none"
	}
}

var (
	externalWonStatuses  = []string{"won", "ganho"}
	externalOpenStatuses = []string{"open", "pending"}
	externalWonStages    = []string{"ganho", "fechado"}
)

// ClassifyExternalDeal applies the external CRM rules. A deal is a sale when its
// status is a won sentinel or its stage name contains "ganho"/"fechado". A deal
// with no status, or an open or pending one, is an opportunity.
func ClassifyExternalDeal(status *string, stage string) DealKind {
	st := ""
	if status != nil {
		st = strings.ToLower(strings.TrimSpace(*status))
	}
	for _, won := range externalWonStatuses {
		if st == won {
			return DealSale
		}
	}
	lowerStage := strings.ToLower(stage)
	for _, won := range externalWonStages {
		if strings.Contains(lowerStage, won) {
			return DealSale
		}
	}
	if st == "" {
		return DealOpportunity
	}
	for _, open := range externalOpenStatuses {
		if st == open {
			return DealOpportunity
		}
	}
	return DealNone
}

// FunnelStage is one configured step of a tenant's internal CRM pipeline.
type FunnelStage struct {
	Name  string
	Order int
	Won   bool
	Lost  bool
}

// ClassifyInternalDeal: won stages are sales; stages from order 2 onward that
// are neither won nor lost are opportunities.
func ClassifyInternalDeal(stage FunnelStage) DealKind {
	if stage.Won {
		return DealSale
	}
	if stage.Order >= 2 && !stage.Lost {
		return DealOpportunity
	}
	return DealNone
}
