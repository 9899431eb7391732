package discovery

import (
	"strings"

	"github.com/scenariq/scenariq/internal/core"
)

// Well-known capability tags
const (
	CapMarketingStrategy  = "marketing_strategy"
	CapCampaignManagement = "campaign_management"
	CapInventoryMgmt      = "inventory_management"
	CapSupplyChain        = "supply_chain_optimization"
	CapRevenueOpt         = "revenue_optimization"
	CapPricingStrategy    = "pricing_strategy"
	CapRiskMitigation     = "risk_mitigation"
	CapHighRiskExecution  = "high_risk_action_execution"
	CapCoordination       = "coordination"
	CapBasicTask          = "basic_task_processing"
)

// capabilityRule maps keywords found in an action name to the capabilities
// an executor needs to carry it out. The table lives outside the scorer so
// it can be tuned and tested independently of the weighting.
type capabilityRule struct {
	keywords     []string
	capabilities []string
}

var capabilityRules = []capabilityRule{
	{
		keywords:     []string{"marketing", "campaign", "promotion"},
		capabilities: []string{CapMarketingStrategy, CapCampaignManagement},
	},
	{
		keywords:     []string{"inventory", "stock", "restock", "warehouse"},
		capabilities: []string{CapInventoryMgmt, CapSupplyChain},
	},
	{
		keywords:     []string{"revenue", "pricing", "price"},
		capabilities: []string{CapRevenueOpt, CapPricingStrategy},
	},
	{
		keywords:     []string{"hedge", "mitigate"},
		capabilities: []string{CapRiskMitigation},
	},
}

// typeCapabilities maps a simulation type to the capabilities its actions
// need regardless of wording.
var typeCapabilities = map[core.SimulationType][]string{
	core.SimulationTypeMarketing: {CapMarketingStrategy, CapCampaignManagement},
	core.SimulationTypeInventory: {CapInventoryMgmt, CapSupplyChain},
	core.SimulationTypeRevenue:   {CapRevenueOpt},
}

// domainKeywords maps a simulation type to the expertise tags that count as
// matching domain expertise during scoring.
var domainKeywords = map[core.SimulationType][]string{
	core.SimulationTypeRevenue:   {"revenue", "finance", "pricing", "sales"},
	core.SimulationTypeInventory: {"inventory", "logistics", "supply_chain", "operations"},
	core.SimulationTypeMarketing: {"marketing", "advertising", "campaigns", "growth"},
	core.SimulationTypeGeneric:   {"general", "operations"},
}

// RequiredCapabilities derives the capability set an action demands from
// keyword rules over its name plus the simulation type, deduplicated in
// rule order. High-risk actions additionally require a high-risk execution
// capability.
func RequiredCapabilities(action core.RecommendedAction, simType core.SimulationType) []string {
	name := strings.ToLower(action.Name)

	var required []string
	seen := make(map[string]bool)
	add := func(caps []string) {
		for _, c := range caps {
			if !seen[c] {
				seen[c] = true
				required = append(required, c)
			}
		}
	}

	for _, rule := range capabilityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				add(rule.capabilities)
				break
			}
		}
	}

	add(typeCapabilities[simType])

	if action.RiskLevel == core.RiskHigh {
		add([]string{CapHighRiskExecution})
	}

	return required
}

// MatchesDomain reports whether any of the executor's expertise tags fall
// within the simulation type's domain keywords.
func MatchesDomain(e *core.Executor, simType core.SimulationType) bool {
	keywords := domainKeywords[simType]
	for _, tag := range e.Expertise {
		lower := strings.ToLower(tag)
		for _, kw := range keywords {
			if lower == kw {
				return true
			}
		}
	}
	return false
}
