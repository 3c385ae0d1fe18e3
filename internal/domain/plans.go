package domain

import "github.com/shopspring/decimal"

// PlanCodeProPlus and PlanCodePro identify the plans compared for the upgrade discount.
const (
	PlanCodePro     = "pro"
	PlanCodeProPlus = "pro_plus"
)

// Plan is a service plan offered by the plan-pricing service.
type Plan struct {
	ID             int
	Code           string
	Name           string
	Order          int
	InitialPrice   decimal.Decimal
	RecurringPrice decimal.Decimal
	Addons         []Addon
}

// Addon is an optional product that can be attached to a plan.
type Addon struct {
	ProductID int
	Name      string
	Price     decimal.Decimal
}

// Upgrade is a plan ranked above the customer's current plan.
type Upgrade struct {
	Plan   Plan
	Addons []UpgradeAddon
}

// UpgradeAddon marks whether an add-on already appears on the customer's recurring invoice.
type UpgradeAddon struct {
	Addon
	Purchased bool
}

// UpgradeSummary is the result of evaluating a subscription for upgrades.
type UpgradeSummary struct {
	SubscriptionID   int
	CurrentPlan      Plan
	Upgrades         []Upgrade
	DiscountEligible bool
}
