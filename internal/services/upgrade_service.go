package services

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

// DefaultProPlusDifferential is the monthly price gap between Pro+ and Pro that unlocks the
// upgrade discount.
var DefaultProPlusDifferential = decimal.NewFromInt(20)

// UpgradeServiceDeps wires the plan catalog and subscription lookups.
type UpgradeServiceDeps struct {
	Plans               PlanCatalog
	Subscriptions       repositories.SubscriptionRepository
	ProPlusDifferential decimal.Decimal
	Logger              Logger
}

type upgradeService struct {
	plans         PlanCatalog
	subscriptions repositories.SubscriptionRepository
	differential  decimal.Decimal
	logger        Logger
}

// NewUpgradeService validates deps and returns the upgrade evaluator.
func NewUpgradeService(deps UpgradeServiceDeps) (UpgradeService, error) {
	if deps.Plans == nil {
		return nil, errors.New("upgrade service: plan catalog is required")
	}
	if deps.Subscriptions == nil {
		return nil, errors.New("upgrade service: subscription repository is required")
	}
	differential := deps.ProPlusDifferential
	if differential.IsZero() {
		differential = DefaultProPlusDifferential
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &upgradeService{
		plans:         deps.Plans,
		subscriptions: deps.Subscriptions,
		differential:  differential,
		logger:        logger,
	}, nil
}

func (s *upgradeService) ShowUpgrades(ctx context.Context, account Account, subscriptionID int) (UpgradeSummary, error) {
	sub, err := s.subscriptions.Office(account.OfficeID).
		WithRelated(domain.RelationRecurringTicket).
		Find(ctx, subscriptionID)
	if err != nil {
		return UpgradeSummary{}, err
	}
	if !account.Owns(sub.CustomerID) {
		return UpgradeSummary{}, ErrAccountMismatch
	}

	current, err := s.plans.CurrentPlan(ctx, account.OfficeID, account.AccountNumber)
	if err != nil {
		return UpgradeSummary{}, err
	}
	catalog, err := s.plans.Plans(ctx, account.OfficeID)
	if err != nil {
		return UpgradeSummary{}, err
	}

	purchased := make(map[int]struct{})
	if ticket, err := sub.RecurringTicket(); err == nil {
		for _, id := range ticket.ProductIDs() {
			purchased[id] = struct{}{}
		}
	}

	summary := UpgradeSummary{
		SubscriptionID: sub.ID,
		CurrentPlan:    current,
		Upgrades:       BuildUpgrades(current, catalog, purchased),
	}
	summary.DiscountEligible = DiscountEligible(summary.Upgrades, catalog, s.differential)

	s.logger(ctx, "upgrades.evaluated", map[string]any{
		"subscriptionId":   sub.ID,
		"currentPlan":      current.Code,
		"upgrades":         len(summary.Upgrades),
		"discountEligible": summary.DiscountEligible,
	})
	return summary, nil
}

// BuildUpgrades returns the catalog plans ranked above current, in catalog order, with add-ons
// flagged when their product is already on the recurring invoice.
func BuildUpgrades(current domain.Plan, catalog []domain.Plan, purchased map[int]struct{}) []domain.Upgrade {
	upgrades := make([]domain.Upgrade, 0, len(catalog))
	for _, plan := range catalog {
		if plan.Order <= current.Order {
			continue
		}
		addons := make([]domain.UpgradeAddon, 0, len(plan.Addons))
		for _, addon := range plan.Addons {
			_, owned := purchased[addon.ProductID]
			addons = append(addons, domain.UpgradeAddon{Addon: addon, Purchased: owned})
		}
		upgrades = append(upgrades, domain.Upgrade{Plan: plan, Addons: addons})
	}
	sort.SliceStable(upgrades, func(i, j int) bool {
		return upgrades[i].Plan.Order < upgrades[j].Plan.Order
	})
	return upgrades
}

// DiscountEligible holds when Pro+ is offered as an upgrade and its recurring price exceeds the
// catalog's Pro plan by exactly differential.
func DiscountEligible(upgrades []domain.Upgrade, catalog []domain.Plan, differential decimal.Decimal) bool {
	var proPlus *domain.Plan
	for i := range upgrades {
		if upgrades[i].Plan.Code == domain.PlanCodeProPlus {
			proPlus = &upgrades[i].Plan
			break
		}
	}
	if proPlus == nil {
		return false
	}
	for _, plan := range catalog {
		if plan.Code == domain.PlanCodePro {
			return proPlus.RecurringPrice.Sub(plan.RecurringPrice).Equal(differential)
		}
	}
	return false
}
