package services

import domain "github.com/fieldline/customer-api/internal/domain"

// SubscriptionRules decides whether a customer may open a new agreement.
type SubscriptionRules struct{}

// CanCreateSubscription requires an active customer, a recurring service type and no active
// agreement of the same type.
func (SubscriptionRules) CanCreateSubscription(customer domain.Customer, serviceType domain.ServiceType, existing []domain.Subscription) domain.Check {
	if !customer.Active {
		return domain.Deny(ReasonCustomerInactive)
	}
	if !serviceType.Recurring || serviceType.Initial || serviceType.Reservice {
		return domain.Deny(ReasonServiceNotRecurring)
	}
	for _, sub := range existing {
		if sub.Active && sub.ServiceTypeID == serviceType.ID {
			return domain.Deny(ReasonDuplicateAgreement)
		}
	}
	return domain.Allow()
}
