package handlers

import (
	"strconv"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/storage"
	"github.com/fieldline/customer-api/internal/services"
)

const (
	typeAccount        = "accounts"
	typeCustomer       = "customers"
	typeAppointment    = "appointments"
	typeSpot           = "spots"
	typeSubscription   = "subscriptions"
	typeServiceType    = "serviceTypes"
	typeUpgrade        = "upgrades"
	typePayment        = "payments"
	typePaymentProfile = "paymentProfiles"
	typeDownload       = "downloads"
)

func itoa(v int) string { return strconv.Itoa(v) }

func accountResource(a domain.Account) httpx.Resource {
	return httpx.Resource{
		Type: typeAccount,
		ID:   a.UID,
		Attributes: map[string]any{
			"office_id":      a.OfficeID,
			"account_number": a.AccountNumber,
			"email":          a.Email,
			"frozen":         a.Frozen,
		},
		Relationships: map[string]httpx.Relationship{
			"customer": httpx.ToOne(typeCustomer, itoa(a.AccountNumber)),
		},
	}
}

func customerResource(c domain.Customer) httpx.Resource {
	attrs := map[string]any{
		"office_id":           c.OfficeID,
		"first_name":          c.FirstName,
		"last_name":           c.LastName,
		"company_name":        c.CompanyName,
		"name":                c.DisplayName(),
		"email":               c.Email,
		"phone":               c.Phone,
		"active":              c.Active,
		"balance":             c.Balance.StringFixed(2),
		"autopay_profile_id":  c.AutoPayProfileID,
		"paperless_billing":   c.PaperlessBilling,
		"square_feet":         c.SquareFeet,
		"created_at":          formatTime(c.CreatedAt),
		"address":             addressAttributes(c.Address),
		"autopay_enabled":     c.AutoPayProfileID > 0,
		"balance_outstanding": c.Balance.IsPositive(),
	}
	res := httpx.Resource{Type: typeCustomer, ID: itoa(c.ID), Attributes: attrs}
	if subs, err := c.Subscriptions(); err == nil {
		ids := make([]string, 0, len(subs))
		for _, s := range subs {
			ids = append(ids, itoa(s.ID))
		}
		res.Relationships = map[string]httpx.Relationship{
			"subscriptions": httpx.ToMany(typeSubscription, ids...),
		}
	}
	return res
}

func addressAttributes(a domain.Address) map[string]any {
	return map[string]any{
		"street": a.Street,
		"city":   a.City,
		"state":  a.State,
		"zip":    a.Zip,
	}
}

func appointmentResource(a domain.Appointment) httpx.Resource {
	attrs := map[string]any{
		"status":           string(a.Status),
		"initial":          a.Initial,
		"window":           string(a.Window),
		"start":            formatTime(a.Start),
		"end":              formatTime(a.End),
		"duration_minutes": int(a.Duration.Minutes()),
		"notes":            a.Notes,
		"created_at":       formatTime(a.CreatedAt),
	}
	if a.CancelledAt != nil {
		attrs["cancelled_at"] = formatTimePtr(a.CancelledAt)
	}
	if a.CompletedAt != nil {
		attrs["completed_at"] = formatTimePtr(a.CompletedAt)
	}
	if st, err := a.ServiceType(); err == nil {
		attrs["service_type"] = st.Description
		attrs["reservice"] = st.Reservice
	}
	rels := map[string]httpx.Relationship{
		"customer":    httpx.ToOne(typeCustomer, itoa(a.CustomerID)),
		"serviceType": httpx.ToOne(typeServiceType, itoa(a.ServiceTypeID)),
	}
	if a.SubscriptionID > 0 {
		rels["subscription"] = httpx.ToOne(typeSubscription, itoa(a.SubscriptionID))
	}
	if a.SpotID > 0 {
		rels["spot"] = httpx.ToOne(typeSpot, itoa(a.SpotID))
	}
	return httpx.Resource{Type: typeAppointment, ID: itoa(a.ID), Attributes: attrs, Relationships: rels}
}

func appointmentResources(list []domain.Appointment) []httpx.Resource {
	out := make([]httpx.Resource, 0, len(list))
	for _, a := range list {
		out = append(out, appointmentResource(a))
	}
	return out
}

func spotResource(s domain.Spot) httpx.Resource {
	return httpx.Resource{
		Type: typeSpot,
		ID:   itoa(s.ID),
		Attributes: map[string]any{
			"route_id":  s.RouteID,
			"start":     formatTime(s.Start),
			"end":       formatTime(s.End),
			"date":      s.Start.Format(dateLayout),
			"window":    string(s.Window()),
			"available": s.Available(),
		},
	}
}

func subscriptionResource(s domain.Subscription) httpx.Resource {
	attrs := map[string]any{
		"active":            s.Active,
		"frequency_days":    s.FrequencyDays,
		"recurring_charge":  s.RecurringCharge.StringFixed(2),
		"contract_value":    s.ContractValue.StringFixed(2),
		"initial_completed": s.InitialCompleted,
		"created_at":        formatTime(s.CreatedAt),
	}
	if s.LastCompletedService != nil {
		attrs["last_completed_service"] = formatTimePtr(s.LastCompletedService)
	}
	if st, err := s.ServiceType(); err == nil {
		attrs["service_type"] = st.Description
	}
	return httpx.Resource{
		Type:       typeSubscription,
		ID:         itoa(s.ID),
		Attributes: attrs,
		Relationships: map[string]httpx.Relationship{
			"customer":    httpx.ToOne(typeCustomer, itoa(s.CustomerID)),
			"serviceType": httpx.ToOne(typeServiceType, itoa(s.ServiceTypeID)),
		},
	}
}

func upgradeSummaryResource(u domain.UpgradeSummary) httpx.Resource {
	upgrades := make([]map[string]any, 0, len(u.Upgrades))
	for _, up := range u.Upgrades {
		addons := make([]map[string]any, 0, len(up.Addons))
		for _, a := range up.Addons {
			addons = append(addons, map[string]any{
				"product_id": a.ProductID,
				"name":       a.Name,
				"price":      a.Price.StringFixed(2),
				"purchased":  a.Purchased,
			})
		}
		upgrades = append(upgrades, map[string]any{
			"plan":   planAttributes(up.Plan),
			"addons": addons,
		})
	}
	return httpx.Resource{
		Type: typeUpgrade,
		ID:   itoa(u.SubscriptionID),
		Attributes: map[string]any{
			"current_plan":      planAttributes(u.CurrentPlan),
			"upgrades":          upgrades,
			"discount_eligible": u.DiscountEligible,
		},
		Relationships: map[string]httpx.Relationship{
			"subscription": httpx.ToOne(typeSubscription, itoa(u.SubscriptionID)),
		},
	}
}

func planAttributes(p domain.Plan) map[string]any {
	return map[string]any{
		"id":              p.ID,
		"code":            p.Code,
		"name":            p.Name,
		"order":           p.Order,
		"initial_price":   p.InitialPrice.StringFixed(2),
		"recurring_price": p.RecurringPrice.StringFixed(2),
	}
}

func paymentResource(p domain.Payment) httpx.Resource {
	res := httpx.Resource{
		Type: typePayment,
		ID:   itoa(p.ID),
		Attributes: map[string]any{
			"amount":         p.Amount.StringFixed(2),
			"applied_amount": p.AppliedAmount.StringFixed(2),
			"method":         p.Method,
			"status":         string(p.Status),
			"date":           formatTime(p.Date),
		},
	}
	if p.PaymentProfileID > 0 {
		res.Relationships = map[string]httpx.Relationship{
			"paymentProfile": httpx.ToOne(typePaymentProfile, itoa(p.PaymentProfileID)),
		}
	}
	return res
}

func paymentProfileResource(p domain.PaymentProfile, autopayID int) httpx.Resource {
	return httpx.Resource{
		Type: typePaymentProfile,
		ID:   itoa(p.ID),
		Attributes: map[string]any{
			"method":       string(p.Method),
			"description":  p.Description,
			"billing_name": p.BillingName,
			"card_type":    p.CardType,
			"last_four":    p.LastFour,
			"exp_month":    p.ExpMonth,
			"exp_year":     p.ExpYear,
			"autopay":      autopayID > 0 && autopayID == p.ID,
			"created_at":   formatTime(p.CreatedAt),
		},
	}
}

func customerFileResource(f services.CustomerFile) httpx.Resource {
	attrs := map[string]any{
		"description": f.Description,
		"created_at":  formatTime(f.CreatedAt),
	}
	if f.SignedAt != nil {
		attrs["signed_at"] = formatTimePtr(f.SignedAt)
	}
	return httpx.Resource{Type: string(f.Kind), ID: itoa(f.ID), Attributes: attrs}
}

func downloadResource(kind domain.DocumentKind, id int, signed storage.SignedURL) httpx.Resource {
	return httpx.Resource{
		Type: typeDownload,
		ID:   string(kind) + "-" + itoa(id),
		Attributes: map[string]any{
			"url":        signed.URL,
			"expires_at": formatTime(signed.ExpiresAt),
		},
	}
}
