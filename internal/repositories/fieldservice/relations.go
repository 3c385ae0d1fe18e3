package fieldservice

import (
	"context"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

// relationLoader resolves declared relations after the primary fetch. Service types are memoised
// for the lifetime of one call because many appointments share a handful of types.
type relationLoader struct {
	client       *pfieldservice.Client
	officeID     int
	loc          *time.Location
	tickets      repositories.TicketRepository
	serviceTypes map[int]domain.ServiceType
}

func newRelationLoader(client *pfieldservice.Client, officeID int, opts options) *relationLoader {
	var tickets repositories.TicketRepository = &TicketRepository{client: client}
	if opts.tickets != nil {
		tickets = opts.tickets
	}
	return &relationLoader{
		client:       client,
		officeID:     officeID,
		loc:          opts.loc,
		tickets:      tickets.Office(officeID),
		serviceTypes: make(map[int]domain.ServiceType),
	}
}

func (l *relationLoader) serviceType(ctx context.Context, id int) (domain.ServiceType, error) {
	if st, ok := l.serviceTypes[id]; ok {
		return st, nil
	}
	wire, err := pfieldservice.Get[pfieldservice.ServiceType](ctx, l.client, pfieldservice.ResourceServiceType, l.officeID, id)
	if err != nil {
		return domain.ServiceType{}, translate("service type", "get", id, err)
	}
	st := toServiceType(wire)
	l.serviceTypes[id] = st
	return st, nil
}

func (l *relationLoader) appointments(ctx context.Context, s scope, items []domain.Appointment) error {
	for i := range items {
		appt := &items[i]
		if s.has(domain.RelationServiceType) {
			st, err := l.serviceType(ctx, appt.ServiceTypeID)
			if err != nil {
				return err
			}
			appt.SetServiceType(st)
		}
		if s.has(domain.RelationCustomer) {
			wire, err := pfieldservice.Get[pfieldservice.Customer](ctx, l.client, pfieldservice.ResourceCustomer, l.officeID, appt.CustomerID)
			if err != nil {
				return translate("customer", "get", appt.CustomerID, err)
			}
			appt.SetCustomer(toCustomer(wire))
		}
		if s.has(domain.RelationSubscription) {
			if appt.SubscriptionID == 0 {
				appt.SetSubscription(domain.Subscription{})
			} else {
				sub, err := l.subscription(ctx, appt.SubscriptionID)
				if err != nil {
					return err
				}
				appt.SetSubscription(sub)
			}
		}
		if s.has(domain.RelationSpot) {
			wire, err := pfieldservice.Get[pfieldservice.Spot](ctx, l.client, pfieldservice.ResourceSpot, l.officeID, appt.SpotID)
			if err != nil {
				return translate("spot", "get", appt.SpotID, err)
			}
			appt.SetSpot(toSpot(wire, l.loc))
		}
	}
	return nil
}

func (l *relationLoader) subscription(ctx context.Context, id int) (domain.Subscription, error) {
	wire, err := pfieldservice.Get[pfieldservice.Subscription](ctx, l.client, pfieldservice.ResourceSubscription, l.officeID, id)
	if err != nil {
		return domain.Subscription{}, translate("subscription", "get", id, err)
	}
	return toSubscription(wire), nil
}

func (l *relationLoader) subscriptions(ctx context.Context, s scope, items []domain.Subscription) error {
	for i := range items {
		sub := &items[i]
		if s.has(domain.RelationServiceType) {
			st, err := l.serviceType(ctx, sub.ServiceTypeID)
			if err != nil {
				return err
			}
			sub.SetServiceType(st)
		}
		if s.has(domain.RelationRecurringTicket) {
			if sub.RecurringTicketID == 0 {
				sub.SetRecurringTicket(domain.Ticket{SubscriptionID: sub.ID})
				continue
			}
			ticket, err := l.tickets.Find(ctx, sub.RecurringTicketID)
			if err != nil {
				return err
			}
			sub.SetRecurringTicket(ticket)
		}
	}
	return nil
}

func (l *relationLoader) customers(ctx context.Context, s scope, items []domain.Customer) error {
	for i := range items {
		customer := &items[i]
		if s.has(domain.RelationSubscriptions) {
			params := pfieldservice.NewParams().SetInts("customerIDs", []int{customer.ID})
			wire, err := pfieldservice.Search[pfieldservice.Subscription](ctx, l.client, pfieldservice.ResourceSubscription, l.officeID, params)
			if err != nil {
				return translate("subscription", "search", 0, err)
			}
			subs := mapAll(wire, toSubscription)
			// Nested subscriptions always carry their service type.
			if err := l.subscriptions(ctx, scope{relations: []string{domain.RelationServiceType}}, subs); err != nil {
				return err
			}
			customer.SetSubscriptions(subs)
		}
		if s.has(domain.RelationAppointments) {
			params := pfieldservice.NewParams().SetInts("customerIDs", []int{customer.ID})
			wire, err := pfieldservice.Search[pfieldservice.Appointment](ctx, l.client, pfieldservice.ResourceAppointment, l.officeID, params)
			if err != nil {
				return translate("appointment", "search", 0, err)
			}
			appts := make([]domain.Appointment, 0, len(wire))
			for _, w := range wire {
				appts = append(appts, toAppointment(w, l.loc))
			}
			sortAppointments(appts)
			customer.SetAppointments(appts)
		}
		if s.has(domain.RelationPaymentProfiles) {
			params := pfieldservice.NewParams().SetInts("customerIDs", []int{customer.ID})
			wire, err := pfieldservice.Search[pfieldservice.PaymentProfile](ctx, l.client, pfieldservice.ResourcePaymentProfile, l.officeID, params)
			if err != nil {
				return translate("payment profile", "search", 0, err)
			}
			customer.SetPaymentProfiles(mapAll(wire, toPaymentProfile))
		}
	}
	return nil
}
