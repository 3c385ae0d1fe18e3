package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAppointmentRelationNotLoaded(t *testing.T) {
	var appt Appointment

	_, err := appt.ServiceType()
	if !errors.Is(err, ErrRelationNotFound) {
		t.Fatalf("expected ErrRelationNotFound, got %v", err)
	}
	var relErr *RelationNotFoundError
	if !errors.As(err, &relErr) {
		t.Fatalf("expected RelationNotFoundError, got %T", err)
	}
	if relErr.Relation != RelationServiceType || relErr.Model != "appointment" {
		t.Fatalf("unexpected relation error %+v", relErr)
	}
}

func TestAppointmentRelationLoaded(t *testing.T) {
	var appt Appointment
	appt.SetServiceType(ServiceType{ID: 7, Description: "Reservice", Reservice: true})

	st, err := appt.ServiceType()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ID != 7 || !st.Reservice {
		t.Fatalf("unexpected service type %+v", st)
	}
	if _, err := appt.Customer(); !errors.Is(err, ErrRelationNotFound) {
		t.Fatalf("customer relation should remain unloaded, got %v", err)
	}
}

func TestCustomerRelationListLoadedEmpty(t *testing.T) {
	var customer Customer
	if _, err := customer.Subscriptions(); !errors.Is(err, ErrRelationNotFound) {
		t.Fatalf("expected unloaded subscriptions, got %v", err)
	}

	customer.SetSubscriptions(nil)
	subs, err := customer.Subscriptions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected empty list, got %d", len(subs))
	}
}

func TestRelationListReturnsCopy(t *testing.T) {
	var customer Customer
	customer.SetSubscriptions([]Subscription{{ID: 1}, {ID: 2}})

	subs, _ := customer.Subscriptions()
	subs[0].ID = 99

	again, _ := customer.Subscriptions()
	if again[0].ID != 1 {
		t.Fatalf("relation list mutated through returned slice")
	}
}

func TestPaymentProfileExpired(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		profile PaymentProfile
		want    bool
	}{
		{"same month", PaymentProfile{Method: PaymentMethodCard, ExpMonth: 6, ExpYear: 2025}, false},
		{"previous month", PaymentProfile{Method: PaymentMethodCard, ExpMonth: 5, ExpYear: 2025}, true},
		{"previous year", PaymentProfile{Method: PaymentMethodCard, ExpMonth: 12, ExpYear: 2024}, true},
		{"ach never expires", PaymentProfile{Method: PaymentMethodACH}, false},
	}
	for _, tc := range cases {
		if got := tc.profile.Expired(now); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSpotAvailability(t *testing.T) {
	spot := Spot{Open: true, Start: time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)}
	if !spot.Available() {
		t.Fatalf("open spot should be available")
	}
	if spot.Window() != WindowAM {
		t.Fatalf("expected AM window, got %s", spot.Window())
	}
	spot.AppointmentIDs = []int{10}
	if spot.Available() {
		t.Fatalf("spot with appointment must not be available")
	}
}
