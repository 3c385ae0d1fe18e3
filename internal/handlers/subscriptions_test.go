package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/services"
)

func TestSubscriptionHandlersCreate(t *testing.T) {
	svc := &stubSubscriptionService{created: domain.Subscription{ID: 81, CustomerID: 42, Active: true, FrequencyDays: 30}}
	handler := withAccount(NewSubscriptionHandlers(svc, nil).Routes)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, jsonRequest(http.MethodPost, "/subscriptions",
		`{"data":{"type":"subscriptions","attributes":{"service_type_id":4,"frequency_days":30}}}`))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.createCmd.ServiceTypeID != 4 || svc.createCmd.FrequencyDays != 30 || svc.createCmd.Account.AccountNumber != 42 {
		t.Fatalf("unexpected command %#v", svc.createCmd)
	}
}

func TestSubscriptionHandlersCreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{
			name:   "missing service type",
			body:   `{"data":{"type":"subscriptions","attributes":{}}}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "rule denied",
			body:   `{"data":{"type":"subscriptions","attributes":{"service_type_id":3}}}`,
			err:    &services.RuleError{Err: services.ErrCannotCreateSubscription, Reason: services.ReasonDuplicateAgreement},
			status: http.StatusConflict,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSubscriptionService{createErr: tc.err}
			rr := httptest.NewRecorder()
			withAccount(NewSubscriptionHandlers(svc, nil).Routes).ServeHTTP(rr, jsonRequest(http.MethodPost, "/subscriptions", tc.body))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSubscriptionHandlersUpgrades(t *testing.T) {
	upgrades := &stubUpgradeService{summary: domain.UpgradeSummary{
		SubscriptionID:   5,
		CurrentPlan:      domain.Plan{ID: 1, Name: "Basic", RecurringPrice: decimal.RequireFromString("49")},
		Upgrades:         []domain.Upgrade{{Plan: domain.Plan{ID: 3, Name: "Pro+", RecurringPrice: decimal.RequireFromString("89")}}},
		DiscountEligible: true,
	}}
	handler := withAccount(NewSubscriptionHandlers(&stubSubscriptionService{}, upgrades).Routes)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/subscriptions/5/upgrades", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if upgrades.subscriptionID != 5 {
		t.Fatalf("expected subscription 5, got %d", upgrades.subscriptionID)
	}

	var doc struct {
		Data struct {
			Type       string         `json:"type"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Data.Type != "upgrades" || doc.Data.Attributes["discount_eligible"] != true {
		t.Fatalf("unexpected document %#v", doc.Data)
	}
}

func TestSubscriptionHandlersUpgradesUnconfigured(t *testing.T) {
	handler := withAccount(NewSubscriptionHandlers(&stubSubscriptionService{}, nil).Routes)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/subscriptions/5/upgrades", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without plan pricing, got %d", rr.Code)
	}
}

type stubSubscriptionService struct {
	list      []domain.Subscription
	created   domain.Subscription
	createErr error
	createCmd services.CreateSubscriptionCommand
}

func (s *stubSubscriptionService) List(context.Context, services.Account) ([]domain.Subscription, error) {
	return s.list, nil
}

func (s *stubSubscriptionService) Create(_ context.Context, cmd services.CreateSubscriptionCommand) (domain.Subscription, error) {
	s.createCmd = cmd
	if s.createErr != nil {
		return domain.Subscription{}, s.createErr
	}
	return s.created, nil
}

type stubUpgradeService struct {
	summary        domain.UpgradeSummary
	subscriptionID int
}

func (s *stubUpgradeService) ShowUpgrades(_ context.Context, _ services.Account, subscriptionID int) (domain.UpgradeSummary, error) {
	s.subscriptionID = subscriptionID
	return s.summary, nil
}
