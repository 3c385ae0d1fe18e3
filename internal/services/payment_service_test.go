package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/payments"
	"github.com/fieldline/customer-api/internal/repositories"
)

func TestPaymentServiceCreateChargesAndRecords(t *testing.T) {
	profiles := &stubPaymentProfileRepository{profiles: map[int]domain.PaymentProfile{
		11: {ID: 11, CustomerID: 42, Method: domain.PaymentMethodCard, GatewayToken: "pm_123"},
	}}
	paymentsRepo := &stubPaymentRepository{createdID: 700}
	charger := &stubCharger{details: payments.PaymentDetails{IntentID: "pi_1", Status: payments.StatusSucceeded}}
	cards := &stubCardVerifier{details: payments.PaymentMethodDetails{Token: "pm_123", Customer: "cus_9"}}
	publisher := &capturePublisher{}

	svc, err := NewPaymentService(PaymentServiceDeps{
		Payments:        paymentsRepo,
		PaymentProfiles: profiles,
		Charger:         charger,
		Cards:           cards,
		Publisher:       publisher,
		Clock:           func() time.Time { return appointmentNow },
	})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}

	payment, err := svc.Create(context.Background(), CreatePaymentCommand{
		Account:          testAccount(),
		Amount:           decimal.RequireFromString("125.50"),
		PaymentProfileID: 11,
		IdempotencyKey:   "idem-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.ID != 700 || payment.GatewayReference != "pi_1" {
		t.Fatalf("unexpected payment %#v", payment)
	}
	if charger.req.PaymentMethod != "pm_123" || charger.req.GatewayCustomer != "cus_9" {
		t.Fatalf("unexpected charge request %#v", charger.req)
	}
	if !strings.HasPrefix(charger.req.IdempotencyKey, "payment-1-42-") || charger.req.Metadata["idempotencyKey"] != "idem-1" {
		t.Fatalf("unexpected charge key %q metadata %v", charger.req.IdempotencyKey, charger.req.Metadata)
	}
	if charger.req.Currency != "usd" {
		t.Fatalf("expected usd, got %s", charger.req.Currency)
	}
	if !paymentsRepo.created.Amount.Equal(decimal.RequireFromString("125.5")) || paymentsRepo.created.GatewayReference != "pi_1" {
		t.Fatalf("unexpected recorded payment %#v", paymentsRepo.created)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != domain.EventPaymentCreated {
		t.Fatalf("expected one payment event, got %#v", publisher.events)
	}
}

func TestPaymentServiceCreateFailures(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		profileID int
		chargeErr error
		wantErr   error
	}{
		{name: "zero amount", amount: "0", profileID: 11, wantErr: ErrInvalidAmount},
		{name: "sub-cent amount", amount: "10.001", profileID: 11, wantErr: ErrInvalidAmount},
		{name: "unknown profile", amount: "10", profileID: 99, wantErr: ErrPaymentProfileNotFound},
		{name: "foreign profile", amount: "10", profileID: 12, wantErr: ErrAccountMismatch},
		{name: "declined", amount: "10", profileID: 11, chargeErr: payments.ErrCardDeclined, wantErr: payments.ErrCardDeclined},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profiles := &stubPaymentProfileRepository{profiles: map[int]domain.PaymentProfile{
				11: {ID: 11, CustomerID: 42, GatewayToken: "pm_123"},
				12: {ID: 12, CustomerID: 7, GatewayToken: "pm_456"},
			}}
			paymentsRepo := &stubPaymentRepository{createdID: 700}
			charger := &stubCharger{err: tc.chargeErr}
			publisher := &capturePublisher{}
			svc, err := NewPaymentService(PaymentServiceDeps{
				Payments:        paymentsRepo,
				PaymentProfiles: profiles,
				Charger:         charger,
				Publisher:       publisher,
			})
			if err != nil {
				t.Fatalf("new payment service: %v", err)
			}

			_, err = svc.Create(context.Background(), CreatePaymentCommand{
				Account:          testAccount(),
				Amount:           decimal.RequireFromString(tc.amount),
				PaymentProfileID: tc.profileID,
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if paymentsRepo.createCalls != 0 {
				t.Fatalf("expected no recorded payment")
			}
			if len(publisher.events) != 0 {
				t.Fatalf("expected no events")
			}
		})
	}
}

func TestPaymentServiceCreateRefundsUnrecordedCharge(t *testing.T) {
	profiles := &stubPaymentProfileRepository{profiles: map[int]domain.PaymentProfile{
		11: {ID: 11, CustomerID: 42, GatewayToken: "pm_123"},
	}}
	recordErr := &repositories.InternalServerError{Entity: "payment", Op: "create", Err: errors.New("fieldservice unavailable")}
	paymentsRepo := &stubPaymentRepository{createErr: recordErr}
	charger := &stubCharger{details: payments.PaymentDetails{IntentID: "pi_9", Status: payments.StatusSucceeded}}
	publisher := &capturePublisher{}
	svc, err := NewPaymentService(PaymentServiceDeps{
		Payments:        paymentsRepo,
		PaymentProfiles: profiles,
		Charger:         charger,
		Publisher:       publisher,
	})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}

	_, err = svc.Create(context.Background(), CreatePaymentCommand{
		Account:          testAccount(),
		Amount:           decimal.RequireFromString("25.00"),
		PaymentProfileID: 11,
		IdempotencyKey:   "idem-7",
	})
	if !errors.Is(err, recordErr) {
		t.Fatalf("expected record error, got %v", err)
	}
	if len(charger.refunds) != 1 {
		t.Fatalf("expected one refund, got %d", len(charger.refunds))
	}
	if got := charger.refunds[0]; got.IntentID != "pi_9" || got.IdempotencyKey != "refund-"+charger.req.IdempotencyKey {
		t.Fatalf("unexpected refund request %+v", got)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestPaymentServiceCreateChargesEveryRequest(t *testing.T) {
	profiles := &stubPaymentProfileRepository{profiles: map[int]domain.PaymentProfile{
		11: {ID: 11, CustomerID: 42, GatewayToken: "pm_123"},
	}}
	paymentsRepo := &stubPaymentRepository{createdID: 700}
	charger := newReplayCharger()
	svc, err := NewPaymentService(PaymentServiceDeps{Payments: paymentsRepo, PaymentProfiles: profiles, Charger: charger})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}

	cmd := CreatePaymentCommand{Account: testAccount(), Amount: decimal.RequireFromString("40.00"), PaymentProfileID: 11}
	first, err := svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	second, err := svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if charger.charges != 2 || paymentsRepo.createCalls != 2 {
		t.Fatalf("gateway charges=%d recorded payments=%d, want 2/2", charger.charges, paymentsRepo.createCalls)
	}
	if first.GatewayReference == second.GatewayReference {
		t.Fatalf("both payments recorded against intent %s", first.GatewayReference)
	}
}

func TestPaymentServiceRetryAfterRefundChargesAgain(t *testing.T) {
	profiles := &stubPaymentProfileRepository{profiles: map[int]domain.PaymentProfile{
		11: {ID: 11, CustomerID: 42, GatewayToken: "pm_123"},
	}}
	paymentsRepo := &stubPaymentRepository{createdID: 701, createErr: errors.New("down")}
	charger := newReplayCharger()
	svc, err := NewPaymentService(PaymentServiceDeps{Payments: paymentsRepo, PaymentProfiles: profiles, Charger: charger})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}

	cmd := CreatePaymentCommand{
		Account:          testAccount(),
		Amount:           decimal.RequireFromString("40.00"),
		PaymentProfileID: 11,
		IdempotencyKey:   "client-key",
	}
	if _, err := svc.Create(context.Background(), cmd); err == nil {
		t.Fatal("expected the first attempt to fail")
	}
	if len(charger.refunded) != 1 {
		t.Fatalf("expected the first intent to be refunded, got %v", charger.refunded)
	}

	paymentsRepo.createErr = nil
	payment, err := svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if charger.refunded[payment.GatewayReference] {
		t.Fatalf("retry recorded refunded intent %s", payment.GatewayReference)
	}
	if charger.charges != 2 {
		t.Fatalf("gateway charges = %d, want 2", charger.charges)
	}
}

func TestPaymentProfileServiceAddCard(t *testing.T) {
	profiles := &stubPaymentProfileRepository{createdID: 31}
	customers := &stubCustomerRepository{customer: domain.Customer{ID: 42, FirstName: "Ada", LastName: "Lovelace"}}
	cards := &stubCardVerifier{details: payments.PaymentMethodDetails{
		Token:    "pm_new",
		CardType: "Visa",
		Last4:    "4242",
		ExpMonth: 12,
		ExpYear:  2030,
	}}
	publisher := &capturePublisher{}
	svc, err := NewPaymentProfileService(PaymentProfileServiceDeps{
		PaymentProfiles: profiles,
		Customers:       customers,
		Cards:           cards,
		Publisher:       publisher,
	})
	if err != nil {
		t.Fatalf("new payment profile service: %v", err)
	}

	profile, err := svc.AddCard(context.Background(), AddCardCommand{Account: testAccount(), Token: " pm_new "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cards.token != "pm_new" {
		t.Fatalf("expected trimmed token, got %q", cards.token)
	}
	if profile.ID != 31 || profile.LastFour != "4242" || profile.BillingName != "Ada Lovelace" {
		t.Fatalf("unexpected profile %#v", profile)
	}
	if profiles.created.GatewayToken != "pm_new" || profiles.created.CardType != "Visa" {
		t.Fatalf("unexpected create dto %#v", profiles.created)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != domain.EventPaymentProfileAdded {
		t.Fatalf("expected one added event, got %#v", publisher.events)
	}
}

func TestPaymentProfileServiceAddCardRejectsExpired(t *testing.T) {
	profiles := &stubPaymentProfileRepository{}
	publisher := &capturePublisher{}
	svc, err := NewPaymentProfileService(PaymentProfileServiceDeps{
		PaymentProfiles: profiles,
		Customers:       &stubCustomerRepository{},
		Cards:           &stubCardVerifier{err: payments.ErrCardExpired},
		Publisher:       publisher,
	})
	if err != nil {
		t.Fatalf("new payment profile service: %v", err)
	}
	if _, err := svc.AddCard(context.Background(), AddCardCommand{Account: testAccount(), Token: "pm_old"}); !errors.Is(err, payments.ErrCardExpired) {
		t.Fatalf("expected ErrCardExpired, got %v", err)
	}
	if profiles.createCalls != 0 || len(publisher.events) != 0 {
		t.Fatalf("expected no create and no event")
	}
}

func TestPaymentProfileServiceDelete(t *testing.T) {
	tests := []struct {
		name      string
		profileID int
		autopay   int
		wantErr   error
	}{
		{name: "deletes", profileID: 11},
		{name: "autopay profile", profileID: 11, autopay: 11, wantErr: ErrProfileInUse},
		{name: "foreign profile", profileID: 12, wantErr: ErrAccountMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profiles := &stubPaymentProfileRepository{profiles: map[int]domain.PaymentProfile{
				11: {ID: 11, CustomerID: 42},
				12: {ID: 12, CustomerID: 7},
			}}
			publisher := &capturePublisher{}
			svc, err := NewPaymentProfileService(PaymentProfileServiceDeps{
				PaymentProfiles: profiles,
				Customers:       &stubCustomerRepository{customer: domain.Customer{ID: 42, AutoPayProfileID: tc.autopay}},
				Cards:           &stubCardVerifier{},
				Publisher:       publisher,
			})
			if err != nil {
				t.Fatalf("new payment profile service: %v", err)
			}

			err = svc.Delete(context.Background(), testAccount(), tc.profileID)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if profiles.deleted != 0 || len(publisher.events) != 0 {
					t.Fatalf("expected no delete and no event")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if profiles.deleted != tc.profileID {
				t.Fatalf("expected profile %d deleted, got %d", tc.profileID, profiles.deleted)
			}
			if len(publisher.events) != 1 || publisher.events[0].Type != domain.EventPaymentProfileDeleted {
				t.Fatalf("expected one deleted event, got %#v", publisher.events)
			}
		})
	}
}

func TestCustomerServiceUpdateAutopay(t *testing.T) {
	customers := &stubCustomerRepository{customer: domain.Customer{ID: 42}}
	profiles := &stubPaymentProfileRepository{profiles: map[int]domain.PaymentProfile{
		11: {ID: 11, CustomerID: 42},
		12: {ID: 12, CustomerID: 7},
	}}
	svc, err := NewCustomerService(CustomerServiceDeps{Customers: customers, PaymentProfiles: profiles})
	if err != nil {
		t.Fatalf("new customer service: %v", err)
	}

	if _, err := svc.UpdateAutopay(context.Background(), testAccount(), 11); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customers.updated.AutoPayProfileID == nil || *customers.updated.AutoPayProfileID != 11 {
		t.Fatalf("expected autopay 11, got %#v", customers.updated)
	}

	customers.updated = repositories.UpdateCustomerDTO{}
	if _, err := svc.UpdateAutopay(context.Background(), testAccount(), 12); !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("expected ErrAccountMismatch, got %v", err)
	}
	if customers.updated.AutoPayProfileID != nil {
		t.Fatalf("expected no update for foreign profile")
	}
}

type stubPaymentRepository struct {
	list        []domain.Payment
	createErr   error
	createdID   int
	created     repositories.AddPaymentDTO
	createCalls int
	page        int
	perPage     int
}

func (s *stubPaymentRepository) Office(int) repositories.PaymentRepository { return s }

func (s *stubPaymentRepository) Paginate(page, perPage int) repositories.PaymentRepository {
	s.page, s.perPage = page, perPage
	return s
}

func (s *stubPaymentRepository) Find(_ context.Context, id int) (domain.Payment, error) {
	for _, p := range s.list {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Payment{}, &repositories.EntityNotFoundError{Entity: "payment", ID: id}
}

func (s *stubPaymentRepository) Search(context.Context, repositories.SearchPaymentsDTO) ([]domain.Payment, error) {
	return s.list, nil
}

func (s *stubPaymentRepository) Create(_ context.Context, dto repositories.AddPaymentDTO) (int, error) {
	s.createCalls++
	s.created = dto
	if s.createErr != nil {
		return 0, s.createErr
	}
	return s.createdID, nil
}

type stubPaymentProfileRepository struct {
	profiles    map[int]domain.PaymentProfile
	createdID   int
	created     repositories.AddPaymentProfileDTO
	createCalls int
	deleted     int
}

func (s *stubPaymentProfileRepository) Office(int) repositories.PaymentProfileRepository { return s }

func (s *stubPaymentProfileRepository) Find(_ context.Context, id int) (domain.PaymentProfile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return domain.PaymentProfile{}, &repositories.EntityNotFoundError{Entity: "paymentProfile", ID: id}
	}
	return profile, nil
}

func (s *stubPaymentProfileRepository) Search(context.Context, repositories.SearchPaymentProfilesDTO) ([]domain.PaymentProfile, error) {
	out := make([]domain.PaymentProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubPaymentProfileRepository) Create(_ context.Context, dto repositories.AddPaymentProfileDTO) (int, error) {
	s.createCalls++
	s.created = dto
	return s.createdID, nil
}

func (s *stubPaymentProfileRepository) Delete(_ context.Context, id int) error {
	s.deleted = id
	return nil
}

type stubCharger struct {
	req       payments.ChargeRequest
	details   payments.PaymentDetails
	err       error
	refunds   []payments.RefundRequest
	refundErr error
}

func (s *stubCharger) Refund(_ context.Context, _ payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error) {
	s.refunds = append(s.refunds, req)
	return payments.PaymentDetails{IntentID: req.IntentID, Status: payments.StatusRefunded}, s.refundErr
}

func (s *stubCharger) Charge(_ context.Context, _ payments.PaymentContext, req payments.ChargeRequest) (payments.PaymentDetails, error) {
	s.req = req
	if s.err != nil {
		return payments.PaymentDetails{}, s.err
	}
	return s.details, nil
}

type stubCardVerifier struct {
	token   string
	details payments.PaymentMethodDetails
	err     error
}

func (s *stubCardVerifier) Verify(_ context.Context, token string) (payments.PaymentMethodDetails, error) {
	s.token = token
	if s.err != nil {
		return payments.PaymentMethodDetails{}, s.err
	}
	return s.details, nil
}

// replayCharger returns the stored intent when a charge key repeats, the way the gateway does.
type replayCharger struct {
	intents  map[string]payments.PaymentDetails
	refunded map[string]bool
	charges  int
}

func newReplayCharger() *replayCharger {
	return &replayCharger{intents: map[string]payments.PaymentDetails{}, refunded: map[string]bool{}}
}

func (c *replayCharger) Charge(_ context.Context, _ payments.PaymentContext, req payments.ChargeRequest) (payments.PaymentDetails, error) {
	if details, ok := c.intents[req.IdempotencyKey]; ok {
		return details, nil
	}
	c.charges++
	details := payments.PaymentDetails{IntentID: fmt.Sprintf("pi_%d", c.charges), Status: payments.StatusSucceeded}
	c.intents[req.IdempotencyKey] = details
	return details, nil
}

func (c *replayCharger) Refund(_ context.Context, _ payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error) {
	c.refunded[req.IntentID] = true
	return payments.PaymentDetails{IntentID: req.IntentID, Status: payments.StatusRefunded}, nil
}
