package fieldservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

func TestPaymentRepositoryCreateSendsPayload(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handle("POST /payment", `{"success":true,"result":"900"}`)
	loc := time.FixedZone("EST", -5*3600)
	now := func() time.Time { return time.Date(2025, 5, 6, 15, 30, 0, 0, time.UTC) }
	repo, err := NewPaymentRepository(client, WithLocation(loc), WithClock(now))
	require.NoError(t, err)

	id, err := repo.Office(1).Create(context.Background(), repositories.AddPaymentDTO{
		CustomerID:       55,
		PaymentProfileID: 11,
		Amount:           decimal.RequireFromString("125.5"),
		Method:           domain.PaymentMethodCard,
		GatewayReference: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, 900, id)

	var body map[string]any
	require.NoError(t, json.Unmarshal(remote.bodies["POST /payment"], &body))
	assert.Equal(t, "125.50", body["amount"])
	assert.Equal(t, float64(11), body["paymentProfileID"])
	assert.Equal(t, float64(1), body["paymentMethod"])
	assert.Equal(t, "pi_1", body["transactionID"])
	assert.Equal(t, "2025-05-06 10:30:00", body["date"])
}

func TestPaymentRepositoryCreateRejectsInvalidDTO(t *testing.T) {
	remote, client := newFakeRemote(t)
	repo, _ := NewPaymentRepository(client)

	_, err := repo.Office(1).Create(context.Background(), repositories.AddPaymentDTO{
		CustomerID:       55,
		Amount:           decimal.Zero,
		GatewayReference: "pi_1",
	})
	require.ErrorIs(t, err, repositories.ErrInvalidDTO)
	assert.Zero(t, remote.count("POST /payment"))
}

func TestPaymentRepositorySearchPaginates(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("GET /payment/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "[55]", q.Get("customerIDs"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "10", q.Get("offset"))
		_, _ = w.Write([]byte(`{"success":true,"resolvedObjects":[{"paymentID":"3","customerID":"55","amount":"20.00","status":"1","transactionID":" pi_3 ","date":"2025-05-01 09:00:00"}]}`))
	})
	repo, _ := NewPaymentRepository(client)

	items, err := repo.Office(1).Paginate(2, 10).Search(context.Background(), repositories.SearchPaymentsDTO{CustomerID: 55})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.PaymentStatusSuccessful, items[0].Status)
	assert.Equal(t, "pi_3", items[0].GatewayReference)
	assert.True(t, items[0].Amount.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, 1, remote.count("GET /payment/search"))
}

func TestPaymentRepositoryCreateTranslatesServerError(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("POST /payment", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	repo, _ := NewPaymentRepository(client)

	_, err := repo.Office(1).Create(context.Background(), repositories.AddPaymentDTO{
		CustomerID:       55,
		Amount:           decimal.RequireFromString("10"),
		GatewayReference: "pi_1",
	})
	var internal *repositories.InternalServerError
	require.True(t, errors.As(err, &internal), "got %T %v", err, err)
	assert.Equal(t, "create", internal.Op)
	assert.Equal(t, "payment", internal.Entity)
}

func TestPaymentProfileRepositoryCreateSendsPayload(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handle("POST /paymentProfile", `{"success":true,"result":"61"}`)
	repo, err := NewPaymentProfileRepository(client)
	require.NoError(t, err)

	id, err := repo.Office(1).Create(context.Background(), repositories.AddPaymentProfileDTO{
		CustomerID:   55,
		Method:       domain.PaymentMethodCard,
		BillingName:  "Jane Doe",
		CardType:     "visa",
		LastFour:     "4242",
		ExpMonth:     9,
		ExpYear:      2030,
		GatewayToken: "pm_123",
	})
	require.NoError(t, err)
	assert.Equal(t, 61, id)

	var body map[string]any
	require.NoError(t, json.Unmarshal(remote.bodies["POST /paymentProfile"], &body))
	assert.Equal(t, "pm_123", body["merchantID"])
	assert.Equal(t, "4242", body["lastFour"])
	assert.Equal(t, float64(9), body["expMonth"])
	assert.Equal(t, float64(1), body["paymentMethod"])
}

func TestPaymentProfileRepositoryCreateRejectsExpiredCard(t *testing.T) {
	remote, client := newFakeRemote(t)
	repo, _ := NewPaymentProfileRepository(client)

	_, err := repo.Office(1).Create(context.Background(), repositories.AddPaymentProfileDTO{
		CustomerID:   55,
		Method:       domain.PaymentMethodCard,
		ExpMonth:     13,
		ExpYear:      2030,
		GatewayToken: "pm_123",
	})
	require.ErrorIs(t, err, repositories.ErrInvalidDTO)
	assert.Zero(t, remote.count("POST /paymentProfile"))
}

func TestPaymentProfileRepositoryDelete(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handle("DELETE /paymentProfile/61", `{"success":true}`)
	remote.handle("DELETE /paymentProfile/62", `{"success":false,"errorMessage":"Payment profile not found"}`)
	repo, _ := NewPaymentProfileRepository(client)

	require.NoError(t, repo.Office(1).Delete(context.Background(), 61))
	assert.Equal(t, 1, remote.count("DELETE /paymentProfile/61"))

	err := repo.Office(1).Delete(context.Background(), 62)
	assert.True(t, repositories.IsNotFound(err), "got %T %v", err, err)

	assert.ErrorIs(t, repo.Delete(context.Background(), 61), repositories.ErrOfficeNotScoped)
}

func TestPaymentProfileRepositoryFindMapsACH(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handle("GET /paymentProfile/61", `{"success":true,"paymentProfile":{"paymentProfileID":"61","customerID":"55","paymentMethod":"2","merchantID":" ba_1 ","status":"1"}}`)
	repo, _ := NewPaymentProfileRepository(client)

	profile, err := repo.Office(1).Find(context.Background(), 61)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodACH, profile.Method)
	assert.Equal(t, "ba_1", profile.GatewayToken)
	assert.True(t, profile.Active)
}
