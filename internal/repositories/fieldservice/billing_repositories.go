package fieldservice

import (
	"context"
	"errors"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

// PaymentRepository implements repositories.PaymentRepository.
type PaymentRepository struct {
	client *pfieldservice.Client
	opts   options
	scope  scope
}

var _ repositories.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository(client *pfieldservice.Client, opts ...Option) (*PaymentRepository, error) {
	if client == nil {
		return nil, errors.New("payment repository: field-service client is required")
	}
	return &PaymentRepository{client: client, opts: buildOptions(opts)}, nil
}

func (r *PaymentRepository) Office(officeID int) repositories.PaymentRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *PaymentRepository) Paginate(page, perPage int) repositories.PaymentRepository {
	clone := *r
	clone.scope = r.scope.withPage(page, perPage)
	return &clone
}

func (r *PaymentRepository) Find(ctx context.Context, id int) (domain.Payment, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Payment{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Payment](ctx, r.client, pfieldservice.ResourcePayment, r.scope.officeID, id)
	if err != nil {
		return domain.Payment{}, translate("payment", "find", id, err)
	}
	return toPayment(wire), nil
}

func (r *PaymentRepository) Search(ctx context.Context, dto repositories.SearchPaymentsDTO) ([]domain.Payment, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	params := r.scope.params().SetInts("customerIDs", []int{dto.CustomerID})
	if dto.DateStart != nil {
		params = params.SetDateFrom("date", *dto.DateStart)
	}
	wire, err := pfieldservice.Search[pfieldservice.Payment](ctx, r.client, pfieldservice.ResourcePayment, r.scope.officeID, params)
	if err != nil {
		return nil, translate("payment", "search", 0, err)
	}
	return mapAll(wire, toPayment), nil
}

type paymentPayload struct {
	CustomerID       int    `json:"customerID"`
	PaymentProfileID int    `json:"paymentProfileID,omitempty"`
	Amount           string `json:"amount"`
	PaymentMethod    int    `json:"paymentMethod"`
	TransactionID    string `json:"transactionID"`
	Date             string `json:"date"`
}

func (r *PaymentRepository) Create(ctx context.Context, dto repositories.AddPaymentDTO) (int, error) {
	if err := r.scope.requireOffice(); err != nil {
		return 0, err
	}
	if err := dto.Validate(); err != nil {
		return 0, err
	}
	payload := paymentPayload{
		CustomerID:       dto.CustomerID,
		PaymentProfileID: dto.PaymentProfileID,
		Amount:           dto.Amount.StringFixed(2),
		PaymentMethod:    paymentMethodCode(dto.Method),
		TransactionID:    dto.GatewayReference,
		Date:             pfieldservice.FormatDateTime(r.opts.now().In(r.opts.loc)),
	}
	id, err := r.client.Create(ctx, pfieldservice.ResourcePayment, r.scope.officeID, payload)
	if err != nil {
		return 0, translate("payment", "create", 0, err)
	}
	return id, nil
}

// PaymentProfileRepository implements repositories.PaymentProfileRepository.
type PaymentProfileRepository struct {
	client *pfieldservice.Client
	scope  scope
}

var _ repositories.PaymentProfileRepository = (*PaymentProfileRepository)(nil)

func NewPaymentProfileRepository(client *pfieldservice.Client) (*PaymentProfileRepository, error) {
	if client == nil {
		return nil, errors.New("payment profile repository: field-service client is required")
	}
	return &PaymentProfileRepository{client: client}, nil
}

func (r *PaymentProfileRepository) Office(officeID int) repositories.PaymentProfileRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *PaymentProfileRepository) Find(ctx context.Context, id int) (domain.PaymentProfile, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.PaymentProfile{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.PaymentProfile](ctx, r.client, pfieldservice.ResourcePaymentProfile, r.scope.officeID, id)
	if err != nil {
		return domain.PaymentProfile{}, translate("payment profile", "find", id, err)
	}
	return toPaymentProfile(wire), nil
}

func (r *PaymentProfileRepository) Search(ctx context.Context, dto repositories.SearchPaymentProfilesDTO) ([]domain.PaymentProfile, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams().SetInts("customerIDs", []int{dto.CustomerID})
	if dto.ActiveOnly {
		params = params.SetInt("status", 1)
	}
	wire, err := pfieldservice.Search[pfieldservice.PaymentProfile](ctx, r.client, pfieldservice.ResourcePaymentProfile, r.scope.officeID, params)
	if err != nil {
		return nil, translate("payment profile", "search", 0, err)
	}
	return mapAll(wire, toPaymentProfile), nil
}

type paymentProfilePayload struct {
	CustomerID    int    `json:"customerID"`
	PaymentMethod int    `json:"paymentMethod"`
	BillingName   string `json:"billingName,omitempty"`
	CardType      string `json:"cardType,omitempty"`
	LastFour      string `json:"lastFour,omitempty"`
	ExpMonth      int    `json:"expMonth,omitempty"`
	ExpYear       int    `json:"expYear,omitempty"`
	MerchantID    string `json:"merchantID"`
	Description   string `json:"description,omitempty"`
}

func (r *PaymentProfileRepository) Create(ctx context.Context, dto repositories.AddPaymentProfileDTO) (int, error) {
	if err := r.scope.requireOffice(); err != nil {
		return 0, err
	}
	if err := dto.Validate(); err != nil {
		return 0, err
	}
	payload := paymentProfilePayload{
		CustomerID:    dto.CustomerID,
		PaymentMethod: paymentMethodCode(dto.Method),
		BillingName:   dto.BillingName,
		CardType:      dto.CardType,
		LastFour:      dto.LastFour,
		ExpMonth:      dto.ExpMonth,
		ExpYear:       dto.ExpYear,
		MerchantID:    dto.GatewayToken,
		Description:   dto.Description,
	}
	id, err := r.client.Create(ctx, pfieldservice.ResourcePaymentProfile, r.scope.officeID, payload)
	if err != nil {
		return 0, translate("payment profile", "create", 0, err)
	}
	return id, nil
}

func (r *PaymentProfileRepository) Delete(ctx context.Context, id int) error {
	if err := r.scope.requireOffice(); err != nil {
		return err
	}
	if err := r.client.Delete(ctx, pfieldservice.ResourcePaymentProfile, r.scope.officeID, id); err != nil {
		return translate("payment profile", "delete", id, err)
	}
	return nil
}

// TicketRepository implements repositories.TicketRepository.
type TicketRepository struct {
	client *pfieldservice.Client
	scope  scope
}

var _ repositories.TicketRepository = (*TicketRepository)(nil)

func NewTicketRepository(client *pfieldservice.Client) (*TicketRepository, error) {
	if client == nil {
		return nil, errors.New("ticket repository: field-service client is required")
	}
	return &TicketRepository{client: client}, nil
}

func (r *TicketRepository) Office(officeID int) repositories.TicketRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *TicketRepository) Find(ctx context.Context, id int) (domain.Ticket, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Ticket{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Ticket](ctx, r.client, pfieldservice.ResourceTicket, r.scope.officeID, id)
	if err != nil {
		return domain.Ticket{}, translate("ticket", "find", id, err)
	}
	return toTicket(wire), nil
}

func (r *TicketRepository) Search(ctx context.Context, dto repositories.SearchTicketsDTO) ([]domain.Ticket, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams()
	if dto.CustomerID > 0 {
		params = params.SetInts("customerIDs", []int{dto.CustomerID})
	}
	if dto.SubscriptionID > 0 {
		params = params.SetInts("subscriptionIDs", []int{dto.SubscriptionID})
	}
	if dto.DateStart != nil {
		params = params.SetDateFrom("dateCreated", *dto.DateStart)
	}
	wire, err := pfieldservice.Search[pfieldservice.Ticket](ctx, r.client, pfieldservice.ResourceTicket, r.scope.officeID, params)
	if err != nil {
		return nil, translate("ticket", "search", 0, err)
	}
	return mapAll(wire, toTicket), nil
}
