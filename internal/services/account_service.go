package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/repositories"
)

// AccountServiceDeps wires identity to customer linking.
type AccountServiceDeps struct {
	Accounts  repositories.AccountRepository
	Customers repositories.CustomerRepository
	Offices   repositories.OfficeRepository
	Clock     func() time.Time
	Logger    Logger
}

type accountService struct {
	accounts  repositories.AccountRepository
	customers repositories.CustomerRepository
	offices   repositories.OfficeRepository
	now       func() time.Time
	logger    Logger
	links     singleflight.Group
}

// NewAccountService validates deps and returns the account resolver.
func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	switch {
	case deps.Accounts == nil:
		return nil, errors.New("account service: account repository is required")
	case deps.Customers == nil:
		return nil, errors.New("account service: customer repository is required")
	case deps.Offices == nil:
		return nil, errors.New("account service: office repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &accountService{
		accounts:  deps.Accounts,
		customers: deps.Customers,
		offices:   deps.Offices,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

func (s *accountService) Resolve(ctx context.Context, identity *auth.Identity) (Account, error) {
	if identity == nil || strings.TrimSpace(identity.UID) == "" {
		return Account{}, ErrAccountNotFound
	}
	account, err := s.accounts.FindByUID(ctx, identity.UID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// Link returns the existing account for identity or creates one from the customer matching
// email. Only verified emails belonging to the identity are accepted.
func (s *accountService) Link(ctx context.Context, identity *auth.Identity, email string) (Account, error) {
	if identity == nil || strings.TrimSpace(identity.UID) == "" {
		return Account{}, ErrAccountNotFound
	}
	if existing, err := s.Resolve(ctx, identity); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(identity.Email))
	}
	if email == "" || !identity.EmailVerified || !strings.EqualFold(email, identity.Email) {
		return Account{}, fmt.Errorf("%w: a verified email is required", ErrCustomerNotFound)
	}

	// Concurrent first requests of one user share a single lookup and write. The shared call
	// outlives any one caller's cancellation; each caller stops waiting on its own.
	linkCtx := context.WithoutCancel(ctx)
	results := s.links.DoChan(identity.UID, func() (any, error) {
		customer, err := s.findCustomerByEmail(linkCtx, email)
		if err != nil {
			return Account{}, err
		}
		now := s.now()
		return s.accounts.Upsert(linkCtx, Account{
			UID:           identity.UID,
			OfficeID:      customer.OfficeID,
			AccountNumber: customer.ID,
			Email:         email,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Account{}, ctx.Err()
	case res = <-results:
	}
	if res.Err != nil {
		return Account{}, res.Err
	}
	account := res.Val.(Account)
	s.logger(ctx, "accounts.linked", map[string]any{
		"uid":           identity.UID,
		"officeId":      account.OfficeID,
		"accountNumber": account.AccountNumber,
	})
	return account, nil
}

// findCustomerByEmail searches every office and prefers an active, most recently created match.
func (s *accountService) findCustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	offices, err := s.offices.All(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	var matches []domain.Customer
	for _, office := range offices {
		found, err := s.customers.Office(office.ID).SearchByEmail(ctx, email)
		if err != nil {
			if repositories.IsNotFound(err) {
				continue
			}
			return domain.Customer{}, err
		}
		for _, c := range found {
			if c.OfficeID == 0 {
				c.OfficeID = office.ID
			}
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return domain.Customer{}, ErrCustomerNotFound
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Active != matches[j].Active {
			return matches[i].Active
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0], nil
}
