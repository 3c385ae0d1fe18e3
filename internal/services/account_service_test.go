package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/repositories"
)

func TestAccountServiceResolve(t *testing.T) {
	accounts := &stubAccountRepository{accounts: map[string]domain.Account{
		"uid-1": {UID: "uid-1", OfficeID: 1, AccountNumber: 42},
	}}
	svc := newAccountService(t, accounts, &stubCustomerRepository{}, nil)

	account, err := svc.Resolve(context.Background(), &auth.Identity{UID: "uid-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.AccountNumber != 42 {
		t.Fatalf("expected account 42, got %d", account.AccountNumber)
	}

	if _, err := svc.Resolve(context.Background(), &auth.Identity{UID: "uid-2"}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), nil); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for nil identity, got %v", err)
	}
}

func TestAccountServiceLinkCreatesAccountFromEmail(t *testing.T) {
	accounts := &stubAccountRepository{accounts: map[string]domain.Account{}}
	customers := &stubCustomerRepository{byEmail: map[string][]domain.Customer{
		"ada@example.com": {
			{ID: 40, OfficeID: 1, Active: false, CreatedAt: appointmentNow.AddDate(-3, 0, 0)},
			{ID: 42, OfficeID: 1, Active: true, CreatedAt: appointmentNow.AddDate(-1, 0, 0)},
		},
	}}
	svc := newAccountService(t, accounts, customers, []domain.Office{{ID: 1}})

	identity := &auth.Identity{UID: "uid-9", Email: "Ada@Example.com", EmailVerified: true}
	account, err := svc.Link(context.Background(), identity, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.AccountNumber != 42 || account.OfficeID != 1 {
		t.Fatalf("expected active customer 42, got %#v", account)
	}
	if accounts.upserts != 1 || accounts.accounts["uid-9"].Email != "ada@example.com" {
		t.Fatalf("expected one upsert with normalised email, got %d %#v", accounts.upserts, accounts.accounts["uid-9"])
	}

	again, err := svc.Link(context.Background(), identity, "")
	if err != nil {
		t.Fatalf("unexpected error on relink: %v", err)
	}
	if again.AccountNumber != 42 || accounts.upserts != 1 {
		t.Fatalf("expected existing account reused, upserts=%d", accounts.upserts)
	}
}

func TestAccountServiceLinkRejections(t *testing.T) {
	tests := []struct {
		name     string
		identity *auth.Identity
		email    string
	}{
		{name: "unverified", identity: &auth.Identity{UID: "u", Email: "ada@example.com"}},
		{name: "other email", identity: &auth.Identity{UID: "u", Email: "ada@example.com", EmailVerified: true}, email: "bob@example.com"},
		{name: "no match", identity: &auth.Identity{UID: "u", Email: "nobody@example.com", EmailVerified: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			accounts := &stubAccountRepository{accounts: map[string]domain.Account{}}
			customers := &stubCustomerRepository{byEmail: map[string][]domain.Customer{
				"ada@example.com": {{ID: 42, OfficeID: 1, Active: true}},
				"bob@example.com": {{ID: 43, OfficeID: 1, Active: true}},
			}}
			svc := newAccountService(t, accounts, customers, []domain.Office{{ID: 1}})
			if _, err := svc.Link(context.Background(), tc.identity, tc.email); !errors.Is(err, ErrCustomerNotFound) {
				t.Fatalf("expected ErrCustomerNotFound, got %v", err)
			}
			if accounts.upserts != 0 {
				t.Fatalf("expected no upsert")
			}
		})
	}
}

func TestAccountServiceLinkSurvivesCancelledCaller(t *testing.T) {
	accounts := &syncAccountRepository{accounts: map[string]domain.Account{}}
	customers := &stubCustomerRepository{byEmail: map[string][]domain.Customer{
		"ada@example.com": {{ID: 42, OfficeID: 1, Active: true}},
	}}
	offices := &gatedOfficeRepository{
		offices: []domain.Office{{ID: 1}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, err := NewAccountService(AccountServiceDeps{
		Accounts:  accounts,
		Customers: customers,
		Offices:   offices,
		Clock:     func() time.Time { return appointmentNow },
	})
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}
	identity := &auth.Identity{UID: "uid-9", Email: "ada@example.com", EmailVerified: true}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Link(ctx, identity, "")
		first <- err
	}()
	<-offices.entered
	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to stop waiting, got %v", err)
	}

	second := make(chan error, 1)
	var linked domain.Account
	go func() {
		account, err := svc.Link(context.Background(), identity, "")
		linked = account
		second <- err
	}()
	close(offices.release)
	if err := <-second; err != nil {
		t.Fatalf("expected the shared link to complete, got %v", err)
	}
	if linked.AccountNumber != 42 {
		t.Fatalf("expected account 42, got %#v", linked)
	}
	if _, err := accounts.FindByUID(context.Background(), "uid-9"); err != nil {
		t.Fatalf("expected the account to be stored: %v", err)
	}
}

func newAccountService(t *testing.T, accounts *stubAccountRepository, customers *stubCustomerRepository, offices []domain.Office) AccountService {
	t.Helper()
	svc, err := NewAccountService(AccountServiceDeps{
		Accounts:  accounts,
		Customers: customers,
		Offices:   &stubOfficeRepository{offices: offices},
		Clock:     func() time.Time { return appointmentNow },
	})
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}
	return svc
}

type stubAccountRepository struct {
	accounts map[string]domain.Account
	upserts  int
}

func (s *stubAccountRepository) FindByUID(_ context.Context, uid string) (domain.Account, error) {
	account, ok := s.accounts[uid]
	if !ok {
		return domain.Account{}, &repositories.EntityNotFoundError{Entity: "account"}
	}
	return account, nil
}

func (s *stubAccountRepository) Upsert(_ context.Context, account domain.Account) (domain.Account, error) {
	s.upserts++
	s.accounts[account.UID] = account
	return account, nil
}

type stubOfficeRepository struct {
	offices []domain.Office
}

func (s *stubOfficeRepository) Find(_ context.Context, id int) (domain.Office, error) {
	for _, o := range s.offices {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Office{}, &repositories.EntityNotFoundError{Entity: "office", ID: id}
}

func (s *stubOfficeRepository) All(context.Context) ([]domain.Office, error) {
	return s.offices, nil
}

type syncAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func (s *syncAccountRepository) FindByUID(_ context.Context, uid string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[uid]
	if !ok {
		return domain.Account{}, &repositories.EntityNotFoundError{Entity: "account"}
	}
	return account, nil
}

func (s *syncAccountRepository) Upsert(ctx context.Context, account domain.Account) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UID] = account
	return account, nil
}

// gatedOfficeRepository holds All open until release is closed.
type gatedOfficeRepository struct {
	offices []domain.Office
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedOfficeRepository) Find(context.Context, int) (domain.Office, error) {
	return domain.Office{}, &repositories.EntityNotFoundError{Entity: "office"}
}

func (s *gatedOfficeRepository) All(ctx context.Context) ([]domain.Office, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.offices, nil
}
