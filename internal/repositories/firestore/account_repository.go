package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfirestore "github.com/fieldline/customer-api/internal/platform/firestore"
	"github.com/fieldline/customer-api/internal/repositories"
)

const (
	accountCollection = "accounts"
	linkTxAttempts    = 3
	linkTxTimeout     = 5 * time.Second
)

// AccountRepository stores the link between a Firebase user and a field-service customer,
// keyed by the Firebase UID.
type AccountRepository struct {
	base     *pfirestore.BaseRepository[accountDocument]
	provider *pfirestore.Provider
	now      func() time.Time
}

var _ repositories.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository constructs a Firestore-backed account repository.
func NewAccountRepository(provider *pfirestore.Provider) (*AccountRepository, error) {
	if provider == nil {
		return nil, errors.New("account repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[accountDocument](provider, accountCollection)
	return &AccountRepository{base: base, provider: provider, now: time.Now}, nil
}

// FindByUID loads the account linked to uid.
func (r *AccountRepository) FindByUID(ctx context.Context, uid string) (domain.Account, error) {
	if r == nil || r.base == nil {
		return domain.Account{}, errors.New("account repository not initialised")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return domain.Account{}, errors.New("account uid is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Account{}, err
	}
	account := doc.Data.toDomain(doc.ID)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = doc.CreateTime
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = doc.UpdateTime
	}
	return account, nil
}

// Upsert writes the account. An existing row keeps its creation time and frozen flag, since
// freezing is managed by back-office tooling rather than the login flow.
func (r *AccountRepository) Upsert(ctx context.Context, account domain.Account) (domain.Account, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Account{}, errors.New("account repository not initialised")
	}
	account.UID = strings.TrimSpace(account.UID)
	if account.UID == "" {
		return domain.Account{}, errors.New("account uid is required")
	}
	if account.OfficeID <= 0 || account.AccountNumber <= 0 {
		return domain.Account{}, errors.New("account office and number are required")
	}

	now := r.now().UTC()
	ref, err := r.base.Ref(ctx, account.UID)
	if err != nil {
		return domain.Account{}, err
	}
	var saved accountDocument
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		existing, found, err := r.base.GetTx(tx, ref)
		if err != nil {
			return err
		}
		saved = fromDomainAccount(account, now)
		if found {
			if !existing.Data.CreatedAt.IsZero() {
				saved.CreatedAt = existing.Data.CreatedAt
			}
			saved.Frozen = existing.Data.Frozen
		}
		return tx.Set(ref, saved)
	}, pfirestore.WithTxAttempts(linkTxAttempts), pfirestore.WithTxTimeout(linkTxTimeout))
	if err != nil {
		return domain.Account{}, pfirestore.WrapError(accountCollection+".upsert", err)
	}
	return saved.toDomain(account.UID), nil
}

type accountDocument struct {
	OfficeID      int       `firestore:"officeId"`
	AccountNumber int       `firestore:"accountNumber"`
	Email         string    `firestore:"email"`
	Frozen        bool      `firestore:"frozen"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func (d accountDocument) toDomain(uid string) domain.Account {
	return domain.Account{
		UID:           uid,
		OfficeID:      d.OfficeID,
		AccountNumber: d.AccountNumber,
		Email:         strings.TrimSpace(d.Email),
		Frozen:        d.Frozen,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func fromDomainAccount(account domain.Account, now time.Time) accountDocument {
	doc := accountDocument{
		OfficeID:      account.OfficeID,
		AccountNumber: account.AccountNumber,
		Email:         strings.ToLower(strings.TrimSpace(account.Email)),
		Frozen:        account.Frozen,
		CreatedAt:     account.CreatedAt,
		UpdatedAt:     now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}
