//go:build integration

package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	pconfig "github.com/fieldline/customer-api/internal/platform/config"
	pfirestore "github.com/fieldline/customer-api/internal/platform/firestore"
	"github.com/fieldline/customer-api/internal/repositories"
)

func newEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    fmt.Sprintf("accounts-test-%d", time.Now().UnixNano()),
		EmulatorHost: host,
	})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func TestAccountRepositoryIntegration(t *testing.T) {
	provider := newEmulatorProvider(t)
	repo, err := NewAccountRepository(provider)
	if err != nil {
		t.Fatalf("new account repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := repo.FindByUID(ctx, "uid-1"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found before upsert, got %v", err)
	}

	first, err := repo.Upsert(ctx, domain.Account{UID: "uid-1", OfficeID: 3, AccountNumber: 2874, Email: " Jane@Example.com "})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.Email != "jane@example.com" {
		t.Fatalf("expected normalised email, got %q", first.Email)
	}

	// freeze out of band, the next login must not clear it
	if err := pfirestore.NewBaseRepository[accountDocument](provider, accountCollection).
		Set(ctx, "uid-1", accountDocument{OfficeID: 3, AccountNumber: 2874, Frozen: true, CreatedAt: first.CreatedAt}); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	second, err := repo.Upsert(ctx, domain.Account{UID: "uid-1", OfficeID: 3, AccountNumber: 2874, Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !second.Frozen {
		t.Fatalf("expected frozen flag to survive upsert")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected created time preserved, got %s want %s", second.CreatedAt, first.CreatedAt)
	}

	found, err := repo.FindByUID(ctx, "uid-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.OfficeID != 3 || found.AccountNumber != 2874 || !found.Frozen {
		t.Fatalf("unexpected account %+v", found)
	}
}
