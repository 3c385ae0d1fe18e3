package storage

import (
	"errors"
	"strings"

	"github.com/fieldline/customer-api/internal/domain"
)

// ErrPermissionDenied is returned when an object lies outside the caller's account prefix.
var ErrPermissionDenied = errors.New("storage: permission denied")

// AuthorizeObject allows signing only objects archived under the account's own prefix.
func AuthorizeObject(account domain.Account, object string) error {
	if account.OfficeID <= 0 || account.AccountNumber <= 0 {
		return ErrPermissionDenied
	}
	if !strings.HasPrefix(object, accountPrefix(account.OfficeID, account.AccountNumber)+"/") {
		return ErrPermissionDenied
	}
	return nil
}
