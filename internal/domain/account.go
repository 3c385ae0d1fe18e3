package domain

import "time"

// Account links an authenticated user to a customer record in a field-service office.
type Account struct {
	UID           string
	OfficeID      int
	AccountNumber int
	Email         string
	Frozen        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Owns reports whether the account is the customer identified by customerID.
func (a Account) Owns(customerID int) bool {
	return a.AccountNumber != 0 && a.AccountNumber == customerID
}
