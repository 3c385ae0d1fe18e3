package domain

// Check reports whether an operation is permitted, with the reason when it is not.
type Check struct {
	Allowed bool
	Reason  string
}

// Allow returns a permitting check.
func Allow() Check {
	return Check{Allowed: true}
}

// Deny returns a refusing check carrying the reason shown to callers.
func Deny(reason string) Check {
	return Check{Allowed: false, Reason: reason}
}

// Denied is the negation of Allowed.
func (c Check) Denied() bool {
	return !c.Allowed
}
