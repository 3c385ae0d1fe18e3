package fieldservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04:05"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var nullDateTimes = map[string]struct{}{
	"":                    {},
	"null":                {},
	"0000-00-00":          {},
	"0000-00-00 00:00:00": {},
}

// Int decodes identifiers and counters the remote sends either as numbers or numeric strings.
type Int int

func (i *Int) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return fmt.Errorf("fieldservice: invalid integer %q", raw)
		}
		v = int(f)
	}
	*i = Int(v)
	return nil
}

func (i Int) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(i))), nil
}

// Flag decodes "0"/"1" style booleans.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	switch raw {
	case "1", "true", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"1"`), nil
	}
	return []byte(`"0"`), nil
}

// IntList decodes either a JSON array of ids or a comma separated string.
type IntList []int

func (l *IntList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []Int
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		out := make([]int, 0, len(items))
		for _, item := range items {
			out = append(out, int(item))
		}
		*l = out
		return nil
	}
	raw := strings.Trim(string(trimmed), `"`)
	if raw == "" || raw == "null" {
		*l = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("fieldservice: invalid id list %q", raw)
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// DateTime decodes "2006-01-02 15:04:05" timestamps; zero dates decode to nil.
type DateTime struct {
	time.Time
	Valid bool
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if _, ok := nullDateTimes[raw]; ok {
		*d = DateTime{}
		return nil
	}
	layout := dateTimeLayout
	if len(raw) == len(dateLayout) {
		layout = dateLayout
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return fmt.Errorf("fieldservice: invalid datetime %q", raw)
	}
	*d = DateTime{Time: t, Valid: true}
	return nil
}

// Ptr returns nil for null timestamps.
func (d DateTime) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// CombineDateClock joins a "2006-01-02" date and a "15:04:05" clock in loc.
func CombineDateClock(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = "00:00:00"
	}
	return time.ParseInLocation(dateTimeLayout, strings.TrimSpace(date)+" "+clock, loc)
}

// FormatDate renders t as the remote date format.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// FormatClock renders t as the remote clock format.
func FormatClock(t time.Time) string { return t.Format(clockLayout) }

// FormatDateTime renders t as the remote timestamp format.
func FormatDateTime(t time.Time) string { return t.Format(dateTimeLayout) }

// Appointment status codes used by the remote.
const (
	AppointmentStatusPending     = 0
	AppointmentStatusCompleted   = 1
	AppointmentStatusNoShow      = 2
	AppointmentStatusRescheduled = -2
	AppointmentStatusCancelled   = -1
)

// Payment profile method codes.
const (
	PaymentMethodCard = 1
	PaymentMethodACH  = 2
)

type Appointment struct {
	AppointmentID  Int      `json:"appointmentID"`
	OfficeID       Int      `json:"officeID"`
	CustomerID     Int      `json:"customerID"`
	SubscriptionID Int      `json:"subscriptionID"`
	Type           Int      `json:"type"`
	SpotID         Int      `json:"spotID"`
	RouteID        Int      `json:"routeID"`
	EmployeeID     Int      `json:"employeeID"`
	Status         Int      `json:"status"`
	IsInitial      Flag     `json:"isInitial"`
	TimeWindow     string   `json:"timeWindow"`
	Date           string   `json:"date"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Duration       Int      `json:"duration"`
	Notes          string   `json:"notes"`
	DateAdded      DateTime `json:"dateAdded"`
	DateCancelled  DateTime `json:"dateCancelled"`
	DateCompleted  DateTime `json:"dateCompleted"`
}

type Customer struct {
	CustomerID              Int             `json:"customerID"`
	OfficeID                Int             `json:"officeID"`
	FirstName               string          `json:"fname"`
	LastName                string          `json:"lname"`
	CompanyName             string          `json:"companyName"`
	Email                   string          `json:"email"`
	Phone                   string          `json:"phone1"`
	Address                 string          `json:"address"`
	City                    string          `json:"city"`
	State                   string          `json:"state"`
	Zip                     string          `json:"zip"`
	Status                  Int             `json:"status"`
	Balance                 decimal.Decimal `json:"balance"`
	AutoPayPaymentProfileID Int             `json:"autoPayPaymentProfileID"`
	SquareFeet              Int             `json:"squareFeet"`
	PaperlessBilling        Flag            `json:"paperlessBilling"`
	DateAdded               DateTime        `json:"dateAdded"`
}

type Subscription struct {
	SubscriptionID       Int             `json:"subscriptionID"`
	OfficeID             Int             `json:"officeID"`
	CustomerID           Int             `json:"customerID"`
	ServiceID            Int             `json:"serviceID"`
	Active               Flag            `json:"active"`
	Frequency            Int             `json:"frequency"`
	RecurringCharge      decimal.Decimal `json:"recurringCharge"`
	ContractValue        decimal.Decimal `json:"contractValue"`
	RecurringTicketID    Int             `json:"recurringTicketID"`
	InitialAppointmentID Int             `json:"initialAppointmentID"`
	InitialStatus        Int             `json:"initialStatus"`
	LastCompleted        DateTime        `json:"lastCompleted"`
	DateAdded            DateTime        `json:"dateAdded"`
}

type ServiceType struct {
	TypeID         Int             `json:"typeID"`
	OfficeID       Int             `json:"officeID"`
	Description    string          `json:"description"`
	DefaultLength  Int             `json:"defaultLength"`
	Frequency      Int             `json:"frequency"`
	Initial        Flag            `json:"initial"`
	Reservice      Flag            `json:"reservice"`
	RegularService Flag            `json:"regularService"`
	DefaultCharge  decimal.Decimal `json:"defaultCharge"`
}

type Spot struct {
	SpotID         Int     `json:"spotID"`
	OfficeID       Int     `json:"officeID"`
	RouteID        Int     `json:"routeID"`
	Date           string  `json:"date"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Open           Flag    `json:"open"`
	Reserved       Flag    `json:"reserved"`
	AppointmentIDs IntList `json:"appointmentIDs"`
}

type Employee struct {
	EmployeeID Int    `json:"employeeID"`
	OfficeID   Int    `json:"officeID"`
	FirstName  string `json:"fname"`
	LastName   string `json:"lname"`
	Type       string `json:"type"`
	Active     Flag   `json:"active"`
}

type Payment struct {
	PaymentID        Int             `json:"paymentID"`
	OfficeID         Int             `json:"officeID"`
	CustomerID       Int             `json:"customerID"`
	PaymentProfileID Int             `json:"paymentProfileID"`
	Amount           decimal.Decimal `json:"amount"`
	AppliedAmount    decimal.Decimal `json:"appliedAmount"`
	PaymentMethod    string          `json:"paymentMethod"`
	Status           Int             `json:"status"`
	TransactionID    string          `json:"transactionID"`
	Date             DateTime        `json:"date"`
}

type PaymentProfile struct {
	PaymentProfileID Int      `json:"paymentProfileID"`
	OfficeID         Int      `json:"officeID"`
	CustomerID       Int      `json:"customerID"`
	PaymentMethod    Int      `json:"paymentMethod"`
	Description      string   `json:"description"`
	BillingName      string   `json:"billingName"`
	CardType         string   `json:"cardType"`
	LastFour         string   `json:"lastFour"`
	ExpMonth         Int      `json:"expMonth"`
	ExpYear          Int      `json:"expYear"`
	MerchantID       string   `json:"merchantID"`
	Status           Int      `json:"status"`
	DateCreated      DateTime `json:"dateCreated"`
}

type Document struct {
	DocumentID    Int      `json:"documentID"`
	OfficeID      Int      `json:"officeID"`
	CustomerID    Int      `json:"customerID"`
	AppointmentID Int      `json:"appointmentID"`
	Description   string   `json:"description"`
	DocumentLink  string   `json:"documentLink"`
	ShowCustomer  Flag     `json:"showCustomer"`
	DateAdded     DateTime `json:"dateAdded"`
}

type Office struct {
	OfficeID   Int    `json:"officeID"`
	OfficeName string `json:"officeName"`
	Region     string `json:"region"`
	TimeZone   string `json:"timeZone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
}

type Ticket struct {
	TicketID       Int             `json:"ticketID"`
	OfficeID       Int             `json:"officeID"`
	CustomerID     Int             `json:"customerID"`
	SubscriptionID Int             `json:"subscriptionID"`
	Total          decimal.Decimal `json:"total"`
	Balance        decimal.Decimal `json:"balance"`
	Items          []TicketItem    `json:"items"`
	DateCreated    DateTime        `json:"dateCreated"`
}

type TicketItem struct {
	ProductID   Int             `json:"productID"`
	Description string          `json:"description"`
	Quantity    Int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

type Contract struct {
	ContractID      Int      `json:"contractID"`
	OfficeID        Int      `json:"officeID"`
	CustomerID      Int      `json:"customerID"`
	SubscriptionIDs IntList  `json:"subscriptionIDs"`
	Description     string   `json:"description"`
	DocumentLink    string   `json:"documentLink"`
	DateSigned      DateTime `json:"dateSigned"`
	DateAdded       DateTime `json:"dateAdded"`
}

type Form struct {
	FormID          Int      `json:"formID"`
	OfficeID        Int      `json:"officeID"`
	CustomerID      Int      `json:"customerID"`
	FormTemplateID  Int      `json:"formTemplateID"`
	FormDescription string   `json:"formDescription"`
	DocumentLink    string   `json:"documentLink"`
	DateSigned      DateTime `json:"dateSigned"`
	DateAdded       DateTime `json:"dateAdded"`
}
