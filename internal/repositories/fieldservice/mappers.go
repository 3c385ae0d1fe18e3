package fieldservice

import (
	"strings"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/platform/textutil"
)

var appointmentStatuses = map[int]domain.AppointmentStatus{
	pfieldservice.AppointmentStatusPending:     domain.AppointmentStatusPending,
	pfieldservice.AppointmentStatusCompleted:   domain.AppointmentStatusCompleted,
	pfieldservice.AppointmentStatusNoShow:      domain.AppointmentStatusNoShow,
	pfieldservice.AppointmentStatusRescheduled: domain.AppointmentStatusRescheduled,
	pfieldservice.AppointmentStatusCancelled:   domain.AppointmentStatusCancelled,
}

func appointmentStatusCode(status domain.AppointmentStatus) (int, bool) {
	for code, s := range appointmentStatuses {
		if s == status {
			return code, true
		}
	}
	return 0, false
}

var paymentStatuses = map[int]domain.PaymentStatus{
	0: domain.PaymentStatusPending,
	1: domain.PaymentStatusSuccessful,
	2: domain.PaymentStatusDeclined,
	3: domain.PaymentStatusVoided,
}

func toAppointment(w pfieldservice.Appointment, loc *time.Location) domain.Appointment {
	start, _ := pfieldservice.CombineDateClock(w.Date, w.Start, loc)
	end, _ := pfieldservice.CombineDateClock(w.Date, w.End, loc)
	duration := time.Duration(w.Duration) * time.Minute
	if duration == 0 && end.After(start) {
		duration = end.Sub(start)
	}
	status, ok := appointmentStatuses[int(w.Status)]
	if !ok {
		status = domain.AppointmentStatusPending
	}
	window := domain.Window(strings.ToUpper(strings.TrimSpace(w.TimeWindow)))
	if window == "" {
		window = domain.WindowAny
	}
	return domain.Appointment{
		ID:             int(w.AppointmentID),
		OfficeID:       int(w.OfficeID),
		CustomerID:     int(w.CustomerID),
		SubscriptionID: int(w.SubscriptionID),
		ServiceTypeID:  int(w.Type),
		SpotID:         int(w.SpotID),
		RouteID:        int(w.RouteID),
		EmployeeID:     int(w.EmployeeID),
		Status:         status,
		Initial:        bool(w.IsInitial),
		Window:         window,
		Start:          start,
		End:            end,
		Duration:       duration,
		Notes:          w.Notes,
		CreatedAt:      w.DateAdded.Time,
		CancelledAt:    w.DateCancelled.Ptr(),
		CompletedAt:    w.DateCompleted.Ptr(),
	}
}

func toCustomer(w pfieldservice.Customer) domain.Customer {
	return domain.Customer{
		ID:          int(w.CustomerID),
		OfficeID:    int(w.OfficeID),
		FirstName:   textutil.DisplayName(w.FirstName),
		LastName:    textutil.DisplayName(w.LastName),
		CompanyName: strings.TrimSpace(w.CompanyName),
		Email:       strings.ToLower(strings.TrimSpace(w.Email)),
		Phone:       strings.TrimSpace(w.Phone),
		Address: domain.Address{
			Street: strings.TrimSpace(w.Address),
			City:   strings.TrimSpace(w.City),
			State:  strings.TrimSpace(w.State),
			Zip:    strings.TrimSpace(w.Zip),
		},
		Active:           w.Status == 1,
		Balance:          w.Balance,
		AutoPayProfileID: int(w.AutoPayPaymentProfileID),
		SquareFeet:       int(w.SquareFeet),
		PaperlessBilling: bool(w.PaperlessBilling),
		CreatedAt:        w.DateAdded.Time,
	}
}

func toSubscription(w pfieldservice.Subscription) domain.Subscription {
	return domain.Subscription{
		ID:                   int(w.SubscriptionID),
		OfficeID:             int(w.OfficeID),
		CustomerID:           int(w.CustomerID),
		ServiceTypeID:        int(w.ServiceID),
		Active:               bool(w.Active),
		FrequencyDays:        int(w.Frequency),
		RecurringCharge:      w.RecurringCharge,
		ContractValue:        w.ContractValue,
		RecurringTicketID:    int(w.RecurringTicketID),
		InitialAppointmentID: int(w.InitialAppointmentID),
		InitialCompleted:     w.InitialStatus == pfieldservice.AppointmentStatusCompleted,
		LastCompletedService: w.LastCompleted.Ptr(),
		CreatedAt:            w.DateAdded.Time,
	}
}

func toServiceType(w pfieldservice.ServiceType) domain.ServiceType {
	return domain.ServiceType{
		ID:              int(w.TypeID),
		OfficeID:        int(w.OfficeID),
		Description:     strings.TrimSpace(w.Description),
		DefaultDuration: time.Duration(w.DefaultLength) * time.Minute,
		FrequencyDays:   int(w.Frequency),
		Initial:         bool(w.Initial),
		Reservice:       bool(w.Reservice),
		Recurring:       bool(w.RegularService),
		DefaultCharge:   w.DefaultCharge,
	}
}

func toSpot(w pfieldservice.Spot, loc *time.Location) domain.Spot {
	start, _ := pfieldservice.CombineDateClock(w.Date, w.Start, loc)
	end, _ := pfieldservice.CombineDateClock(w.Date, w.End, loc)
	return domain.Spot{
		ID:             int(w.SpotID),
		OfficeID:       int(w.OfficeID),
		RouteID:        int(w.RouteID),
		Start:          start,
		End:            end,
		Open:           bool(w.Open),
		Reserved:       bool(w.Reserved),
		AppointmentIDs: []int(w.AppointmentIDs),
	}
}

func toEmployee(w pfieldservice.Employee) domain.Employee {
	return domain.Employee{
		ID:        int(w.EmployeeID),
		OfficeID:  int(w.OfficeID),
		FirstName: textutil.DisplayName(w.FirstName),
		LastName:  textutil.DisplayName(w.LastName),
		Type:      strings.TrimSpace(w.Type),
		Active:    bool(w.Active),
	}
}

func toPayment(w pfieldservice.Payment) domain.Payment {
	status, ok := paymentStatuses[int(w.Status)]
	if !ok {
		status = domain.PaymentStatusPending
	}
	return domain.Payment{
		ID:               int(w.PaymentID),
		OfficeID:         int(w.OfficeID),
		CustomerID:       int(w.CustomerID),
		PaymentProfileID: int(w.PaymentProfileID),
		Amount:           w.Amount,
		AppliedAmount:    w.AppliedAmount,
		Method:           strings.TrimSpace(w.PaymentMethod),
		Status:           status,
		GatewayReference: strings.TrimSpace(w.TransactionID),
		Date:             w.Date.Time,
	}
}

func toPaymentProfile(w pfieldservice.PaymentProfile) domain.PaymentProfile {
	method := domain.PaymentMethodCard
	if w.PaymentMethod == pfieldservice.PaymentMethodACH {
		method = domain.PaymentMethodACH
	}
	return domain.PaymentProfile{
		ID:           int(w.PaymentProfileID),
		OfficeID:     int(w.OfficeID),
		CustomerID:   int(w.CustomerID),
		Method:       method,
		Description:  strings.TrimSpace(w.Description),
		BillingName:  strings.TrimSpace(w.BillingName),
		CardType:     strings.TrimSpace(w.CardType),
		LastFour:     strings.TrimSpace(w.LastFour),
		ExpMonth:     int(w.ExpMonth),
		ExpYear:      int(w.ExpYear),
		GatewayToken: strings.TrimSpace(w.MerchantID),
		Active:       w.Status == 1,
		CreatedAt:    w.DateCreated.Time,
	}
}

func paymentMethodCode(method domain.PaymentMethod) int {
	if method == domain.PaymentMethodACH {
		return pfieldservice.PaymentMethodACH
	}
	return pfieldservice.PaymentMethodCard
}

func toDocument(w pfieldservice.Document) domain.Document {
	return domain.Document{
		ID:            int(w.DocumentID),
		OfficeID:      int(w.OfficeID),
		CustomerID:    int(w.CustomerID),
		AppointmentID: int(w.AppointmentID),
		Description:   strings.TrimSpace(w.Description),
		URL:           strings.TrimSpace(w.DocumentLink),
		Visible:       bool(w.ShowCustomer),
		CreatedAt:     w.DateAdded.Time,
	}
}

func toOffice(w pfieldservice.Office) domain.Office {
	return domain.Office{
		ID:       int(w.OfficeID),
		Name:     strings.TrimSpace(w.OfficeName),
		Region:   strings.TrimSpace(w.Region),
		TimeZone: strings.TrimSpace(w.TimeZone),
		Address: domain.Address{
			Street: strings.TrimSpace(w.Address),
			City:   strings.TrimSpace(w.City),
			State:  strings.TrimSpace(w.State),
			Zip:    strings.TrimSpace(w.Zip),
		},
	}
}

func toTicket(w pfieldservice.Ticket) domain.Ticket {
	items := make([]domain.TicketItem, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, domain.TicketItem{
			ProductID:   int(item.ProductID),
			Description: strings.TrimSpace(item.Description),
			Quantity:    int(item.Quantity),
			Amount:      item.Amount,
		})
	}
	return domain.Ticket{
		ID:             int(w.TicketID),
		OfficeID:       int(w.OfficeID),
		CustomerID:     int(w.CustomerID),
		SubscriptionID: int(w.SubscriptionID),
		Total:          w.Total,
		Balance:        w.Balance,
		Items:          items,
		CreatedAt:      w.DateCreated.Time,
	}
}

func toContract(w pfieldservice.Contract) domain.Contract {
	return domain.Contract{
		ID:              int(w.ContractID),
		OfficeID:        int(w.OfficeID),
		CustomerID:      int(w.CustomerID),
		SubscriptionIDs: []int(w.SubscriptionIDs),
		Description:     strings.TrimSpace(w.Description),
		URL:             strings.TrimSpace(w.DocumentLink),
		SignedAt:        w.DateSigned.Ptr(),
		CreatedAt:       w.DateAdded.Time,
	}
}

func toForm(w pfieldservice.Form) domain.Form {
	return domain.Form{
		ID:          int(w.FormID),
		OfficeID:    int(w.OfficeID),
		CustomerID:  int(w.CustomerID),
		TemplateID:  int(w.FormTemplateID),
		Description: strings.TrimSpace(w.FormDescription),
		URL:         strings.TrimSpace(w.DocumentLink),
		SignedAt:    w.DateSigned.Ptr(),
		CreatedAt:   w.DateAdded.Time,
	}
}

func mapAll[W any, M any](items []W, fn func(W) M) []M {
	out := make([]M, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
