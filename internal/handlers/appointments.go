package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/pagination"
	"github.com/fieldline/customer-api/internal/services"
)

const (
	defaultSpotRangeDays = 14
	maxSpotRangeDays     = 31
)

var knownAppointmentStatuses = map[string]domain.AppointmentStatus{
	string(domain.AppointmentStatusPending):     domain.AppointmentStatusPending,
	string(domain.AppointmentStatusCompleted):   domain.AppointmentStatusCompleted,
	string(domain.AppointmentStatusNoShow):      domain.AppointmentStatusNoShow,
	string(domain.AppointmentStatusRescheduled): domain.AppointmentStatusRescheduled,
	string(domain.AppointmentStatusCancelled):   domain.AppointmentStatusCancelled,
}

// AppointmentHandlers serves the appointment and spot endpoints for the linked account.
type AppointmentHandlers struct {
	appointments services.AppointmentService
	idempotent   func(http.Handler) http.Handler
	clock        func() time.Time
}

// AppointmentOption customises AppointmentHandlers.
type AppointmentOption func(*AppointmentHandlers)

// WithAppointmentIdempotency guards appointment creation with the given middleware.
func WithAppointmentIdempotency(mw func(http.Handler) http.Handler) AppointmentOption {
	return func(h *AppointmentHandlers) {
		if mw != nil {
			h.idempotent = mw
		}
	}
}

// WithAppointmentClock overrides the clock used for default spot ranges.
func WithAppointmentClock(clock func() time.Time) AppointmentOption {
	return func(h *AppointmentHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewAppointmentHandlers constructs the handlers.
func NewAppointmentHandlers(appointments services.AppointmentService, opts ...AppointmentOption) *AppointmentHandlers {
	h := &AppointmentHandlers{
		appointments: appointments,
		idempotent:   passthrough,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the appointment and spot endpoints.
func (h *AppointmentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/appointments", func(rt chi.Router) {
		rt.With(paginated(pagination.Options{})).Get("/", h.listAppointments)
		rt.Get("/upcoming", h.upcomingAppointments)
		rt.With(h.idempotent).Post("/", h.createAppointment)
		rt.Get("/{appointmentID}", h.getAppointment)
		rt.Put("/{appointmentID}", h.rescheduleAppointment)
		rt.Delete("/{appointmentID}", h.cancelAppointment)
	})
	r.Get("/spots", h.listSpots)
}

type appointmentAttributes struct {
	SpotID    int    `json:"spot_id" validate:"required,gt=0"`
	Notes     string `json:"notes" validate:"max=1000"`
	Window    string `json:"window" validate:"omitempty,oneof=AM PM AT"`
	IsAroSpot bool   `json:"is_aro_spot"`
}

func (h *AppointmentHandlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}

	start, apiErr := queryDate(r, "date_start")
	if apiErr != nil {
		writeHTTPError(ctx, w, apiErr)
		return
	}
	end, apiErr := queryDate(r, "date_end")
	if apiErr != nil {
		writeHTTPError(ctx, w, apiErr)
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", "date_end must not be before date_start", http.StatusBadRequest).
			WithMeta("parameter", "date_end"))
		return
	}
	statuses, apiErr := parseStatuses(r.URL.Query().Get("status"))
	if apiErr != nil {
		writeHTTPError(ctx, w, apiErr)
		return
	}

	page := pagination.FromContext(ctx)
	list, err := h.appointments.Search(ctx, services.SearchAppointmentsCommand{
		Account:   account,
		DateStart: start,
		DateEnd:   end,
		Statuses:  statuses,
		Page:      page.Number,
		PageSize:  page.Size,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, pageDocument(r, appointmentResources(list)))
}

func (h *AppointmentHandlers) upcomingAppointments(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	list, err := h.appointments.Upcoming(r.Context(), account)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.Many(appointmentResources(list)))
}

func (h *AppointmentHandlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	id, apiErr := pathID(r, "appointmentID")
	if apiErr != nil {
		writeHTTPError(r.Context(), w, apiErr)
		return
	}
	appt, err := h.appointments.Find(r.Context(), account, id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.One(appointmentResource(appt)))
}

func (h *AppointmentHandlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	var attrs appointmentAttributes
	if errs := decodeAttributes(r, typeAppointment, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}

	appt, err := h.appointments.Create(ctx, services.CreateAppointmentCommand{
		Account:   account,
		SpotID:    attrs.SpotID,
		Notes:     attrs.Notes,
		Window:    domain.Window(attrs.Window),
		IsAroSpot: attrs.IsAroSpot,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusCreated, httpx.One(appointmentResource(appt)))
}

func (h *AppointmentHandlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	id, apiErr := pathID(r, "appointmentID")
	if apiErr != nil {
		writeHTTPError(ctx, w, apiErr)
		return
	}
	var attrs appointmentAttributes
	if errs := decodeAttributes(r, typeAppointment, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}

	appt, err := h.appointments.Reschedule(ctx, services.RescheduleAppointmentCommand{
		Account:       account,
		AppointmentID: id,
		SpotID:        attrs.SpotID,
		Notes:         attrs.Notes,
		Window:        domain.Window(attrs.Window),
		IsAroSpot:     attrs.IsAroSpot,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.One(appointmentResource(appt)))
}

func (h *AppointmentHandlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	id, apiErr := pathID(r, "appointmentID")
	if apiErr != nil {
		writeHTTPError(r.Context(), w, apiErr)
		return
	}
	if err := h.appointments.Cancel(r.Context(), services.CancelAppointmentCommand{Account: account, AppointmentID: id}); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteNoContent(w)
}

func (h *AppointmentHandlers) listSpots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	start, apiErr := queryDate(r, "date_start")
	if apiErr != nil {
		writeHTTPError(ctx, w, apiErr)
		return
	}
	end, apiErr := queryDate(r, "date_end")
	if apiErr != nil {
		writeHTTPError(ctx, w, apiErr)
		return
	}

	if start == nil {
		y, m, d := h.clock().UTC().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		start = &today
	}
	if end == nil {
		defaultEnd := start.AddDate(0, 0, defaultSpotRangeDays)
		end = &defaultEnd
	}
	if end.Before(*start) || end.Sub(*start) > maxSpotRangeDays*24*time.Hour {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", "date range must be ascending and at most 31 days", http.StatusBadRequest).
			WithMeta("parameter", "date_end"))
		return
	}

	spots, err := h.appointments.AvailableSpots(ctx, services.SearchSpotsCommand{
		Account:   account,
		DateStart: *start,
		DateEnd:   *end,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resources := make([]httpx.Resource, 0, len(spots))
	for _, s := range spots {
		resources = append(resources, spotResource(s))
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.Many(resources))
}

func parseStatuses(raw string) ([]domain.AppointmentStatus, *httpx.Error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []domain.AppointmentStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		status, ok := knownAppointmentStatuses[part]
		if !ok {
			e := httpx.NewError("invalid_query", "unknown appointment status "+part, http.StatusBadRequest).
				WithMeta("parameter", "status")
			return nil, &e
		}
		out = append(out, status)
	}
	return out, nil
}

func passthrough(next http.Handler) http.Handler { return next }
