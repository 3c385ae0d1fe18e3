package fieldservice

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

// ErrUnknownRelation is returned when WithRelated names a relation the entity does not declare.
var ErrUnknownRelation = errors.New("fieldservice repository: unknown relation")

// Option customises repository construction.
type Option func(*options)

type options struct {
	loc     *time.Location
	now     func() time.Time
	tickets repositories.TicketRepository
}

// WithLocation sets the location used to interpret remote dates and clocks.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithClock injects a clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTicketRepository sets the adapter that resolves recurring tickets. Without it the
// relation loader builds one on the same client.
func WithTicketRepository(tickets repositories.TicketRepository) Option {
	return func(o *options) {
		if tickets != nil {
			o.tickets = tickets
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// scope is the fluent state shared by all adapters. It is copied on every change so a scoped
// repository can be reused concurrently.
type scope struct {
	officeID  int
	relations []string
	page      int
	perPage   int
}

func (s scope) withOffice(officeID int) scope {
	s.relations = slices.Clone(s.relations)
	s.officeID = officeID
	return s
}

func (s scope) withRelations(relations ...string) scope {
	merged := slices.Clone(s.relations)
	for _, rel := range relations {
		rel = strings.TrimSpace(rel)
		if rel == "" || slices.Contains(merged, rel) {
			continue
		}
		merged = append(merged, rel)
	}
	s.relations = merged
	return s
}

func (s scope) withPage(page, perPage int) scope {
	s.relations = slices.Clone(s.relations)
	s.page = page
	s.perPage = perPage
	return s
}

func (s scope) has(relation string) bool {
	return slices.Contains(s.relations, relation)
}

func (s scope) requireOffice() error {
	if s.officeID <= 0 {
		return repositories.ErrOfficeNotScoped
	}
	return nil
}

func (s scope) validateRelations(entity string, allowed ...string) error {
	for _, rel := range s.relations {
		if !slices.Contains(allowed, rel) {
			return fmt.Errorf("%w: %s on %s", ErrUnknownRelation, rel, entity)
		}
	}
	return nil
}

func (s scope) params() pfieldservice.Params {
	return pfieldservice.NewParams().Page(s.page, s.perPage)
}

// translate converts field-service client errors into repository errors.
func translate(entity, op string, id int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrInvalidDTO) || errors.Is(err, repositories.ErrOfficeNotScoped) {
		return err
	}
	var notFound *repositories.EntityNotFoundError
	if errors.As(err, &notFound) {
		return err
	}
	var internal *repositories.InternalServerError
	if errors.As(err, &internal) {
		return err
	}
	if errors.Is(err, pfieldservice.ErrNotFound) {
		return &repositories.EntityNotFoundError{Entity: entity, ID: id, Err: err}
	}
	return &repositories.InternalServerError{Entity: entity, Op: op, Err: err}
}

func sortAppointments(items []domain.Appointment) {
	slices.SortStableFunc(items, func(a, b domain.Appointment) int {
		return a.Start.Compare(b.Start)
	})
}
