package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client omits page[size].
	DefaultPageSize = 25
	// DefaultMaxPageSize caps page[size]; the field-service API refuses larger pages.
	DefaultMaxPageSize = 100

	ParamNumber = "page[number]"
	ParamSize   = "page[size]"
	ParamSort   = "sort"
)

// Order describes a single sort clause. JSON:API spells descending as a leading "-".
type Order struct {
	Field string
	Desc  bool
}

// Params holds the 1-based page and sort order requested by a client.
type Params struct {
	Number int
	Size   int
	Sort   []Order
}

// Offset returns the zero-based index of the first item on the page.
func (p Params) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultPageSize   int
	MaxPageSize       int
	AllowedSortFields []string
}

var (
	ErrInvalidPageNumber = errors.New("pagination: invalid page[number]")
	ErrInvalidPageSize   = errors.New("pagination: invalid page[size]")
	ErrInvalidSort       = errors.New("pagination: invalid sort")
)

// ParamError names the offending query parameter so handlers can fill source.parameter.
type ParamError struct {
	Parameter string
	err       error
	detail    string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%v: %s", e.err, e.detail)
}

func (e *ParamError) Unwrap() error { return e.err }

func paramError(param string, err error, detail string) error {
	return &ParamError{Parameter: param, err: err, detail: detail}
}

// FromRequest parses the paging query parameters from r.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads page[number], page[size] and sort from values.
func Parse(values url.Values, opts Options) (Params, error) {
	number, err := parsePositive(values.Get(ParamNumber), 1)
	if err != nil {
		return Params{}, paramError(ParamNumber, ErrInvalidPageNumber, err.Error())
	}

	maxSize := opts.MaxPageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPageSize
	}
	defaultSize := opts.DefaultPageSize
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	size, err := parsePositive(values.Get(ParamSize), min(defaultSize, maxSize))
	if err != nil {
		return Params{}, paramError(ParamSize, ErrInvalidPageSize, err.Error())
	}

	sort, err := parseSort(values.Get(ParamSort), opts.AllowedSortFields)
	if err != nil {
		return Params{}, err
	}

	return Params{Number: number, Size: min(size, maxSize), Sort: sort}, nil
}

func parsePositive(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if value <= 0 {
		return 0, errors.New("must be greater than zero")
	}
	return value, nil
}

func parseSort(raw string, allowed []string) ([]Order, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if len(allowed) == 0 {
		return nil, paramError(ParamSort, ErrInvalidSort, "sorting is not supported here")
	}

	var orders []Order
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, desc := strings.CutPrefix(part, "-")
		if !slices.Contains(allowed, field) {
			return nil, paramError(ParamSort, ErrInvalidSort, fmt.Sprintf("field %q is not sortable", field))
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		orders = append(orders, Order{Field: field, Desc: desc})
	}
	return orders, nil
}
