package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fieldline/customer-api/internal/platform/httpx"
)

const (
	maxRequestBody = 64 * 1024
	dateLayout     = "2006-01-02"
)

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// requestDocument is the JSON:API envelope of a write request.
type requestDocument[T any] struct {
	Data struct {
		Type       string `json:"type"`
		ID         string `json:"id,omitempty"`
		Attributes T      `json:"attributes"`
	} `json:"data"`
}

// decodeAttributes reads a JSON:API document of resourceType into dst and validates it. The
// returned errors are ready to write; nil means dst is usable.
func decodeAttributes[T any](r *http.Request, resourceType string, dst *T) []httpx.Error {
	body, err := readLimitedBody(r, maxRequestBody)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return []httpx.Error{httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge)}
		}
		return []httpx.Error{httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)}
	}

	var doc requestDocument[T]
	if err := json.Unmarshal(body, &doc); err != nil {
		return []httpx.Error{httpx.NewError("invalid_json", "request body is not a valid JSON:API document", http.StatusBadRequest)}
	}
	if doc.Data.Type != resourceType {
		return []httpx.Error{
			httpx.NewError("type_mismatch", fmt.Sprintf("expected resource type %q", resourceType), http.StatusConflict).
				WithPointer("/data/type"),
		}
	}
	if errs := validationErrors(validate.Struct(doc.Data.Attributes)); len(errs) > 0 {
		return errs
	}
	*dst = doc.Data.Attributes
	return nil
}

// validationErrors turns validator failures into one 422 error per field.
func validationErrors(err error) []httpx.Error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []httpx.Error{httpx.NewError("invalid_request", err.Error(), http.StatusUnprocessableEntity)}
	}
	out := make([]httpx.Error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, httpx.NewError("validation_failed", describeFieldError(fe), http.StatusUnprocessableEntity).
			WithPointer(attributePointer(fe.Namespace())))
	}
	return out
}

// attributePointer maps "attrs.window.start" to "/data/attributes/window/start".
func attributePointer(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	return "/data/attributes/" + strings.ReplaceAll(rest, ".", "/")
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int, *httpx.Error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		e := httpx.NewError("invalid_id", fmt.Sprintf("%s must be a positive integer", name), http.StatusBadRequest)
		return 0, &e
	}
	return id, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (*time.Time, *httpx.Error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		e := httpx.NewError("invalid_query", fmt.Sprintf("%s must be a date in YYYY-MM-DD format", name), http.StatusBadRequest).
			WithMeta("parameter", name)
		return nil, &e
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
