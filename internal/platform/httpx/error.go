package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldline/customer-api/internal/platform/requestctx"
)

// ContentType is the JSON:API media type used for every response body.
const ContentType = "application/vnd.api+json"

// Error is one JSON:API error object.
type Error struct {
	Code    string
	Title   string
	Detail  string
	Status  int
	Pointer string
	Meta    map[string]any
}

// NewError constructs an Error; the title defaults to the HTTP status text.
func NewError(code, detail string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:   sanitize(code, 80),
		Title:  http.StatusText(status),
		Detail: sanitize(detail, 512),
		Status: status,
	}
}

// WithPointer names the offending request document member, e.g. "/data/attributes/notes".
func (e Error) WithPointer(pointer string) Error {
	e.Pointer = sanitize(pointer, 256)
	return e
}

// WithMeta attaches one meta member.
func (e Error) WithMeta(key string, value any) Error {
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	e.Meta = meta
	return e
}

type errorSource struct {
	Pointer string `json:"pointer"`
}

type errorObject struct {
	Status string         `json:"status"`
	Code   string         `json:"code,omitempty"`
	Title  string         `json:"title,omitempty"`
	Detail string         `json:"detail,omitempty"`
	Source *errorSource   `json:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// WriteError writes a single-error document.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	WriteErrors(ctx, w, err)
}

// WriteErrors writes an error document; the response status is taken from the first error.
func WriteErrors(ctx context.Context, w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{NewError("internal_error", "", http.StatusInternalServerError)}
	}
	status := errs[0].Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	requestID := sanitize(middleware.GetReqID(ctx), 80)
	traceID := sanitize(requestctx.TraceID(ctx), 64)

	objects := make([]errorObject, 0, len(errs))
	for _, e := range errs {
		code := e.Status
		if code == 0 {
			code = status
		}
		obj := errorObject{
			Status: strconv.Itoa(code),
			Code:   e.Code,
			Title:  e.Title,
			Detail: e.Detail,
			Meta:   e.Meta,
		}
		if e.Pointer != "" {
			obj.Source = &errorSource{Pointer: e.Pointer}
		}
		if requestID != "" || traceID != "" {
			obj.Meta = withIDs(obj.Meta, requestID, traceID)
		}
		objects = append(objects, obj)
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"errors": objects})
}

func withIDs(meta map[string]any, requestID, traceID string) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if requestID != "" {
		out["request_id"] = requestID
	}
	if traceID != "" {
		out["trace_id"] = traceID
	}
	return out
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
