package handlers

import (
	"errors"
	"net/http"

	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/pagination"
)

// paginated parses page[number], page[size] and sort before the handler runs. Handlers read the
// result with pagination.FromContext.
func paginated(opts pagination.Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params, err := pagination.FromRequest(r, opts)
			if err != nil {
				apiErr := httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest)
				var paramErr *pagination.ParamError
				if errors.As(err, &paramErr) {
					apiErr = apiErr.WithMeta("parameter", paramErr.Parameter)
				}
				httpx.WriteError(r.Context(), w, apiErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(pagination.WithParams(r.Context(), params)))
		})
	}
}

func pageDocument(r *http.Request, resources []httpx.Resource) httpx.Document {
	params := pagination.FromContext(r.Context())
	return httpx.Many(resources).
		WithLinks(pagination.Links(r.URL, params, len(resources))).
		WithMeta("page", pagination.Meta(params, len(resources)))
}
