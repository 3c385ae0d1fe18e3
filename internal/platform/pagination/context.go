package pagination

import "context"

type contextKey struct{}

// WithParams stores parsed paging parameters on the context.
func WithParams(ctx context.Context, params Params) context.Context {
	return context.WithValue(ctx, contextKey{}, params)
}

// FromContext returns the parameters stored by WithParams, or the first page at the default
// size.
func FromContext(ctx context.Context) Params {
	if params, ok := ctx.Value(contextKey{}).(Params); ok && params.Size > 0 {
		return params
	}
	return Params{Number: 1, Size: DefaultPageSize}
}
