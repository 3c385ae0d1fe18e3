package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/fieldline/customer-api/internal/platform/config"
)

const (
	dialTimeout = 10 * time.Second
	healthDoc   = "_health/ping"
)

var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider owns the process-wide Firestore client. The client is dialled on first use; a failed
// dial is not remembered, so the next caller tries again.
type Provider struct {
	projectID string
	emulator  string
	opts      []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

type ProviderOption func(*Provider)

// WithClientOptions adds options such as explicit credentials to the dial.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) { p.opts = append(p.opts, opts...) }
}

// NewProvider resolves the project and emulator host from cfg, falling back to
// GOOGLE_CLOUD_PROJECT and FIRESTORE_EMULATOR_HOST.
func NewProvider(cfg config.FirestoreConfig, opts ...ProviderOption) *Provider {
	p := &Provider{
		projectID: firstSet(cfg.ProjectID, os.Getenv("GOOGLE_CLOUD_PROJECT")),
		emulator:  firstSet(cfg.EmulatorHost, os.Getenv("FIRESTORE_EMULATOR_HOST")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.emulator != "" {
		p.opts = append(p.opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(p.emulator),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return p
}

// Client returns the shared client. Concurrent first callers block on one dial.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	case p.projectID == "":
		return nil, errors.New("firestore: project id is required")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := firestore.NewClient(dialCtx, p.projectID, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	p.client = client
	return client, nil
}

// Ping reads a probe document. NotFound counts as healthy.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Doc(healthDoc).Get(ctx); err != nil && status.Code(err) != codes.NotFound {
		return WrapError("firestore.ping", err)
	}
	return nil
}

// RunTransaction is RunTransaction on the shared client.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, client, fn, opts...)
}

// Close releases the client and marks the provider unusable. It gives up when ctx ends.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	p.client, p.closed = nil, true
	p.mu.Unlock()
	if client == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- client.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
