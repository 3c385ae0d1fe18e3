package planpricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "  "})
	require.Error(t, err)
}

func TestPlansDecodesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/offices/7/plans", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))
		_, _ = w.Write([]byte(`{"plans":[{"id":1,"code":" PRO ","name":"Pro","order":1,"initial_price":"99.00","recurring_price":"49.50","addons":[{"product_id":12,"name":"Mosquito","price":"15"}]}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	plans, err := client.Plans(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "pro", plans[0].Code)
	assert.Equal(t, "49.5", plans[0].RecurringPrice.String())
	require.Len(t, plans[0].Addons, 1)
	assert.Equal(t, 12, plans[0].Addons[0].ProductID)
}

func TestCurrentPlanUsesCacheUntilInvalidated(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/customers/42/plan", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("officeID"))
		_, _ = w.Write([]byte(`{"plan":{"id":2,"code":"pro_plus","name":"Pro+","recurring_price":"69.50"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, WithCache(newMemoryCache()))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := client.CurrentPlan(ctx, 3, 42)
	require.NoError(t, err)
	second, err := client.CurrentPlan(ctx, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, client.Invalidate(ctx, 3, 42))
	_, err = client.CurrentPlan(ctx, 3, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCurrentPlanNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers/1/plan" {
			_, _ = w.Write([]byte(`{"plan":null}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.CurrentPlan(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = client.CurrentPlan(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Plans(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
