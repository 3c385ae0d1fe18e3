package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/fieldline/customer-api/internal/domain"
)

const (
	defaultSignedURLExpiry = 15 * time.Minute
	maxSignedURLExpiry     = 15 * time.Minute
)

var (
	errNoSigner      = errors.New("storage: signer is required")
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Client mints V4 signed download URLs for archived customer documents.
type Client struct {
	signer Signer
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithClock injects a custom clock.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithDefaultExpiry sets the lifetime used when a request does not specify one.
func WithDefaultExpiry(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewClient constructs a signed URL client for bucket.
func NewClient(signer Signer, bucket string, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	client := &Client{signer: signer, bucket: bucket, ttl: defaultSignedURLExpiry, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// DownloadOptions control the signed URL response behaviour.
type DownloadOptions struct {
	// Account must own the object prefix.
	Account     domain.Account
	ExpiresIn   time.Duration
	FileName    string
	ContentType string
}

// SignedURL is a time-limited download link.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// SignedDownloadURL signs a GET URL for object after checking it sits under the account's prefix.
func (c *Client) SignedDownloadURL(ctx context.Context, object string, opts DownloadOptions) (SignedURL, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedURL{}, errInvalidObject
	}
	if err := AuthorizeObject(opts.Account, object); err != nil {
		return SignedURL{}, err
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = c.ttl
	}
	if expiry > maxSignedURLExpiry {
		return SignedURL{}, errExpiryTooLong
	}

	query := url.Values{}
	if name := strings.TrimSpace(opts.FileName); name != "" {
		query.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	if ct := strings.TrimSpace(opts.ContentType); ct != "" {
		query.Set("response-content-type", ct)
	}

	expiresAt := c.now().Add(expiry)
	signed, err := storage.SignedURL(c.bucket, object, &storage.SignedURLOptions{
		GoogleAccessID:  c.signer.Email(),
		Scheme:          storage.SigningSchemeV4,
		Method:          "GET",
		Expires:         expiresAt,
		QueryParameters: query,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURL{URL: signed, ExpiresAt: expiresAt}, nil
}
