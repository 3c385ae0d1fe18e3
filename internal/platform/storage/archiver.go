package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const defaultFetchTimeout = 30 * time.Second

// ErrSourceUnavailable reports that the field-service file URL could not be downloaded.
var ErrSourceUnavailable = errors.New("storage: source file unavailable")

// Archiver copies field-service hosted files into the documents bucket, so downloads are served
// from our bucket rather than short-lived upstream links.
type Archiver struct {
	client *gcs.Client
	bucket string
	http   *http.Client
	logger *zap.Logger
}

// NewArchiver constructs an Archiver for bucket.
func NewArchiver(client *gcs.Client, bucket string, httpClient *http.Client, logger *zap.Logger) (*Archiver, error) {
	if client == nil {
		return nil, errors.New("storage archiver: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{client: client, bucket: bucket, http: httpClient, logger: logger}, nil
}

// Archive stores sourceURL at object unless it already exists. It reports whether a copy was
// written.
func (a *Archiver) Archive(ctx context.Context, object, sourceURL string) (bool, error) {
	handle := a.client.Bucket(a.bucket).Object(object)
	_, err := handle.Attrs(ctx)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, gcs.ErrObjectNotExist):
		return false, fmt.Errorf("storage: stat %s: %w", object, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: upstream status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	// a concurrent download may win the race; DoesNotExist turns that into a 412 we can ignore
	writer := handle.If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = resp.Header.Get("Content-Type")
	if writer.ContentType == "" {
		writer.ContentType = "application/pdf"
	}
	if _, err := io.Copy(writer, resp.Body); err != nil {
		_ = writer.Close()
		return false, fmt.Errorf("storage: write %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return false, nil
		}
		return false, fmt.Errorf("storage: write %s: %w", object, err)
	}
	a.logger.Debug("document archived", zap.String("object", object), zap.Int64("bytes", writer.Attrs().Size))
	return true, nil
}
