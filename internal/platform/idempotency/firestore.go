package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/fieldline/customer-api/internal/platform/firestore"
)

const (
	defaultCollection   = "idempotency_keys"
	defaultTxAttempts   = 5
	defaultCleanupLimit = 200
)

type FirestoreOption func(*FirestoreStore)

func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithMaxAttempts caps retries of an aborted reservation transaction.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(s *FirestoreStore) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// FirestoreStore shares reservations between API instances. expires_at can also back a
// Firestore TTL policy.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	attempts   int
}

func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	s := &FirestoreStore{client: client, collection: defaultCollection, attempts: defaultTxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// mutate runs fn against the key's current record inside a transaction. found is false when no
// document exists.
func (s *FirestoreStore) mutate(ctx context.Context, key string, fn func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Record, found bool) error) error {
	ref := s.client.Collection(s.collection).Doc(documentID(key))
	return pfirestore.RunTransaction(ctx, s.client, func(_ context.Context, tx *firestore.Transaction) error {
		var current Record
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			return fn(tx, ref, Record{}, false)
		case err != nil:
			return err
		}
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		return fn(tx, ref, current, true)
	}, pfirestore.WithTxAttempts(s.attempts))
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now, ttl = now.UTC(), ttlOrDefault(ttl)

	var out Reservation
	err := s.mutate(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Record, found bool) error {
		if found && !current.expired(now) {
			var err error
			out, err = classify(current, fingerprint)
			return err
		}
		fresh := pendingRecord(key, fingerprint, now, ttl)
		out = Reservation{State: ReservationStateNew, Record: fresh}
		return tx.Set(ref, fresh)
	})
	if errors.Is(err, ErrFingerprintMismatch) {
		return Reservation{}, ErrFingerprintMismatch
	}
	return out, err
}

func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now, ttl = now.UTC(), ttlOrDefault(ttl)

	err := s.mutate(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Record, found bool) error {
		switch {
		case !found:
			current = pendingRecord(key, fingerprint, now, ttl)
		case current.Fingerprint != fingerprint:
			return ErrFingerprintMismatch
		}
		return tx.Set(ref, current.complete(resp, now, ttl))
	})
	if errors.Is(err, ErrFingerprintMismatch) {
		return ErrFingerprintMismatch
	}
	return err
}

// Release deletes the reservation only while fingerprint still owns it.
func (s *FirestoreStore) Release(ctx context.Context, key, fingerprint string) error {
	err := s.mutate(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current Record, found bool) error {
		if !found || current.Fingerprint != fingerprint {
			return nil
		}
		return tx.Delete(ref)
	})
	var ferr *pfirestore.Error
	if errors.As(err, &ferr) && ferr.IsNotFound() {
		return nil
	}
	return err
}

// CleanupExpired deletes at most limit records whose expires_at has passed.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultCleanupLimit
	}
	snaps, err := s.client.Collection(s.collection).
		Where("expires_at", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("idempotency.cleanup", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	defer bw.End()
	for _, snap := range snaps {
		if _, err := bw.Delete(snap.Ref); err != nil {
			return 0, pfirestore.WrapError("idempotency.cleanup", err)
		}
	}
	return len(snaps), nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
