package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fieldline/customer-api/internal/domain"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
}

func (f *fakeSigner) Email() string { return f.email }

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

var testAccount = domain.Account{OfficeID: 3, AccountNumber: 1044}

func newTestClient(t *testing.T, now time.Time) (*Client, *fakeSigner) {
	t.Helper()
	signer := &fakeSigner{email: "docs@fieldline.iam.gserviceaccount.com"}
	client, err := NewClient(signer, "fl-documents", WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, signer
}

func TestSignedDownloadURL(t *testing.T) {
	now := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	client, signer := newTestClient(t, now)

	object, err := DocumentPath(3, 1044, "documents", 77, "service-report.pdf")
	if err != nil {
		t.Fatalf("DocumentPath: %v", err)
	}
	res, err := client.SignedDownloadURL(context.Background(), object, DownloadOptions{
		Account:     testAccount,
		FileName:    "service-report.pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("SignedDownloadURL: %v", err)
	}
	if !res.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expected 15 minute expiry, got %v", res.ExpiresAt)
	}
	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if !strings.Contains(parsed.Path, "/fl-documents/offices/3/customers/1044/documents/77/service-report.pdf") {
		t.Fatalf("unexpected object path %s", parsed.Path)
	}
	query := parsed.Query()
	if query.Get("X-Goog-Signature") == "" {
		t.Fatalf("expected signature in %s", parsed.RawQuery)
	}
	if got := query.Get("response-content-disposition"); got != `attachment; filename=service-report.pdf` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if len(signer.payloads) != 1 {
		t.Fatalf("expected signer to be invoked once, got %d", len(signer.payloads))
	}
}

func TestSignedDownloadURLRejectsForeignObject(t *testing.T) {
	client, _ := newTestClient(t, time.Now())
	object, _ := DocumentPath(3, 2000, "contracts", 5, "contract.pdf")

	_, err := client.SignedDownloadURL(context.Background(), object, DownloadOptions{Account: testAccount})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// prefix match must stop at a path separator
	object, _ = DocumentPath(3, 10440, "contracts", 5, "contract.pdf")
	if _, err := client.SignedDownloadURL(context.Background(), object, DownloadOptions{Account: testAccount}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for sibling prefix, got %v", err)
	}
}

func TestSignedDownloadURLExpiryTooLong(t *testing.T) {
	client, _ := newTestClient(t, time.Now())
	object, _ := DocumentPath(3, 1044, "forms", 9, "form.pdf")

	_, err := client.SignedDownloadURL(context.Background(), object, DownloadOptions{Account: testAccount, ExpiresIn: time.Hour})
	if !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("expected errExpiryTooLong, got %v", err)
	}
}

func TestNewClientRequiresSignerAndBucket(t *testing.T) {
	if _, err := NewClient(nil, "b"); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner, got %v", err)
	}
	if _, err := NewClient(&fakeSigner{email: "x@y"}, " "); !errors.Is(err, errInvalidBucket) {
		t.Fatalf("expected errInvalidBucket, got %v", err)
	}
}

func TestDocumentPathRejectsTraversal(t *testing.T) {
	if _, err := DocumentPath(1, 2, "documents", 3, "../secret.pdf"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	if _, err := DocumentPath(0, 2, "documents", 3, "a.pdf"); err == nil {
		t.Fatal("expected non-positive office to be rejected")
	}
}

func TestFileNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://files.example.com/docs/abc/report.pdf?token=1": "report.pdf",
		"https://files.example.com/docs/abc/":                   "42.pdf",
		"":                                                      "42.pdf",
		"https://files.example.com/download":                    "42.pdf",
	}
	for in, want := range cases {
		if got := FileNameFromURL(in, 42); got != want {
			t.Errorf("FileNameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceAccountSignerFromJSON(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	raw, _ := json.Marshal(map[string]string{"type": "service_account", "client_email": "local@test.iam", "private_key": string(pemKey)})

	signer, err := NewServiceAccountSignerFromJSON(raw)
	if err != nil {
		t.Fatalf("NewServiceAccountSignerFromJSON: %v", err)
	}
	if signer.Email() != "local@test.iam" {
		t.Fatalf("unexpected email %s", signer.Email())
	}
	sig, err := signer.SignBytes(context.Background(), []byte("payload"))
	if err != nil || len(sig) != 256 {
		t.Fatalf("expected 256 byte signature, got %d err=%v", len(sig), err)
	}
}
