package storage

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

// Signer signs V4 URL payloads on behalf of a service account.
type Signer interface {
	// Email is used as the GoogleAccessID.
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// IAMSigner signs through the IAM Credentials signBlob API. Cloud Run instances have no private
// key on disk, so this is the production signer.
type IAMSigner struct {
	email   string
	service *iamcredentials.Service
}

// NewIAMSigner builds a signer for the service account email.
func NewIAMSigner(ctx context.Context, email string, opts ...option.ClientOption) (*IAMSigner, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("storage: signer email is required")
	}
	service, err := iamcredentials.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: iam credentials client: %w", err)
	}
	return &IAMSigner{email: email, service: service}, nil
}

func (s *IAMSigner) Email() string { return s.email }

func (s *IAMSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	name := "projects/-/serviceAccounts/" + s.email
	resp, err := s.service.Projects.ServiceAccounts.SignBlob(name, &iamcredentials.SignBlobRequest{
		Payload: base64.StdEncoding.EncodeToString(payload),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("storage: sign blob: %w", err)
	}
	return base64.StdEncoding.DecodeString(resp.SignedBlob)
}

// ServiceAccountSigner signs with the private key of a service account JSON key file. Local
// runs use it; deployed instances have no key on disk.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

func NewServiceAccountSignerFromJSON(data []byte) (*ServiceAccountSigner, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("storage: service account JSON is empty")
	}
	cfg, err := google.JWTConfigFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("storage: service account json: %w", err)
	}
	if cfg.Email == "" {
		return nil, errors.New("storage: client_email missing in service account JSON")
	}
	key, err := rsaKeyFromPEM(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: cfg.Email, key: key}, nil
}

func NewServiceAccountSignerFromFile(path string) (*ServiceAccountSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read service account file: %w", err)
	}
	return NewServiceAccountSignerFromJSON(data)
}

func (s *ServiceAccountSigner) Email() string { return s.email }

// SignBytes returns an RSA-SHA256 PKCS#1 v1.5 signature, the GOOG4-RSA-SHA256 scheme.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errors.New("storage: payload is empty")
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return sig, nil
}

// rsaKeyFromPEM accepts PKCS#8, which Google issues, and falls back to PKCS#1.
func rsaKeyFromPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("storage: private_key is not PEM encoded")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		if key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes); pkcs1Err == nil {
			return key, nil
		}
		return nil, fmt.Errorf("storage: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("storage: private key is not RSA")
	}
	return key, nil
}
