package services

import (
	"context"
	"errors"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/storage"
	"github.com/fieldline/customer-api/internal/repositories"
)

const defaultDownloadTTL = 15 * time.Minute

// DocumentServiceDeps wires the customer file listing and download flow.
type DocumentServiceDeps struct {
	Documents   repositories.DocumentRepository
	Contracts   repositories.ContractRepository
	Forms       repositories.FormRepository
	Archiver    DocumentArchiver
	Signer      DownloadSigner
	DownloadTTL time.Duration
	Logger      Logger
}

type documentService struct {
	documents repositories.DocumentRepository
	contracts repositories.ContractRepository
	forms     repositories.FormRepository
	archiver  DocumentArchiver
	signer    DownloadSigner
	ttl       time.Duration
	logger    Logger
}

// NewDocumentService validates deps and returns the document actions.
func NewDocumentService(deps DocumentServiceDeps) (DocumentService, error) {
	switch {
	case deps.Documents == nil || deps.Contracts == nil || deps.Forms == nil:
		return nil, errors.New("document service: document, contract and form repositories are required")
	case deps.Archiver == nil:
		return nil, errors.New("document service: archiver is required")
	case deps.Signer == nil:
		return nil, errors.New("document service: signer is required")
	}
	ttl := deps.DownloadTTL
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &documentService{
		documents: deps.Documents,
		contracts: deps.Contracts,
		forms:     deps.Forms,
		archiver:  deps.Archiver,
		signer:    deps.Signer,
		ttl:       ttl,
		logger:    logger,
	}, nil
}

// List merges documents, contracts and forms, newest first.
func (s *documentService) List(ctx context.Context, account Account) ([]CustomerFile, error) {
	officeID, customerID := account.OfficeID, account.AccountNumber

	docs, err := s.documents.Office(officeID).Search(ctx, repositories.SearchDocumentsDTO{CustomerID: customerID, VisibleOnly: true})
	if err != nil {
		return nil, err
	}
	contracts, err := s.contracts.Office(officeID).Search(ctx, customerID)
	if err != nil {
		return nil, err
	}
	forms, err := s.forms.Office(officeID).Search(ctx, customerID)
	if err != nil {
		return nil, err
	}

	files := make([]CustomerFile, 0, len(docs)+len(contracts)+len(forms))
	for _, d := range docs {
		files = append(files, CustomerFile{Kind: domain.DocumentKindDocument, ID: d.ID, Description: d.Description, URL: d.URL, CreatedAt: d.CreatedAt})
	}
	for _, c := range contracts {
		files = append(files, CustomerFile{Kind: domain.DocumentKindContract, ID: c.ID, Description: c.Description, URL: c.URL, CreatedAt: c.CreatedAt, SignedAt: c.SignedAt})
	}
	for _, f := range forms {
		files = append(files, CustomerFile{Kind: domain.DocumentKindForm, ID: f.ID, Description: f.Description, URL: f.URL, CreatedAt: f.CreatedAt, SignedAt: f.SignedAt})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

func (s *documentService) Download(ctx context.Context, account Account, kind domain.DocumentKind, id int) (storage.SignedURL, error) {
	file, err := s.find(ctx, account, kind, id)
	if err != nil {
		return storage.SignedURL{}, err
	}
	if strings.TrimSpace(file.URL) == "" {
		return storage.SignedURL{}, ErrDocumentNotFound
	}

	fileName := storage.FileNameFromURL(file.URL, id)
	object, err := storage.DocumentPath(account.OfficeID, account.AccountNumber, string(kind), id, fileName)
	if err != nil {
		return storage.SignedURL{}, err
	}
	copied, err := s.archiver.Archive(ctx, object, file.URL)
	if err != nil {
		return storage.SignedURL{}, err
	}

	signed, err := s.signer.SignedDownloadURL(ctx, object, storage.DownloadOptions{
		Account:     account,
		ExpiresIn:   s.ttl,
		FileName:    fileName,
		ContentType: mime.TypeByExtension(path.Ext(fileName)),
	})
	if err != nil {
		return storage.SignedURL{}, err
	}
	s.logger(ctx, "documents.download_signed", map[string]any{
		"kind":          string(kind),
		"documentId":    id,
		"accountNumber": account.AccountNumber,
		"archived":      copied,
	})
	return signed, nil
}

func (s *documentService) find(ctx context.Context, account Account, kind domain.DocumentKind, id int) (CustomerFile, error) {
	var (
		file       CustomerFile
		customerID int
		err        error
	)
	switch kind {
	case domain.DocumentKindDocument:
		var d domain.Document
		d, err = s.documents.Office(account.OfficeID).Find(ctx, id)
		if err == nil && !d.Visible {
			return CustomerFile{}, ErrDocumentNotFound
		}
		customerID = d.CustomerID
		file = CustomerFile{Kind: kind, ID: d.ID, Description: d.Description, URL: d.URL, CreatedAt: d.CreatedAt}
	case domain.DocumentKindContract:
		var c domain.Contract
		c, err = s.contracts.Office(account.OfficeID).Find(ctx, id)
		customerID = c.CustomerID
		file = CustomerFile{Kind: kind, ID: c.ID, Description: c.Description, URL: c.URL, CreatedAt: c.CreatedAt, SignedAt: c.SignedAt}
	case domain.DocumentKindForm:
		var f domain.Form
		f, err = s.forms.Office(account.OfficeID).Find(ctx, id)
		customerID = f.CustomerID
		file = CustomerFile{Kind: kind, ID: f.ID, Description: f.Description, URL: f.URL, CreatedAt: f.CreatedAt, SignedAt: f.SignedAt}
	default:
		return CustomerFile{}, ErrInvalidDocument
	}
	if err != nil {
		if repositories.IsNotFound(err) {
			return CustomerFile{}, ErrDocumentNotFound
		}
		return CustomerFile{}, err
	}
	if !account.Owns(customerID) {
		return CustomerFile{}, ErrAccountMismatch
	}
	return file, nil
}
