package fieldservice

import (
	"context"
	"errors"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

// DocumentRepository implements repositories.DocumentRepository.
type DocumentRepository struct {
	client *pfieldservice.Client
	scope  scope
}

var _ repositories.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository(client *pfieldservice.Client) (*DocumentRepository, error) {
	if client == nil {
		return nil, errors.New("document repository: field-service client is required")
	}
	return &DocumentRepository{client: client}, nil
}

func (r *DocumentRepository) Office(officeID int) repositories.DocumentRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *DocumentRepository) Find(ctx context.Context, id int) (domain.Document, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Document{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Document](ctx, r.client, pfieldservice.ResourceDocument, r.scope.officeID, id)
	if err != nil {
		return domain.Document{}, translate("document", "find", id, err)
	}
	return toDocument(wire), nil
}

func (r *DocumentRepository) Search(ctx context.Context, dto repositories.SearchDocumentsDTO) ([]domain.Document, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams().SetInts("customerIDs", []int{dto.CustomerID})
	if dto.VisibleOnly {
		params = params.SetInt("showCustomer", 1)
	}
	wire, err := pfieldservice.Search[pfieldservice.Document](ctx, r.client, pfieldservice.ResourceDocument, r.scope.officeID, params)
	if err != nil {
		return nil, translate("document", "search", 0, err)
	}
	docs := mapAll(wire, toDocument)
	if dto.VisibleOnly {
		visible := docs[:0]
		for _, doc := range docs {
			if doc.Visible {
				visible = append(visible, doc)
			}
		}
		docs = visible
	}
	return docs, nil
}

// ContractRepository implements repositories.ContractRepository.
type ContractRepository struct {
	client *pfieldservice.Client
	scope  scope
}

var _ repositories.ContractRepository = (*ContractRepository)(nil)

func NewContractRepository(client *pfieldservice.Client) (*ContractRepository, error) {
	if client == nil {
		return nil, errors.New("contract repository: field-service client is required")
	}
	return &ContractRepository{client: client}, nil
}

func (r *ContractRepository) Office(officeID int) repositories.ContractRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *ContractRepository) Find(ctx context.Context, id int) (domain.Contract, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Contract{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Contract](ctx, r.client, pfieldservice.ResourceContract, r.scope.officeID, id)
	if err != nil {
		return domain.Contract{}, translate("contract", "find", id, err)
	}
	return toContract(wire), nil
}

func (r *ContractRepository) Search(ctx context.Context, customerID int) ([]domain.Contract, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams().SetInts("customerIDs", []int{customerID})
	wire, err := pfieldservice.Search[pfieldservice.Contract](ctx, r.client, pfieldservice.ResourceContract, r.scope.officeID, params)
	if err != nil {
		return nil, translate("contract", "search", 0, err)
	}
	return mapAll(wire, toContract), nil
}

// FormRepository implements repositories.FormRepository.
type FormRepository struct {
	client *pfieldservice.Client
	scope  scope
}

var _ repositories.FormRepository = (*FormRepository)(nil)

func NewFormRepository(client *pfieldservice.Client) (*FormRepository, error) {
	if client == nil {
		return nil, errors.New("form repository: field-service client is required")
	}
	return &FormRepository{client: client}, nil
}

func (r *FormRepository) Office(officeID int) repositories.FormRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *FormRepository) Find(ctx context.Context, id int) (domain.Form, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Form{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Form](ctx, r.client, pfieldservice.ResourceForm, r.scope.officeID, id)
	if err != nil {
		return domain.Form{}, translate("form", "find", id, err)
	}
	return toForm(wire), nil
}

func (r *FormRepository) Search(ctx context.Context, customerID int) ([]domain.Form, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams().SetInts("customerIDs", []int{customerID})
	wire, err := pfieldservice.Search[pfieldservice.Form](ctx, r.client, pfieldservice.ResourceForm, r.scope.officeID, params)
	if err != nil {
		return nil, translate("form", "search", 0, err)
	}
	return mapAll(wire, toForm), nil
}
