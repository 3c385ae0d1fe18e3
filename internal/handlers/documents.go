package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/services"
)

// DocumentHandlers serves customer files and signed download links.
type DocumentHandlers struct {
	documents services.DocumentService
}

// NewDocumentHandlers constructs the handlers.
func NewDocumentHandlers(documents services.DocumentService) *DocumentHandlers {
	return &DocumentHandlers{documents: documents}
}

// Routes registers the document endpoints.
func (h *DocumentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/documents", h.listDocuments)
	r.Get("/documents/{kind}/{documentID}/download", h.downloadDocument)
}

func (h *DocumentHandlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	files, err := h.documents.List(r.Context(), account)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	resources := make([]httpx.Resource, 0, len(files))
	for _, f := range files {
		resources = append(resources, customerFileResource(f))
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.Many(resources))
}

func (h *DocumentHandlers) downloadDocument(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	kind := domain.DocumentKind(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "kind"))))
	id, apiErr := pathID(r, "documentID")
	if apiErr != nil {
		writeHTTPError(r.Context(), w, apiErr)
		return
	}

	signed, err := h.documents.Download(r.Context(), account, kind, id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteDocument(w, http.StatusOK, httpx.One(downloadResource(kind, id, signed)))
}
