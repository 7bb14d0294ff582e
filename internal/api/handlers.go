package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/labdesk/internal/checksum"
	"github.com/starford/labdesk/internal/docservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// docPath extracts the document path from the URL (everything after /api/documents/).
// Supports encoded slashes from OpenAPI clients (e.g. lab_1%2Fhw.ipynb).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List stored documents with optional pagination and filtering
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			kind	query		string	false	"Filter by file kind"	Enums(script, notebook)
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, title, path)
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), limit, offset, q.Get("kind"), q.Get("sort"))
	if err != nil {
		writeError(w, "list documents", "", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{
		Documents: items,
		Total:     total,
	})
}

// GetDocument handles GET /api/documents/*.
//
// The view parameter selects the representation: the parsed document
// (default), the raw text as a download, the evaluation text or Markdown.
//
//	@Summary		Get a stored document by path
//	@Tags			documents
//	@Produce		json
//	@Produce		plain
//	@Produce		markdown
//	@Param			path	path		string	true	"Document path"
//	@Param			view	query		string	false	"Representation"	Enums(document, raw, eval, markdown)
//	@Param			limit	query		int		false	"Character limit for view=eval"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	ctx := r.Context()

	switch view := r.URL.Query().Get("view"); view {
	case "", "document":
		d, err := h.svc.Get(ctx, path)
		if err != nil {
			writeError(w, "get document", path, err)
			return
		}
		w.Header().Set("ETag", checksum.ETag(d.Checksum))
		writeJSON(w, http.StatusOK, d)
	case "raw":
		name, raw, err := h.svc.Raw(ctx, path)
		if err != nil {
			writeError(w, "get raw text", path, err)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
		writeText(w, "text/plain; charset=utf-8", raw)
	case "eval":
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		text, err := h.svc.EvaluationText(ctx, path, limit)
		if err != nil {
			writeError(w, "get evaluation text", path, err)
			return
		}
		writeText(w, "text/plain; charset=utf-8", text)
	case "markdown":
		md, err := h.svc.Markdown(ctx, path)
		if err != nil {
			writeError(w, "render markdown", path, err)
			return
		}
		writeText(w, "text/markdown; charset=utf-8", md)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown view "+strconv.Quote(view)))
	}
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// DeleteDocument handles DELETE /api/documents/*.
//
//	@Summary		Delete a stored document
//	@Tags			documents
//	@Param			path	path	string	true	"Document path"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		writeError(w, "delete document", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across stored documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", q, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

