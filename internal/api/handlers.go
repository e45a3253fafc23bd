package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/outliner/internal/docservice"
	"github.com/starford/outliner/internal/export"
	"github.com/starford/outliner/internal/session"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// docName extracts the document name from the URL. Supports encoded slashes
// (e.g. work%2Fplan).
func docName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents in the library
//	@Tags			documents
//	@Produce		json
//	@Param			tag	query		string	false	"Filter by tag"
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create an empty document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentRow
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	row, err := h.svc.Create(req.Name, req.Title)
	if err != nil {
		writeError(w, "create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// GetDocument handles GET /api/documents/{name}.
//
//	@Summary		Get the stored form of a document
//	@Tags			documents
//	@Produce		json
//	@Param			name	path		string	true	"Document name"
//	@Success		200		{object}	DocumentResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	name := docName(r)
	sess, err := h.svc.Open(name)
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Name: name, Document: sess.Document()})
}

// RenameDocument handles PATCH /api/documents/{name}.
//
//	@Summary		Rename a document
//	@Tags			documents
//	@Accept			json
//	@Param			name	path	string					true	"Document name"
//	@Param			body	body	RenameDocumentRequest	true	"New name"
//	@Success		204		"Document renamed"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name} [patch]
func (h *Handler) RenameDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RenameDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.Rename(docName(r), req.Name); err != nil {
		writeError(w, "rename document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument handles DELETE /api/documents/{name}.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			name	path	string	true	"Document name"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(docName(r)); err != nil {
		writeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ViewDocument handles GET /api/documents/{name}/view.
//
//	@Summary		Render the visible rows of a document
//	@Tags			documents
//	@Produce		json
//	@Param			name			path		string	true	"Document name"
//	@Param			q				query		string	false	"Keep rows matching this text, with their ancestors"
//	@Param			hide_checked	query		bool	false	"Drop completed checklist items"
//	@Success		200				{object}	DocumentView
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name}/view [get]
func (h *Handler) ViewDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hide, _ := strconv.ParseBool(q.Get("hide_checked"))
	v, err := h.svc.View(docName(r), session.ViewFilter{Query: q.Get("q"), HideChecked: hide})
	if err != nil {
		writeError(w, "view document", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ApplyCommand handles POST /api/documents/{name}/commands.
//
//	@Summary		Apply one outline command
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string	true	"Document name"
//	@Param			body	body		Command	true	"Command"
//	@Success		200		{object}	CommandResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name}/commands [post]
func (h *Handler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.Command(docName(r), cmd)
	if err != nil {
		writeError(w, "apply command", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Undo handles POST /api/documents/{name}/undo.
//
//	@Summary		Undo the last change
//	@Tags			documents
//	@Produce		json
//	@Param			name	path		string	true	"Document name"
//	@Success		200		{object}	CommandResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name}/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Undo(docName(r))
	if err != nil {
		writeError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Redo handles POST /api/documents/{name}/redo.
//
//	@Summary		Redo the change undone last
//	@Tags			documents
//	@Produce		json
//	@Param			name	path		string	true	"Document name"
//	@Success		200		{object}	CommandResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name}/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Redo(docName(r))
	if err != nil {
		writeError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExportDocument handles GET /api/documents/{name}/export.
//
//	@Summary		Export a document
//	@Tags			documents
//	@Produce		plain
//	@Param			name	path	string	true	"Document name"
//	@Param			format	query	string	false	"Export format"	Enums(text, json, opml, yaml)
//	@Success		200		{file}	binary
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{name}/export [get]
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	f := export.Format(r.URL.Query().Get("format"))
	if f == "" {
		f = export.Text
	}
	name := docName(r)
	data, err := h.svc.Export(name, f)
	if err != nil {
		writeError(w, "export document", err)
		return
	}
	base := path.Base(name)
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"."+f.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across document nodes
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
	results, err := h.svc.Search(q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Tags handles GET /api/tags.
//
//	@Summary		List tags with node counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, _ *http.Request) {
	tags, err := h.svc.Tags()
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// ByTag handles GET /api/tags/{tag}.
//
//	@Summary		List nodes carrying a tag
//	@Tags			tags
//	@Produce		json
//	@Param			tag	path		string	true	"Tag without the leading #"
//	@Success		200	{object}	TagResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag} [get]
func (h *Handler) ByTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	hits, err := h.svc.ByTag(tag)
	if err != nil {
		writeError(w, "by tag", err)
		return
	}
	writeJSON(w, http.StatusOK, TagResponse{Tag: tag, Nodes: hits})
}
